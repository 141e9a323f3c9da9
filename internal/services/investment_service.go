package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"invest-service/internal/metrics"
	"invest-service/internal/models"
)

const maturityBatchSize = 100

type InvestmentService struct {
	DB      *gorm.DB
	Wallets *WalletService
	Ledger  *LedgerService
	Metrics *metrics.Collector
}

func NewInvestmentService(db *gorm.DB, wallets *WalletService, ledger *LedgerService, m *metrics.Collector) *InvestmentService {
	return &InvestmentService{DB: db, Wallets: wallets, Ledger: ledger, Metrics: m}
}

type PlanDTO struct {
	Name          string
	Description   string
	MinAmount     decimal.Decimal
	MaxAmount     decimal.Decimal
	RoiPercentage decimal.Decimal
	DurationDays  int
	IsActive      bool
}

func (p PlanDTO) validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return validationError("plan name is required")
	}
	if !p.MinAmount.IsPositive() {
		return validationError("minimum amount must be positive")
	}
	if !p.MaxAmount.IsZero() && p.MaxAmount.LessThan(p.MinAmount) {
		return validationError("maximum amount must not be below the minimum")
	}
	if !p.RoiPercentage.IsPositive() {
		return validationError("roi percentage must be positive")
	}
	if p.DurationDays <= 0 {
		return validationError("duration must be at least one day")
	}
	return nil
}

func (s *InvestmentService) CreatePlan(ctx context.Context, data PlanDTO) (*models.Plan, error) {
	if err := data.validate(); err != nil {
		return nil, err
	}
	plan := models.Plan{
		Name:          strings.TrimSpace(data.Name),
		Description:   data.Description,
		MinAmount:     data.MinAmount,
		MaxAmount:     data.MaxAmount,
		RoiPercentage: data.RoiPercentage,
		DurationDays:  data.DurationDays,
		IsActive:      data.IsActive,
	}
	if err := s.DB.WithContext(ctx).Create(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

type UpdatePlanDTO struct {
	Name          *string
	Description   *string
	MinAmount     *decimal.Decimal
	MaxAmount     *decimal.Decimal
	RoiPercentage *decimal.Decimal
	DurationDays  *int
	IsActive      *bool
}

// UpdatePlan applies the non-nil fields. Running investments keep their original terms.
func (s *InvestmentService) UpdatePlan(ctx context.Context, id int64, data UpdatePlanDTO) (*models.Plan, error) {
	var plan models.Plan
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&plan, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundError("plan", id)
			}
			return err
		}

		next := PlanDTO{
			Name: plan.Name, Description: plan.Description,
			MinAmount: plan.MinAmount, MaxAmount: plan.MaxAmount,
			RoiPercentage: plan.RoiPercentage, DurationDays: plan.DurationDays, IsActive: plan.IsActive,
		}
		if data.Name != nil {
			next.Name = *data.Name
		}
		if data.Description != nil {
			next.Description = *data.Description
		}
		if data.MinAmount != nil {
			next.MinAmount = *data.MinAmount
		}
		if data.MaxAmount != nil {
			next.MaxAmount = *data.MaxAmount
		}
		if data.RoiPercentage != nil {
			next.RoiPercentage = *data.RoiPercentage
		}
		if data.DurationDays != nil {
			next.DurationDays = *data.DurationDays
		}
		if data.IsActive != nil {
			next.IsActive = *data.IsActive
		}
		if err := next.validate(); err != nil {
			return err
		}

		plan.Name = strings.TrimSpace(next.Name)
		plan.Description = next.Description
		plan.MinAmount = next.MinAmount
		plan.MaxAmount = next.MaxAmount
		plan.RoiPercentage = next.RoiPercentage
		plan.DurationDays = next.DurationDays
		plan.IsActive = next.IsActive
		return tx.Save(&plan).Error
	})
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (s *InvestmentService) ListPlans(ctx context.Context, activeOnly bool) ([]models.Plan, error) {
	plans := make([]models.Plan, 0)
	query := s.DB.WithContext(ctx).Order("min_amount ASC")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	return plans, query.Find(&plans).Error
}

type InvestDTO struct {
	UserId int64
	PlanId int64
	Amount decimal.Decimal
}

// Invest moves amount out of the DEPOSIT wallet into a new position on the plan.
func (s *InvestmentService) Invest(ctx context.Context, data InvestDTO) (*models.Investment, error) {
	if !data.Amount.IsPositive() {
		return nil, validationError("amount must be positive")
	}

	var investment models.Investment
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var plan models.Plan
		if err := tx.Where("id = ? AND is_active = ?", data.PlanId, true).First(&plan).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundError("plan", data.PlanId)
			}
			return err
		}
		if data.Amount.LessThan(plan.MinAmount) {
			return validationError("minimum investment for %s is %s", plan.Name, plan.MinAmount.StringFixed(2))
		}
		if !plan.MaxAmount.IsZero() && data.Amount.GreaterThan(plan.MaxAmount) {
			return validationError("maximum investment for %s is %s", plan.Name, plan.MaxAmount.StringFixed(2))
		}

		wallet, err := s.Wallets.GetOrCreateWallet(tx, data.UserId, models.WalletDeposit)
		if err != nil {
			return err
		}
		if err := s.Wallets.Debit(tx, wallet.ID, data.Amount); err != nil {
			return err
		}

		now := time.Now()
		trx, err := s.Ledger.Create(tx, CreateTransactionDTO{
			UserId:      data.UserId,
			WalletId:    &wallet.ID,
			Type:        models.TransactionInvestment,
			Status:      models.StatusCompleted,
			Amount:      data.Amount,
			Fee:         decimal.Zero,
			ProcessedAt: &now,
			Metadata: map[string]any{
				"plan_id":   strconv.FormatInt(plan.ID, 10),
				"plan_name": plan.Name,
			},
		})
		if err != nil {
			return err
		}

		investment = models.Investment{
			UserId:         data.UserId,
			PlanId:         plan.ID,
			Amount:         data.Amount,
			ExpectedProfit: percentOf(data.Amount, plan.RoiPercentage),
			Status:         models.InvestmentActive,
			TransactionId:  trx.ID,
			StartedAt:      now,
			MaturesAt:      now.AddDate(0, 0, plan.DurationDays),
		}
		return tx.Create(&investment).Error
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"investment_id": investment.ID,
		"user_id":       investment.UserId,
		"plan_id":       investment.PlanId,
		"amount":        investment.Amount.String(),
	}).Info("investment opened")
	return &investment, nil
}

func (s *InvestmentService) ListInvestments(ctx context.Context, userId int64) ([]models.Investment, error) {
	investments := make([]models.Investment, 0)
	err := s.DB.WithContext(ctx).Where("user_id = ?", userId).Order("id DESC").Find(&investments).Error
	return investments, err
}

// MatureDue settles every ACTIVE investment whose term ended by now: principal
// plus profit go to the PROFIT wallet as one DIVIDEND. Each settlement commits
// on its own; a failure is logged and the rest continue.
func (s *InvestmentService) MatureDue(ctx context.Context, now time.Time) (int, error) {
	var due []models.Investment
	if err := s.DB.WithContext(ctx).
		Where("status = ? AND matures_at <= ?", models.InvestmentActive, now).
		Order("matures_at ASC").
		Limit(maturityBatchSize).
		Find(&due).Error; err != nil {
		return 0, err
	}

	settled := 0
	for i := range due {
		ok, err := s.mature(ctx, &due[i], now)
		if err != nil {
			logrus.WithError(err).WithField("investment_id", due[i].ID).Error("investment maturity failed")
			continue
		}
		if ok {
			settled++
			s.Metrics.InvestmentMatured()
		}
	}
	return settled, nil
}

func (s *InvestmentService) mature(ctx context.Context, inv *models.Investment, now time.Time) (bool, error) {
	settled := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Investment{}).
			Where("id = ? AND status = ?", inv.ID, models.InvestmentActive).
			Updates(map[string]interface{}{
				"status":       models.InvestmentCompleted,
				"completed_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		payout := inv.Amount.Add(inv.ExpectedProfit)
		wallet, err := s.Wallets.GetOrCreateWallet(tx, inv.UserId, models.WalletProfit)
		if err != nil {
			return err
		}
		if _, err := s.Ledger.Create(tx, CreateTransactionDTO{
			UserId:      inv.UserId,
			WalletId:    &wallet.ID,
			Type:        models.TransactionDividend,
			Status:      models.StatusCompleted,
			Amount:      payout,
			Fee:         decimal.Zero,
			ProcessedAt: &now,
			Metadata: map[string]any{
				"investment_id": strconv.FormatInt(inv.ID, 10),
				"principal":     inv.Amount.String(),
				"profit":        inv.ExpectedProfit.String(),
			},
		}); err != nil {
			return err
		}
		if err := s.Wallets.Credit(tx, wallet.ID, payout); err != nil {
			return err
		}
		settled = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("mature investment %d: %w", inv.ID, err)
	}
	return settled, nil
}
