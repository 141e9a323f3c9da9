package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"invest-service/internal/metrics"
	"invest-service/internal/models"
)

// DepositApproval carries everything bonus distribution needs about one approved deposit.
type DepositApproval struct {
	Transaction *models.Transaction
	User        *models.User
	Rates       BonusRates
	Now         time.Time
}

// BonusPayout describes one bonus credited during distribution.
type BonusPayout struct {
	Type          models.BonusType
	BeneficiaryId int64
	Amount        decimal.Decimal
	Percentage    decimal.Decimal
	TransactionId int64
	Reference     string
}

type BonusService struct {
	DB      *gorm.DB
	Wallets *WalletService
	Ledger  *LedgerService
	Metrics *metrics.Collector
}

func NewBonusService(db *gorm.DB, wallets *WalletService, ledger *LedgerService, m *metrics.Collector) *BonusService {
	return &BonusService{DB: db, Wallets: wallets, Ledger: ledger, Metrics: m}
}

// Distribute pays the referral, registration and first-deposit bonuses for an
// approved deposit. It runs in a savepoint of tx: on any error or panic only the
// bonus writes are rolled back, the failure is logged and nil is returned.
func (s *BonusService) Distribute(tx *gorm.DB, approval DepositApproval) []BonusPayout {
	var payouts []BonusPayout
	err := tx.Transaction(func(sp *gorm.DB) (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic during bonus distribution: %v", p)
			}
		}()
		payouts, err = s.distribute(sp, approval)
		return err
	})
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"transaction_id": approval.Transaction.ID,
			"user_id":        approval.User.ID,
		}).Error("bonus distribution failed, deposit kept")
		s.Metrics.BonusFailed()
		return nil
	}

	for _, p := range payouts {
		s.Metrics.BonusPaid(string(p.Type))
	}
	return payouts
}

func (s *BonusService) distribute(tx *gorm.DB, a DepositApproval) ([]BonusPayout, error) {
	var payouts []BonusPayout
	deposit := a.Transaction
	user := a.User

	referral, err := s.EnsureReferralRecord(tx, user, a.Now)
	if err != nil {
		return nil, fmt.Errorf("resolve referrer: %w", err)
	}

	if referral != nil && a.Rates.Referral.IsPositive() {
		payout, err := s.pay(tx, a, referral.ReferredBy, models.BonusReferral, models.TransactionDividend, a.Rates.Referral)
		if err != nil {
			return nil, fmt.Errorf("referral bonus: %w", err)
		}
		if payout != nil {
			if err := s.recordReferralEarning(tx, referral, payout, a.Now); err != nil {
				return nil, fmt.Errorf("referral bonus: %w", err)
			}
			payouts = append(payouts, *payout)
		}
	}

	if referral != nil && user.IsNewUser && a.Rates.Registration.IsPositive() {
		claimed, err := s.claim(tx, user.ID, models.BonusRegistration, deposit.ID)
		if err != nil {
			return nil, fmt.Errorf("registration bonus: %w", err)
		}
		if claimed {
			payout, err := s.pay(tx, a, referral.ReferredBy, models.BonusRegistration, models.TransactionBonus, a.Rates.Registration)
			if err != nil {
				return nil, fmt.Errorf("registration bonus: %w", err)
			}
			if payout != nil {
				payouts = append(payouts, *payout)
			}
		}
	}

	if a.Rates.FirstDeposit.IsPositive() {
		prior, err := s.priorCompletedDeposits(tx, user.ID, deposit.ID)
		if err != nil {
			return nil, fmt.Errorf("first deposit bonus: %w", err)
		}
		if prior == 0 {
			claimed, err := s.claim(tx, user.ID, models.BonusFirstDeposit, deposit.ID)
			if err != nil {
				return nil, fmt.Errorf("first deposit bonus: %w", err)
			}
			if claimed {
				payout, err := s.pay(tx, a, user.ID, models.BonusFirstDeposit, models.TransactionBonus, a.Rates.FirstDeposit)
				if err != nil {
					return nil, fmt.Errorf("first deposit bonus: %w", err)
				}
				if payout != nil {
					payouts = append(payouts, *payout)
				}
			}
		}
	}

	return payouts, nil
}

// EnsureReferralRecord returns the referee's Referral row, creating it from
// users.referred_by when it is missing. Returns nil when the user has no referrer.
func (s *BonusService) EnsureReferralRecord(tx *gorm.DB, user *models.User, now time.Time) (*models.Referral, error) {
	var referral models.Referral
	err := tx.Where("user_id = ?", user.ID).First(&referral).Error
	if err == nil {
		return &referral, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if user.ReferredBy == nil || *user.ReferredBy == user.ID {
		return nil, nil
	}

	referral = models.Referral{
		ReferredBy: *user.ReferredBy,
		UserId:     user.ID,
		Earnings:   decimal.Zero,
		Status:     models.ReferralPending,
		SignedUpAt: now,
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&referral)
	if res.Error != nil {
		return nil, fmt.Errorf("create referral: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		referral = models.Referral{}
		if err := tx.Where("user_id = ?", user.ID).First(&referral).Error; err != nil {
			return nil, err
		}
	}
	return &referral, nil
}

// claim reserves a once-per-user bonus. False means it was granted before.
func (s *BonusService) claim(tx *gorm.DB, userId int64, kind models.BonusType, sourceTransactionId int64) (bool, error) {
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.BonusClaim{
		UserId:              userId,
		Kind:                kind,
		SourceTransactionId: sourceTransactionId,
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// priorCompletedDeposits counts the user's completed deposits into a DEPOSIT
// wallet other than the one being approved.
func (s *BonusService) priorCompletedDeposits(tx *gorm.DB, userId, currentId int64) (int64, error) {
	var count int64
	err := tx.Model(&models.Transaction{}).
		Joins("JOIN wallets ON wallets.id = transactions.wallet_id").
		Where("transactions.user_id = ? AND transactions.type = ? AND transactions.status = ? AND wallets.type = ? AND transactions.id <> ?",
			userId, models.TransactionDeposit, models.StatusCompleted, models.WalletDeposit, currentId).
		Count(&count).Error
	return count, err
}

// pay credits pct of the deposit to the beneficiary's BONUS wallet and records it.
// A bonus that rounds to zero is skipped.
func (s *BonusService) pay(tx *gorm.DB, a DepositApproval, beneficiaryId int64, bonusType models.BonusType, trxType models.TransactionType, pct decimal.Decimal) (*BonusPayout, error) {
	amount := percentOf(a.Transaction.Amount, pct)
	if !amount.IsPositive() {
		return nil, nil
	}

	wallet, err := s.Wallets.GetOrCreateWallet(tx, beneficiaryId, models.WalletBonus)
	if err != nil {
		return nil, err
	}

	processedAt := a.Now
	trx, err := s.Ledger.Create(tx, CreateTransactionDTO{
		UserId:      beneficiaryId,
		WalletId:    &wallet.ID,
		Type:        trxType,
		Status:      models.StatusCompleted,
		Amount:      amount,
		Fee:         decimal.Zero,
		ProcessedAt: &processedAt,
		Metadata: map[string]any{
			models.MetaBonusType:         string(bonusType),
			models.MetaSourceTransaction: strconv.FormatInt(a.Transaction.ID, 10),
			"percentage":                 pct.String(),
			"depositor_id":               strconv.FormatInt(a.User.ID, 10),
		},
	})
	if err != nil {
		return nil, err
	}

	if err := s.Wallets.Credit(tx, wallet.ID, amount); err != nil {
		return nil, err
	}

	return &BonusPayout{
		Type:          bonusType,
		BeneficiaryId: beneficiaryId,
		Amount:        amount,
		Percentage:    pct,
		TransactionId: trx.ID,
		Reference:     trx.Reference,
	}, nil
}

func (s *BonusService) recordReferralEarning(tx *gorm.DB, referral *models.Referral, payout *BonusPayout, now time.Time) error {
	if err := tx.Create(&models.ReferralBonus{
		ReferralId:    referral.ID,
		TransactionId: payout.TransactionId,
		Amount:        payout.Amount,
		Percentage:    payout.Percentage,
	}).Error; err != nil {
		return fmt.Errorf("record referral bonus: %w", err)
	}

	return tx.Model(&models.Referral{}).
		Where("id = ?", referral.ID).
		UpdateColumns(map[string]interface{}{
			"earnings":         gorm.Expr("earnings + ?", payout.Amount),
			"status":           models.ReferralActive,
			"first_deposit_at": gorm.Expr("COALESCE(first_deposit_at, ?)", now),
			"last_earning_at":  now,
			"updated_at":       now,
		}).Error
}

// ReferralSummary is what a referrer sees about the people they brought in.
type ReferralSummary struct {
	Referrals     []models.Referral `json:"referrals"`
	TotalEarnings decimal.Decimal   `json:"totalEarnings"`
}

func (s *BonusService) ListReferrals(ctx context.Context, referrerId int64) (*ReferralSummary, error) {
	referrals := make([]models.Referral, 0)
	if err := s.DB.WithContext(ctx).Where("referred_by = ?", referrerId).Order("id DESC").Find(&referrals).Error; err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, r := range referrals {
		total = total.Add(r.Earnings)
	}
	return &ReferralSummary{Referrals: referrals, TotalEarnings: total}, nil
}
