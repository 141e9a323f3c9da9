package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"invest-service/internal/metrics"
	"invest-service/internal/models"
	"invest-service/pkg/common"
)

const (
	ActionApprove = "approve"
	ActionReject  = "reject"

	// SystemActorId marks decisions taken by background jobs rather than an admin.
	SystemActorId int64 = 0
)

type DepositService struct {
	DB            *gorm.DB
	Wallets       *WalletService
	Ledger        *LedgerService
	Bonus         *BonusService
	Settings      *SettingsService
	Notifications *NotificationService
	Audit         *AuditService
	Currency      *CurrencyConverter
	Gateway       PaymentGateway
	Guard         *ApprovalGuard
	Effects       *EffectRunner
	Metrics       *metrics.Collector
	Queue         TaskEnqueuer

	// Timeout bounds each approval unit of work.
	Timeout     time.Duration
	PayCurrency string
}

type DecisionDTO struct {
	TransactionId int64
	Action        string
	Reason        string
	RejectStatus  models.TransactionStatus // withdrawals only; CANCELLED when empty
	ActorId       int64
	IpAddress     string
	UserAgent     string
}

type DecisionResult struct {
	Transaction *models.Transaction
	Bonuses     []BonusPayout
}

// Decide dispatches an admin decision to Approve or Reject.
func (s *DepositService) Decide(ctx context.Context, data DecisionDTO) (*DecisionResult, error) {
	switch data.Action {
	case ActionApprove:
		return s.Approve(ctx, data)
	case ActionReject:
		return s.Reject(ctx, data)
	}
	return nil, validationError("action must be %q or %q", ActionApprove, ActionReject)
}

// Approve completes a PENDING deposit, credits the user's DEPOSIT wallet and
// distributes bonuses, all in one database transaction.
func (s *DepositService) Approve(ctx context.Context, data DecisionDTO) (result *DecisionResult, err error) {
	started := time.Now()
	defer func() { s.Metrics.RecordApproval("deposit", ActionApprove, outcomeLabel(err), time.Since(started)) }()

	release, err := s.Guard.Acquire(ctx, "deposit", data.TransactionId)
	if err != nil {
		return nil, err
	}
	defer release()

	trx, err := s.loadPendingDeposit(ctx, data.TransactionId)
	if err != nil {
		return nil, err
	}

	// Network lookups happen before the unit of work opens.
	conversion := s.lookupConversion(ctx, trx)
	rates, err := s.Settings.BonusRates(ctx)
	if err != nil {
		return nil, fmt.Errorf("read bonus rates: %w", err)
	}

	txCtx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	var (
		completed models.Transaction
		payouts   []BonusPayout
	)
	err = s.DB.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.Ledger.FindForUpdate(tx, data.TransactionId)
		if err != nil {
			return err
		}
		if locked.Type != models.TransactionDeposit {
			return notFoundError("deposit", data.TransactionId)
		}
		if locked.Status != models.StatusPending {
			return ErrAlreadyProcessed
		}

		// Serializes approvals per depositor so first-deposit checks see each other.
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, locked.UserId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundError("user", locked.UserId)
			}
			return err
		}

		wallet, err := s.Wallets.GetOrCreateWallet(tx, user.ID, models.WalletDeposit)
		if err != nil {
			return err
		}

		now := time.Now()
		meta := mergeMetadata(locked.Metadata, map[string]any{
			models.MetaProcessedBy: strconv.FormatInt(data.ActorId, 10),
		})
		if err := s.Ledger.Transition(tx, locked.ID, models.StatusCompleted, TransitionOptions{
			WalletId:    &wallet.ID,
			Metadata:    meta,
			ProcessedAt: now,
		}); err != nil {
			return err
		}
		if conversion != nil {
			if err := s.Ledger.AttachConversion(tx, locked.ID, *conversion); err != nil {
				return err
			}
		}

		if err := s.Wallets.Credit(tx, wallet.ID, locked.Amount); err != nil {
			return err
		}

		locked.Status = models.StatusCompleted
		locked.WalletId = &wallet.ID
		payouts = s.Bonus.Distribute(tx, DepositApproval{
			Transaction: locked,
			User:        &user,
			Rates:       rates,
			Now:         now,
		})

		if user.IsNewUser {
			if err := tx.Model(&models.User{}).
				Where("id = ? AND is_new_user = ?", user.ID, true).
				Update("is_new_user", false).Error; err != nil {
				return fmt.Errorf("clear new user flag: %w", err)
			}
		}

		return tx.First(&completed, locked.ID).Error
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"transaction_id": completed.ID,
		"reference":      completed.Reference,
		"user_id":        completed.UserId,
		"amount":         completed.Amount.String(),
		"bonuses":        len(payouts),
		"actor_id":       data.ActorId,
	}).Info("deposit approved")

	effects := []Effect{
		s.notifyEffect(NotifyDTO{
			UserId:   completed.UserId,
			Type:     "DEPOSIT_APPROVED",
			Title:    "Deposit approved",
			Message:  fmt.Sprintf("Your deposit %s of $%s has been credited.", completed.Reference, completed.Amount.StringFixed(2)),
			Metadata: map[string]any{"transactionId": strconv.FormatInt(completed.ID, 10)},
		}),
	}
	for _, p := range payouts {
		effects = append(effects, s.notifyEffect(bonusNotification(p)))
	}
	effects = append(effects, s.auditEffect(data, "DEPOSIT_APPROVED", &completed))
	s.Effects.Run(ctx, effects...)

	return &DecisionResult{Transaction: &completed, Bonuses: payouts}, nil
}

// Reject fails a PENDING deposit. No wallet changes and no bonuses.
func (s *DepositService) Reject(ctx context.Context, data DecisionDTO) (result *DecisionResult, err error) {
	started := time.Now()
	defer func() { s.Metrics.RecordApproval("deposit", ActionReject, outcomeLabel(err), time.Since(started)) }()

	release, err := s.Guard.Acquire(ctx, "deposit", data.TransactionId)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := s.loadPendingDeposit(ctx, data.TransactionId); err != nil {
		return nil, err
	}

	txCtx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	var failed models.Transaction
	err = s.DB.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.Ledger.FindForUpdate(tx, data.TransactionId)
		if err != nil {
			return err
		}
		if locked.Type != models.TransactionDeposit {
			return notFoundError("deposit", data.TransactionId)
		}

		extra := map[string]any{models.MetaProcessedBy: strconv.FormatInt(data.ActorId, 10)}
		if data.Reason != "" {
			extra[models.MetaRejectionReason] = data.Reason
		}
		if err := s.Ledger.Transition(tx, locked.ID, models.StatusFailed, TransitionOptions{
			Metadata: mergeMetadata(locked.Metadata, extra),
		}); err != nil {
			return err
		}
		return tx.First(&failed, locked.ID).Error
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"transaction_id": failed.ID,
		"reference":      failed.Reference,
		"actor_id":       data.ActorId,
	}).Info("deposit rejected")

	s.Effects.Run(ctx,
		s.notifyEffect(NotifyDTO{
			UserId:   failed.UserId,
			Type:     "DEPOSIT_REJECTED",
			Title:    "Deposit rejected",
			Message:  fmt.Sprintf("Your deposit %s was not approved.", failed.Reference),
			Metadata: map[string]any{"transactionId": strconv.FormatInt(failed.ID, 10)},
		}),
		s.auditEffect(data, "DEPOSIT_REJECTED", &failed),
	)
	return &DecisionResult{Transaction: &failed}, nil
}

// loadPendingDeposit is the early, unlocked check. The locked re-check inside
// the unit of work is the one that counts.
func (s *DepositService) loadPendingDeposit(ctx context.Context, id int64) (*models.Transaction, error) {
	var trx models.Transaction
	if err := s.DB.WithContext(ctx).First(&trx, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("deposit", id)
		}
		return nil, err
	}
	if trx.Type != models.TransactionDeposit {
		return nil, notFoundError("deposit", id)
	}
	if trx.Status != models.StatusPending {
		return nil, ErrAlreadyProcessed
	}
	return &trx, nil
}

// lookupConversion resolves local-currency metadata for mobile money deposits.
// Failures are logged and the approval proceeds without it.
func (s *DepositService) lookupConversion(ctx context.Context, trx *models.Transaction) *Conversion {
	if s.Currency == nil || trx.PaymentAccountId == nil {
		return nil
	}
	if _, done := trx.Metadata[models.MetaOriginalCurrency]; done {
		return nil
	}

	var account models.PaymentAccount
	if err := s.DB.WithContext(ctx).Unscoped().First(&account, *trx.PaymentAccountId).Error; err != nil {
		logrus.WithError(err).WithField("transaction_id", trx.ID).Warn("payment account lookup failed, skipping conversion")
		return nil
	}
	if account.Type != models.PaymentAccountMobile {
		return nil
	}

	var user models.User
	if err := s.DB.WithContext(ctx).Select("id", "country_code").First(&user, trx.UserId).Error; err != nil {
		logrus.WithError(err).WithField("transaction_id", trx.ID).Warn("user lookup failed, skipping conversion")
		return nil
	}

	conv, err := s.Currency.Convert(ctx, user.CountryCode, trx.Amount)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"transaction_id": trx.ID,
			"country":        user.CountryCode,
		}).Warn("currency conversion failed, approving without it")
		return nil
	}
	return conv
}

func (s *DepositService) timeout() time.Duration {
	if s.Timeout <= 0 {
		return 10 * time.Second
	}
	return s.Timeout
}

func (s *DepositService) notifyEffect(n NotifyDTO) Effect {
	return Effect{Name: "notify", Run: func(ctx context.Context) error {
		if s.Notifications == nil {
			return nil
		}
		_, err := s.Notifications.Notify(ctx, n)
		return err
	}}
}

func (s *DepositService) auditEffect(data DecisionDTO, action string, trx *models.Transaction) Effect {
	return auditEffect(s.Audit, data, action, trx)
}

func auditEffect(audit *AuditService, data DecisionDTO, action string, trx *models.Transaction) Effect {
	return Effect{Name: "audit", Run: func(ctx context.Context) error {
		if audit == nil || data.ActorId == SystemActorId {
			return nil
		}
		return audit.Record(ctx, AuditEntryDTO{
			AdminId:    data.ActorId,
			Action:     action,
			EntityType: "transaction",
			EntityId:   trx.ID,
			IpAddress:  data.IpAddress,
			UserAgent:  data.UserAgent,
			Metadata: map[string]any{
				"reference": trx.Reference,
				"amount":    trx.Amount.String(),
				"status":    string(trx.Status),
				"reason":    data.Reason,
			},
		})
	}}
}

func bonusNotification(p BonusPayout) NotifyDTO {
	title := "Bonus received"
	switch p.Type {
	case models.BonusReferral:
		title = "Referral bonus received"
	case models.BonusRegistration:
		title = "Registration bonus received"
	case models.BonusFirstDeposit:
		title = "First deposit bonus received"
	}
	return NotifyDTO{
		UserId:  p.BeneficiaryId,
		Type:    "BONUS_" + string(p.Type),
		Title:   title,
		Message: fmt.Sprintf("$%s has been added to your bonus wallet.", p.Amount.StringFixed(2)),
		Metadata: map[string]any{
			"transactionId": strconv.FormatInt(p.TransactionId, 10),
			"bonusType":     string(p.Type),
		},
	}
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrAlreadyProcessed):
		return "already_processed"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrValidation):
		return "invalid"
	}
	return "error"
}

type RequestDepositDTO struct {
	UserId           int64
	Amount           decimal.Decimal
	PaymentAccountId int64
}

// RequestDeposit records a user's PENDING deposit. Crypto deposits also open a
// gateway payment whose address is returned in the metadata.
func (s *DepositService) RequestDeposit(ctx context.Context, data RequestDepositDTO) (*models.Transaction, error) {
	if !data.Amount.IsPositive() {
		return nil, validationError("amount must be positive")
	}
	minimum, err := s.Settings.Get(ctx, models.SettingMinimumDeposit)
	if err != nil {
		return nil, err
	}
	if minimum.IsPositive() && data.Amount.LessThan(minimum) {
		return nil, validationError("minimum deposit is %s", minimum.StringFixed(2))
	}

	var account models.PaymentAccount
	if err := s.DB.WithContext(ctx).Where("id = ? AND user_id = ?", data.PaymentAccountId, data.UserId).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("payment account", data.PaymentAccountId)
		}
		return nil, err
	}

	trx, err := s.Ledger.Create(s.DB.WithContext(ctx), CreateTransactionDTO{
		UserId:           data.UserId,
		Type:             models.TransactionDeposit,
		Amount:           data.Amount,
		Fee:              decimal.Zero,
		PaymentAccountId: &account.ID,
		Metadata: map[string]any{
			"provider":     account.Provider,
			"account_type": string(account.Type),
		},
	})
	if err != nil {
		return nil, err
	}

	if account.Type != models.PaymentAccountCrypto || s.Gateway == nil {
		return trx, nil
	}

	payment, err := s.Gateway.CreatePayment(ctx, CreatePaymentRequest{
		PriceAmount:      data.Amount,
		PriceCurrency:    "usd",
		PayCurrency:      s.PayCurrency,
		OrderId:          trx.Reference,
		OrderDescription: "Deposit " + trx.Reference,
	})
	if err != nil {
		// The deposit stays PENDING for an admin to resolve.
		logrus.WithError(err).WithField("transaction_id", trx.ID).Error("gateway payment creation failed")
		return trx, nil
	}

	meta := mergeMetadata(trx.Metadata, map[string]any{
		models.MetaGatewayPaymentId:  string(payment.PaymentId),
		models.MetaGatewayPayAddress: payment.PayAddress,
		models.MetaGatewayPayAmount:  payment.PayAmount.String(),
		models.MetaGatewayCurrency:   payment.PayCurrency,
	})
	if err := s.DB.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ? AND status = ?", trx.ID, models.StatusPending).
		Select("metadata").
		Updates(&models.Transaction{Metadata: meta}).Error; err != nil {
		return nil, err
	}
	trx.Metadata = meta
	return trx, nil
}

func (s *DepositService) Estimate(ctx context.Context, amount decimal.Decimal, payCurrency string) (*GatewayEstimate, error) {
	if !amount.IsPositive() {
		return nil, validationError("amount must be positive")
	}
	if s.Gateway == nil {
		return nil, fmt.Errorf("payment gateway not configured")
	}
	if payCurrency == "" {
		payCurrency = s.PayCurrency
	}
	return s.Gateway.GetEstimate(ctx, amount, payCurrency)
}

func (s *DepositService) ListDeposits(ctx context.Context, status models.TransactionStatus, page, limit int) ([]models.Transaction, common.Pagination, error) {
	return s.Ledger.List(ctx, ListTransactionsDTO{
		Type:   models.TransactionDeposit,
		Status: status,
		Page:   page,
		Limit:  limit,
	})
}

// PendingGatewayDeposits lists PENDING deposits that carry a gateway payment id.
func (s *DepositService) PendingGatewayDeposits(ctx context.Context) ([]models.Transaction, error) {
	var pending []models.Transaction
	if err := s.DB.WithContext(ctx).
		Where("type = ? AND status = ?", models.TransactionDeposit, models.StatusPending).
		Order("id ASC").
		Find(&pending).Error; err != nil {
		return nil, err
	}

	out := pending[:0]
	for _, trx := range pending {
		if id, _ := trx.Metadata[models.MetaGatewayPaymentId].(string); id != "" {
			out = append(out, trx)
		}
	}
	return out, nil
}

type GatewayPollPayload struct {
	TransactionId int64 `json:"transactionId"`
}

// EnqueueGatewayPolls schedules one status check per pending gateway deposit.
func (s *DepositService) EnqueueGatewayPolls(ctx context.Context) (int, error) {
	if s.Queue == nil {
		return 0, fmt.Errorf("task queue not configured")
	}
	pending, err := s.PendingGatewayDeposits(ctx)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, trx := range pending {
		payload, err := json.Marshal(GatewayPollPayload{TransactionId: trx.ID})
		if err != nil {
			return enqueued, err
		}
		_, err = s.Queue.EnqueueContext(ctx, asynq.NewTask(TypeGatewayPoll, payload),
			asynq.TaskID(fmt.Sprintf("gateway-poll:%d:%d", trx.ID, time.Now().Unix()/60)),
			asynq.MaxRetry(2),
		)
		if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
			logrus.WithError(err).WithField("transaction_id", trx.ID).Warn("enqueue gateway poll failed")
			continue
		}
		enqueued++
	}
	return enqueued, nil
}

// SyncGatewayStatus polls the gateway for one deposit and settles it through
// the regular approval workflow when the payment is final.
func (s *DepositService) SyncGatewayStatus(ctx context.Context, transactionId int64) (GatewayOutcome, error) {
	if s.Gateway == nil {
		return GatewayWaiting, fmt.Errorf("payment gateway not configured")
	}
	trx, err := s.loadPendingDeposit(ctx, transactionId)
	if err != nil {
		return GatewayWaiting, err
	}
	paymentId, _ := trx.Metadata[models.MetaGatewayPaymentId].(string)
	if paymentId == "" {
		return GatewayWaiting, validationError("deposit %d has no gateway payment", transactionId)
	}

	payment, err := s.Gateway.GetPaymentStatus(ctx, paymentId)
	if err != nil {
		s.Metrics.GatewayPollFailed()
		return GatewayWaiting, err
	}

	outcome := ClassifyPaymentStatus(payment.PaymentStatus)
	decision := DecisionDTO{TransactionId: transactionId, ActorId: SystemActorId, Reason: "gateway status " + payment.PaymentStatus}
	switch outcome {
	case GatewayPaid:
		_, err = s.Approve(ctx, decision)
	case GatewayFailed:
		_, err = s.Reject(ctx, decision)
	}
	if errors.Is(err, ErrAlreadyProcessed) {
		err = nil
	}
	return outcome, err
}
