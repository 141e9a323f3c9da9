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

	"invest-service/internal/metrics"
	"invest-service/internal/models"
	"invest-service/pkg/common"
)

type WithdrawalService struct {
	DB            *gorm.DB
	Wallets       *WalletService
	Ledger        *LedgerService
	Settings      *SettingsService
	Notifications *NotificationService
	Audit         *AuditService
	Guard         *ApprovalGuard
	Effects       *EffectRunner
	Metrics       *metrics.Collector
	Timeout       time.Duration
}

type RequestWithdrawalDTO struct {
	UserId           int64
	Amount           decimal.Decimal
	PaymentAccountId int64
}

// RequestWithdrawal records a PENDING withdrawal from the PROFIT wallet. Funds
// move only when an admin approves it.
func (s *WithdrawalService) RequestWithdrawal(ctx context.Context, data RequestWithdrawalDTO) (*models.Transaction, error) {
	if !data.Amount.IsPositive() {
		return nil, validationError("amount must be positive")
	}

	settings, err := s.Settings.All(ctx)
	if err != nil {
		return nil, err
	}
	minimum := settings[models.SettingMinimumWithdrawal]
	if minimum.IsPositive() && data.Amount.LessThan(minimum) {
		return nil, validationError("minimum withdrawable amount is %s", minimum.StringFixed(2))
	}
	fee := percentOf(data.Amount, settings[models.SettingWithdrawalFeePercentage])
	if fee.GreaterThanOrEqual(data.Amount) {
		return nil, validationError("amount does not cover the withdrawal fee")
	}

	db := s.DB.WithContext(ctx)
	var account models.PaymentAccount
	if err := db.Where("id = ? AND user_id = ?", data.PaymentAccountId, data.UserId).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("payment account", data.PaymentAccountId)
		}
		return nil, err
	}

	var wallet models.Wallet
	err = db.Where("user_id = ? AND type = ?", data.UserId, models.WalletProfit).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && wallet.Balance.LessThan(data.Amount)) {
		return nil, ErrInsufficientBalance
	}
	if err != nil {
		return nil, err
	}

	trx, err := s.Ledger.Create(db, CreateTransactionDTO{
		UserId:           data.UserId,
		WalletId:         &wallet.ID,
		Type:             models.TransactionWithdrawal,
		Amount:           data.Amount,
		Fee:              fee,
		PaymentAccountId: &account.ID,
		Metadata: map[string]any{
			"provider":           account.Provider,
			"account_type":       string(account.Type),
			"account_identifier": account.AccountIdentifier,
			"net_amount":         data.Amount.Sub(fee).String(),
		},
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"transaction_id": trx.ID,
		"user_id":        trx.UserId,
		"amount":         trx.Amount.String(),
	}).Info("withdrawal requested")
	return trx, nil
}

// Decide dispatches an admin decision to Approve or Reject.
func (s *WithdrawalService) Decide(ctx context.Context, data DecisionDTO) (*DecisionResult, error) {
	switch data.Action {
	case ActionApprove:
		return s.Approve(ctx, data)
	case ActionReject:
		return s.Reject(ctx, data)
	}
	return nil, validationError("action must be %q or %q", ActionApprove, ActionReject)
}

// Approve debits the PROFIT wallet and completes the withdrawal. The debit runs
// first: when it fails the transaction rolls back and the withdrawal stays PENDING.
func (s *WithdrawalService) Approve(ctx context.Context, data DecisionDTO) (result *DecisionResult, err error) {
	started := time.Now()
	defer func() { s.Metrics.RecordApproval("withdrawal", ActionApprove, outcomeLabel(err), time.Since(started)) }()

	release, err := s.Guard.Acquire(ctx, "withdrawal", data.TransactionId)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := s.loadPendingWithdrawal(ctx, data.TransactionId); err != nil {
		return nil, err
	}

	txCtx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	var completed models.Transaction
	err = s.DB.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.Ledger.FindForUpdate(tx, data.TransactionId)
		if err != nil {
			return err
		}
		if locked.Type != models.TransactionWithdrawal {
			return notFoundError("withdrawal", data.TransactionId)
		}
		if locked.Status != models.StatusPending {
			return ErrAlreadyProcessed
		}

		wallet, err := s.Wallets.GetOrCreateWallet(tx, locked.UserId, models.WalletProfit)
		if err != nil {
			return err
		}
		if err := s.Wallets.Debit(tx, wallet.ID, locked.Amount); err != nil {
			return err
		}

		if err := s.Ledger.Transition(tx, locked.ID, models.StatusCompleted, TransitionOptions{
			WalletId: &wallet.ID,
			Metadata: mergeMetadata(locked.Metadata, map[string]any{
				models.MetaProcessedBy: strconv.FormatInt(data.ActorId, 10),
			}),
		}); err != nil {
			return err
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
		"actor_id":       data.ActorId,
	}).Info("withdrawal approved")

	s.Effects.Run(ctx,
		s.notifyEffect(NotifyDTO{
			UserId: completed.UserId,
			Type:   "WITHDRAWAL_APPROVED",
			Title:  "Withdrawal approved",
			Message: fmt.Sprintf("Your withdrawal %s of $%s is on its way.",
				completed.Reference, completed.Amount.Sub(completed.Fee).StringFixed(2)),
			Metadata: map[string]any{"transactionId": strconv.FormatInt(completed.ID, 10)},
		}),
		auditEffect(s.Audit, data, "WITHDRAWAL_APPROVED", &completed),
	)
	return &DecisionResult{Transaction: &completed}, nil
}

// Reject cancels a PENDING withdrawal. A RejectStatus of FAILED marks it failed instead.
func (s *WithdrawalService) Reject(ctx context.Context, data DecisionDTO) (result *DecisionResult, err error) {
	started := time.Now()
	defer func() { s.Metrics.RecordApproval("withdrawal", ActionReject, outcomeLabel(err), time.Since(started)) }()

	status := data.RejectStatus
	if status == "" {
		status = models.StatusCancelled
	}
	if status != models.StatusCancelled && status != models.StatusFailed {
		return nil, validationError("a withdrawal can only be rejected as CANCELLED or FAILED")
	}

	release, err := s.Guard.Acquire(ctx, "withdrawal", data.TransactionId)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := s.loadPendingWithdrawal(ctx, data.TransactionId); err != nil {
		return nil, err
	}

	txCtx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	var rejected models.Transaction
	err = s.DB.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.Ledger.FindForUpdate(tx, data.TransactionId)
		if err != nil {
			return err
		}
		if locked.Type != models.TransactionWithdrawal {
			return notFoundError("withdrawal", data.TransactionId)
		}

		extra := map[string]any{models.MetaProcessedBy: strconv.FormatInt(data.ActorId, 10)}
		if data.Reason != "" {
			extra[models.MetaRejectionReason] = data.Reason
		}
		if err := s.Ledger.Transition(tx, locked.ID, status, TransitionOptions{
			Metadata: mergeMetadata(locked.Metadata, extra),
		}); err != nil {
			return err
		}
		return tx.First(&rejected, locked.ID).Error
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"transaction_id": rejected.ID,
		"status":         rejected.Status,
		"actor_id":       data.ActorId,
	}).Info("withdrawal rejected")

	message := fmt.Sprintf("Your withdrawal %s was not approved.", rejected.Reference)
	if data.Reason != "" {
		message += " Reason: " + data.Reason
	}
	s.Effects.Run(ctx,
		s.notifyEffect(NotifyDTO{
			UserId:   rejected.UserId,
			Type:     "WITHDRAWAL_REJECTED",
			Title:    "Withdrawal rejected",
			Message:  message,
			Metadata: map[string]any{"transactionId": strconv.FormatInt(rejected.ID, 10)},
		}),
		auditEffect(s.Audit, data, "WITHDRAWAL_REJECTED", &rejected),
	)
	return &DecisionResult{Transaction: &rejected}, nil
}

func (s *WithdrawalService) ListWithdrawals(ctx context.Context, status models.TransactionStatus, page, limit int) ([]models.Transaction, common.Pagination, error) {
	return s.Ledger.List(ctx, ListTransactionsDTO{
		Type:   models.TransactionWithdrawal,
		Status: status,
		Page:   page,
		Limit:  limit,
	})
}

func (s *WithdrawalService) loadPendingWithdrawal(ctx context.Context, id int64) (*models.Transaction, error) {
	var trx models.Transaction
	if err := s.DB.WithContext(ctx).First(&trx, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("withdrawal", id)
		}
		return nil, err
	}
	if trx.Type != models.TransactionWithdrawal {
		return nil, notFoundError("withdrawal", id)
	}
	if trx.Status != models.StatusPending {
		return nil, ErrAlreadyProcessed
	}
	return &trx, nil
}

func (s *WithdrawalService) timeout() time.Duration {
	if s.Timeout <= 0 {
		return 10 * time.Second
	}
	return s.Timeout
}

func (s *WithdrawalService) notifyEffect(n NotifyDTO) Effect {
	return Effect{Name: "notify", Run: func(ctx context.Context) error {
		if s.Notifications == nil {
			return nil
		}
		_, err := s.Notifications.Notify(ctx, n)
		return err
	}}
}
