package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"invest-service/internal/models"
	"invest-service/pkg/common"
)

const maxReferenceAttempts = 5

type LedgerService struct {
	DB *gorm.DB
	// NewReference builds a candidate reference for a prefix. Defaults to common.GenerateReference.
	NewReference func(prefix string) string
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{DB: db, NewReference: common.GenerateReference}
}

type CreateTransactionDTO struct {
	UserId           int64
	WalletId         *int64
	Type             models.TransactionType
	Status           models.TransactionStatus // PENDING when empty
	Amount           decimal.Decimal
	Fee              decimal.Decimal
	PaymentAccountId *int64
	Metadata         map[string]any
	ProcessedAt      *time.Time
}

// Create appends a ledger entry with a fresh reference. A reference collision is
// retried in its own savepoint so the surrounding unit of work survives it.
func (s *LedgerService) Create(tx *gorm.DB, data CreateTransactionDTO) (*models.Transaction, error) {
	if !data.Type.Valid() {
		return nil, validationError("unknown transaction type %q", data.Type)
	}
	if !data.Amount.IsPositive() {
		return nil, validationError("amount must be positive")
	}
	if data.Fee.IsNegative() {
		return nil, validationError("fee must not be negative")
	}
	status := data.Status
	if status == "" {
		status = models.StatusPending
	}

	db := orDB(tx, s.DB)
	newReference := s.NewReference
	if newReference == nil {
		newReference = common.GenerateReference
	}

	var lastErr error
	for attempt := 0; attempt < maxReferenceAttempts; attempt++ {
		trx := models.Transaction{
			Reference:        newReference(data.Type.ReferencePrefix()),
			UserId:           data.UserId,
			WalletId:         data.WalletId,
			Type:             data.Type,
			Status:           status,
			Amount:           data.Amount,
			Fee:              data.Fee,
			PaymentAccountId: data.PaymentAccountId,
			Metadata:         data.Metadata,
			ProcessedAt:      data.ProcessedAt,
		}
		err := db.Transaction(func(sp *gorm.DB) error {
			return sp.Create(&trx).Error
		})
		if err == nil {
			return &trx, nil
		}
		if !isDuplicateKey(err) {
			return nil, fmt.Errorf("create transaction: %w", err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("allocate transaction reference after %d attempts: %w", maxReferenceAttempts, lastErr)
}

// FindForUpdate loads a transaction and locks its row until the unit of work ends.
func (s *LedgerService) FindForUpdate(tx *gorm.DB, id int64) (*models.Transaction, error) {
	var trx models.Transaction
	err := orDB(tx, s.DB).Clauses(clause.Locking{Strength: "UPDATE"}).First(&trx, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError("transaction", id)
	}
	if err != nil {
		return nil, err
	}
	return &trx, nil
}

type TransitionOptions struct {
	WalletId    *int64
	Metadata    map[string]any // replaces the stored metadata when non-nil
	ProcessedAt time.Time
}

// Transition moves a PENDING transaction to a terminal status. The update is
// conditional on the row still being PENDING; losing that race is ErrAlreadyProcessed.
func (s *LedgerService) Transition(tx *gorm.DB, id int64, status models.TransactionStatus, opts TransitionOptions) error {
	if !status.Terminal() {
		return validationError("cannot transition to %q", status)
	}
	db := orDB(tx, s.DB)

	processedAt := opts.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now()
	}

	values := models.Transaction{
		Status:      status,
		ProcessedAt: &processedAt,
		WalletId:    opts.WalletId,
		Metadata:    opts.Metadata,
		UpdatedAt:   time.Now(),
	}
	columns := []string{"status", "processed_at", "updated_at"}
	if opts.WalletId != nil {
		columns = append(columns, "wallet_id")
	}
	if opts.Metadata != nil {
		columns = append(columns, "metadata")
	}

	res := db.Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, models.StatusPending).
		Select(columns).
		Updates(&values)
	if res.Error != nil {
		return fmt.Errorf("transition transaction %d: %w", id, res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := db.Model(&models.Transaction{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return notFoundError("transaction", id)
	}
	return ErrAlreadyProcessed
}

// Conversion is the informational local-currency view of a USD amount.
type Conversion struct {
	Currency       string
	OriginalAmount decimal.Decimal
	Rate           decimal.Decimal
}

func (c Conversion) metadata() map[string]any {
	return map[string]any{
		models.MetaOriginalCurrency: c.Currency,
		models.MetaOriginalAmount:   c.OriginalAmount.String(),
		models.MetaExchangeRate:     c.Rate.String(),
	}
}

// AttachConversion records conversion metadata. It is the one write allowed on a
// transaction after it reached a terminal status.
func (s *LedgerService) AttachConversion(tx *gorm.DB, id int64, conv Conversion) error {
	db := orDB(tx, s.DB)

	var trx models.Transaction
	if err := db.Select("id", "metadata").First(&trx, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundError("transaction", id)
		}
		return err
	}

	res := db.Model(&models.Transaction{}).
		Where("id = ?", id).
		Select("metadata").
		Updates(&models.Transaction{Metadata: mergeMetadata(trx.Metadata, conv.metadata())})
	if res.Error != nil {
		return fmt.Errorf("attach conversion to %d: %w", id, res.Error)
	}
	return nil
}

type ListTransactionsDTO struct {
	UserId int64
	Type   models.TransactionType
	Status models.TransactionStatus
	Page   int
	Limit  int
}

// List returns the newest transactions first, filtered by the non-empty fields.
func (s *LedgerService) List(ctx context.Context, data ListTransactionsDTO) ([]models.Transaction, common.Pagination, error) {
	if data.Type != "" && !data.Type.Valid() {
		return nil, common.Pagination{}, validationError("unknown transaction type %q", data.Type)
	}
	page, limit := common.NormalizePage(data.Page, data.Limit)

	query := s.DB.WithContext(ctx).Model(&models.Transaction{})
	if data.UserId != 0 {
		query = query.Where("user_id = ?", data.UserId)
	}
	if data.Type != "" {
		query = query.Where("type = ?", data.Type)
	}
	if data.Status != "" {
		query = query.Where("status = ?", data.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, common.Pagination{}, err
	}

	transactions := make([]models.Transaction, 0)
	if err := query.Order("created_at DESC").Order("id DESC").
		Offset(common.Offset(page, limit)).Limit(limit).
		Find(&transactions).Error; err != nil {
		return nil, common.Pagination{}, err
	}
	return transactions, common.NewPagination(total, page, limit), nil
}
