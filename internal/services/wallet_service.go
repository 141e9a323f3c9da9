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
)

type WalletService struct {
	DB *gorm.DB
}

func NewWalletService(db *gorm.DB) *WalletService {
	return &WalletService{DB: db}
}

// GetOrCreateWallet returns the user's wallet of the given type, creating it on first use.
// The insert is a no-op on the (user_id, type) unique index, so concurrent callers
// converge on the same row.
func (s *WalletService) GetOrCreateWallet(tx *gorm.DB, userId int64, walletType models.WalletType) (*models.Wallet, error) {
	if !walletType.Valid() {
		return nil, validationError("unknown wallet type %q", walletType)
	}
	db := orDB(tx, s.DB)

	var wallet models.Wallet
	err := db.Where("user_id = ? AND type = ?", userId, walletType).First(&wallet).Error
	if err == nil {
		return &wallet, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find wallet: %w", err)
	}

	wallet = models.Wallet{
		UserId:        userId,
		Type:          walletType,
		Balance:       decimal.Zero,
		LockedBalance: decimal.Zero,
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&wallet).Error; err != nil {
		return nil, fmt.Errorf("create wallet: %w", err)
	}

	wallet = models.Wallet{}
	if err := db.Where("user_id = ? AND type = ?", userId, walletType).First(&wallet).Error; err != nil {
		return nil, fmt.Errorf("reload wallet: %w", err)
	}
	return &wallet, nil
}

// Credit adds amount to the wallet balance in SQL.
func (s *WalletService) Credit(tx *gorm.DB, walletId int64, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return validationError("credit amount must be positive")
	}

	res := orDB(tx, s.DB).Model(&models.Wallet{}).
		Where("id = ?", walletId).
		UpdateColumns(map[string]interface{}{
			"balance":    gorm.Expr("balance + ?", amount),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("credit wallet %d: %w", walletId, res.Error)
	}
	if res.RowsAffected == 0 {
		return notFoundError("wallet", walletId)
	}
	return nil
}

// Debit subtracts amount only while the balance covers it.
func (s *WalletService) Debit(tx *gorm.DB, walletId int64, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return validationError("debit amount must be positive")
	}
	db := orDB(tx, s.DB)

	res := db.Model(&models.Wallet{}).
		Where("id = ? AND balance >= ?", walletId, amount).
		UpdateColumns(map[string]interface{}{
			"balance":    gorm.Expr("balance - ?", amount),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("debit wallet %d: %w", walletId, res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := db.Model(&models.Wallet{}).Where("id = ?", walletId).Count(&count).Error; err != nil {
		return fmt.Errorf("debit wallet %d: %w", walletId, err)
	}
	if count == 0 {
		return notFoundError("wallet", walletId)
	}
	return ErrInsufficientBalance
}

// Balances lists the user's three wallets. Types never credited come back zeroed with no id.
func (s *WalletService) Balances(ctx context.Context, userId int64) ([]models.Wallet, error) {
	var wallets []models.Wallet
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userId).Find(&wallets).Error; err != nil {
		return nil, err
	}

	byType := make(map[models.WalletType]models.Wallet, len(wallets))
	for _, w := range wallets {
		byType[w.Type] = w
	}

	out := make([]models.Wallet, 0, 3)
	for _, t := range []models.WalletType{models.WalletDeposit, models.WalletProfit, models.WalletBonus} {
		w, ok := byType[t]
		if !ok {
			w = models.Wallet{UserId: userId, Type: t, Balance: decimal.Zero, LockedBalance: decimal.Zero}
		}
		out = append(out, w)
	}
	return out, nil
}
