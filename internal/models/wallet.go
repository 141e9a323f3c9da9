package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type WalletType string

const (
	WalletDeposit WalletType = "DEPOSIT"
	WalletProfit  WalletType = "PROFIT"
	WalletBonus   WalletType = "BONUS"
)

func (t WalletType) Valid() bool {
	switch t {
	case WalletDeposit, WalletProfit, WalletBonus:
		return true
	}
	return false
}

// Wallet is one balance bucket of a user. A user holds at most one wallet per type.
type Wallet struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id,string"`
	UserId        int64           `gorm:"column:user_id;not null;uniqueIndex:idx_wallet_user_type" json:"user_id,string"`
	Type          WalletType      `gorm:"column:type;size:20;not null;uniqueIndex:idx_wallet_user_type" json:"type"`
	Balance       decimal.Decimal `gorm:"column:balance;type:decimal(20,8);not null;check:chk_wallets_balance,balance >= 0" json:"balance"`
	LockedBalance decimal.Decimal `gorm:"column:locked_balance;type:decimal(20,8);not null;check:chk_wallets_locked_balance,locked_balance >= 0" json:"locked_balance"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Wallet) TableName() string {
	return "wallets"
}
