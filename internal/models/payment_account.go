package models

import (
	"time"

	"gorm.io/gorm"
)

type PaymentAccountType string

const (
	PaymentAccountCrypto PaymentAccountType = "CRYPTO"
	PaymentAccountMobile PaymentAccountType = "MOBILE"
)

// PaymentAccount is a user's deposit source or payout destination.
// At most one account per user carries IsDefault; services keep that true.
type PaymentAccount struct {
	ID                int64              `gorm:"primaryKey;autoIncrement" json:"id,string"`
	UserId            int64              `gorm:"column:user_id;not null;index" json:"user_id,string"`
	Type              PaymentAccountType `gorm:"column:type;size:20;not null" json:"type"`
	Provider          string             `gorm:"column:provider;size:100;not null" json:"provider"`
	AccountIdentifier string             `gorm:"column:account_identifier;size:255;not null" json:"account_identifier"`
	AccountName       string             `gorm:"column:account_name;size:150" json:"account_name"`
	IsDefault         bool               `gorm:"column:is_default;not null" json:"is_default"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	DeletedAt         gorm.DeletedAt     `gorm:"column:deleted_at;index" json:"-"`
}

func (PaymentAccount) TableName() string {
	return "payment_accounts"
}
