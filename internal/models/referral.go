package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReferralStatus string

const (
	ReferralPending  ReferralStatus = "PENDING"
	ReferralActive   ReferralStatus = "ACTIVE"
	ReferralRewarded ReferralStatus = "REWARDED"
	ReferralInactive ReferralStatus = "INACTIVE"
)

// Referral links a referee (UserId) to the user who referred them. One row per referee.
type Referral struct {
	ID             int64           `gorm:"primaryKey;autoIncrement" json:"id,string"`
	ReferredBy     int64           `gorm:"column:referred_by;not null;index" json:"referred_by,string"`
	UserId         int64           `gorm:"column:user_id;not null;uniqueIndex" json:"user_id,string"`
	Earnings       decimal.Decimal `gorm:"column:earnings;type:decimal(20,8);not null" json:"earnings"`
	Status         ReferralStatus  `gorm:"column:status;size:20;not null" json:"status"`
	SignedUpAt     time.Time       `gorm:"column:signed_up_at;not null" json:"signed_up_at"`
	FirstDepositAt *time.Time      `gorm:"column:first_deposit_at" json:"first_deposit_at,omitempty"`
	LastEarningAt  *time.Time      `gorm:"column:last_earning_at" json:"last_earning_at,omitempty"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Referral) TableName() string {
	return "referrals"
}

// ReferralBonus is the audit link between a referral and the transaction that paid it.
type ReferralBonus struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id,string"`
	ReferralId    int64           `gorm:"column:referral_id;not null;index" json:"referral_id,string"`
	TransactionId int64           `gorm:"column:transaction_id;not null;uniqueIndex" json:"transaction_id,string"`
	Amount        decimal.Decimal `gorm:"column:amount;type:decimal(20,8);not null" json:"amount"`
	Percentage    decimal.Decimal `gorm:"column:percentage;type:decimal(10,4);not null" json:"percentage"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (ReferralBonus) TableName() string {
	return "referral_bonuses"
}
