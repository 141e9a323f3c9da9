package models

import "time"

type BonusType string

const (
	BonusReferral     BonusType = "REFERRAL"
	BonusRegistration BonusType = "REGISTRATION"
	BonusFirstDeposit BonusType = "FIRST_DEPOSIT"
)

// BonusClaim marks a once-per-user bonus as granted. The unique index makes a second grant impossible.
type BonusClaim struct {
	ID                  int64     `gorm:"primaryKey;autoIncrement" json:"id,string"`
	UserId              int64     `gorm:"column:user_id;not null;uniqueIndex:idx_bonus_claim_user_kind" json:"user_id,string"`
	Kind                BonusType `gorm:"column:kind;size:30;not null;uniqueIndex:idx_bonus_claim_user_kind" json:"kind"`
	SourceTransactionId int64     `gorm:"column:source_transaction_id;not null" json:"source_transaction_id,string"`
	CreatedAt           time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (BonusClaim) TableName() string {
	return "bonus_claims"
}
