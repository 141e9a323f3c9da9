package models

import "time"

const (
	SettingRegistrationBonusPercentage = "registration_bonus_percentage"
	SettingReferralBonusPercentage     = "referral_bonus_percentage"
	SettingFirstDepositBonusPercentage = "first_deposit_bonus_percentage"
	SettingWithdrawalFeePercentage     = "withdrawal_fee_percentage"
	SettingMinimumWithdrawal           = "minimum_withdrawal_amount"
	SettingMinimumDeposit              = "minimum_deposit_amount"
)

type SystemSetting struct {
	Key       string    `gorm:"column:key;primaryKey;size:100" json:"key"`
	Value     string    `gorm:"column:value;size:255;not null" json:"value"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (SystemSetting) TableName() string {
	return "system_settings"
}
