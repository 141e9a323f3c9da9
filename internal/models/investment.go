package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Plan struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id,string"`
	Name          string          `gorm:"column:name;size:150;not null" json:"name"`
	Description   string          `gorm:"column:description;type:text" json:"description"`
	MinAmount     decimal.Decimal `gorm:"column:min_amount;type:decimal(20,8);not null" json:"min_amount"`
	MaxAmount     decimal.Decimal `gorm:"column:max_amount;type:decimal(20,8);not null" json:"max_amount"` // zero means no upper bound
	RoiPercentage decimal.Decimal `gorm:"column:roi_percentage;type:decimal(10,4);not null" json:"roi_percentage"`
	DurationDays  int             `gorm:"column:duration_days;not null" json:"duration_days"`
	IsActive      bool            `gorm:"column:is_active;not null" json:"is_active"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Plan) TableName() string {
	return "plans"
}

type InvestmentStatus string

const (
	InvestmentActive    InvestmentStatus = "ACTIVE"
	InvestmentCompleted InvestmentStatus = "COMPLETED"
	InvestmentCancelled InvestmentStatus = "CANCELLED"
)

type Investment struct {
	ID             int64            `gorm:"primaryKey;autoIncrement" json:"id,string"`
	UserId         int64            `gorm:"column:user_id;not null;index" json:"user_id,string"`
	PlanId         int64            `gorm:"column:plan_id;not null;index" json:"plan_id,string"`
	Amount         decimal.Decimal  `gorm:"column:amount;type:decimal(20,8);not null" json:"amount"`
	ExpectedProfit decimal.Decimal  `gorm:"column:expected_profit;type:decimal(20,8);not null" json:"expected_profit"`
	Status         InvestmentStatus `gorm:"column:status;size:20;not null;index:idx_investment_status_maturity" json:"status"`
	TransactionId  int64            `gorm:"column:transaction_id;not null" json:"transaction_id,string"`
	StartedAt      time.Time        `gorm:"column:started_at;not null" json:"started_at"`
	MaturesAt      time.Time        `gorm:"column:matures_at;not null;index:idx_investment_status_maturity" json:"matures_at"`
	CompletedAt    *time.Time       `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Investment) TableName() string {
	return "investments"
}
