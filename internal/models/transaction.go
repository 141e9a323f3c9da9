package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionDeposit    TransactionType = "DEPOSIT"
	TransactionWithdrawal TransactionType = "WITHDRAWAL"
	TransactionInvestment TransactionType = "INVESTMENT"
	TransactionDividend   TransactionType = "DIVIDEND"
	TransactionBonus      TransactionType = "BONUS"
	TransactionFee        TransactionType = "FEE"
)

// ReferencePrefix is the human readable prefix of references for this type.
func (t TransactionType) ReferencePrefix() string {
	switch t {
	case TransactionDeposit:
		return "DEP"
	case TransactionWithdrawal:
		return "WDR"
	case TransactionInvestment:
		return "INV"
	case TransactionDividend:
		return "DIV"
	case TransactionBonus:
		return "BON"
	case TransactionFee:
		return "FEE"
	}
	return "TRX"
}

func (t TransactionType) Valid() bool {
	return t.ReferencePrefix() != "TRX"
}

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "PENDING"
	StatusCompleted TransactionStatus = "COMPLETED"
	StatusFailed    TransactionStatus = "FAILED"
	StatusCancelled TransactionStatus = "CANCELLED"
)

// Terminal reports whether no further transition is allowed from s.
func (s TransactionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Metadata keys written by the workflows.
const (
	MetaBonusType         = "bonusType"
	MetaOriginalCurrency  = "original_currency"
	MetaOriginalAmount    = "original_amount"
	MetaExchangeRate      = "exchange_rate"
	MetaRejectionReason   = "rejection_reason"
	MetaProcessedBy       = "processed_by"
	MetaGatewayPaymentId  = "gateway_payment_id"
	MetaGatewayPayAddress = "gateway_pay_address"
	MetaGatewayPayAmount  = "gateway_pay_amount"
	MetaGatewayCurrency   = "gateway_pay_currency"
	MetaSourceTransaction = "source_transaction_id"
)

type Transaction struct {
	ID               int64             `gorm:"primaryKey;autoIncrement" json:"id,string"`
	Reference        string            `gorm:"column:reference;size:32;not null;uniqueIndex" json:"reference"`
	UserId           int64             `gorm:"column:user_id;not null;index:idx_trx_user_type_status" json:"user_id,string"`
	WalletId         *int64            `gorm:"column:wallet_id;index" json:"wallet_id,string,omitempty"`
	Type             TransactionType   `gorm:"column:type;size:20;not null;index:idx_trx_user_type_status" json:"type"`
	Status           TransactionStatus `gorm:"column:status;size:20;not null;index:idx_trx_user_type_status" json:"status"`
	Amount           decimal.Decimal   `gorm:"column:amount;type:decimal(20,8);not null" json:"amount"`
	Fee              decimal.Decimal   `gorm:"column:fee;type:decimal(20,8);not null" json:"fee"`
	PaymentAccountId *int64            `gorm:"column:payment_account_id" json:"payment_account_id,string,omitempty"`
	Metadata         map[string]any    `gorm:"column:metadata;type:text;serializer:json" json:"metadata,omitempty"`
	ProcessedAt      *time.Time        `gorm:"column:processed_at" json:"processed_at,omitempty"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}
