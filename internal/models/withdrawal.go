package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WithdrawalSource selects which balance a withdrawal debits
type WithdrawalSource string

const (
	// WithdrawalSourceBalance debits the derived spendable balance
	WithdrawalSourceBalance WithdrawalSource = "balance"
	// WithdrawalSourceInvest debits the principal directly
	WithdrawalSourceInvest WithdrawalSource = "balance_invest"
)

// WithdrawalStatus is the lifecycle state of a withdrawal request
type WithdrawalStatus int

const (
	WithdrawalStatusPending    WithdrawalStatus = 0
	WithdrawalStatusProcessing WithdrawalStatus = 1
	WithdrawalStatusCompleted  WithdrawalStatus = 2
	WithdrawalStatusCancelled  WithdrawalStatus = 3
)

// Withdrawal is a user-initiated debit request. Funds are debited at
// creation time; terminal transitions are operator-driven.
type Withdrawal struct {
	ID              uuid.UUID        `gorm:"type:uuid;primary_key" json:"id"`
	UserID          uuid.UUID        `gorm:"type:uuid;index" json:"user_id"`
	User            User             `gorm:"foreignKey:UserID" json:"-"`
	SourceType      WithdrawalSource `gorm:"type:varchar(20);not null" json:"source_type"`
	Policy          string           `gorm:"type:varchar(20);not null" json:"policy"`
	RequestedAmount decimal.Decimal  `gorm:"type:numeric(20,2);not null" json:"requested_amount"`
	Fee             decimal.Decimal  `gorm:"type:numeric(20,2);not null" json:"fee"`
	NetAmount       decimal.Decimal  `gorm:"type:numeric(20,2);not null" json:"net_amount"`
	BlockedAmount   decimal.Decimal  `gorm:"type:numeric(20,2);not null;default:0" json:"blocked_amount"`
	Status          WithdrawalStatus `gorm:"not null;default:0;index" json:"status"`
	KeyType         string           `gorm:"type:varchar(20);not null" json:"key_type"`
	KeyValue        string           `gorm:"type:varchar(255);not null" json:"key_value"`
	ProcessedBy     *uuid.UUID       `gorm:"type:uuid" json:"processed_by,omitempty"`
	ProcessedAt     *time.Time       `json:"processed_at,omitempty"`
	CreatedAt       time.Time        `gorm:"default:CURRENT_TIMESTAMP;index" json:"created_at"`
	UpdatedAt       time.Time        `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt       gorm.DeletedAt   `gorm:"index" json:"-"`
}
