package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerKind classifies a ledger entry
type LedgerKind string

const (
	LedgerKindDeposit    LedgerKind = "DEPOSIT"
	LedgerKindWithdrawal LedgerKind = "WITHDRAWAL"
	LedgerKindInvestment LedgerKind = "INVESTMENT"
	LedgerKindYield      LedgerKind = "YIELD"
	LedgerKindReferral   LedgerKind = "REFERRAL"
	LedgerKindBonus      LedgerKind = "BONUS"
	LedgerKindFee        LedgerKind = "FEE"
	LedgerKindRefund     LedgerKind = "REFUND"
)

// LedgerStatus is the status of a ledger entry
type LedgerStatus int

const (
	LedgerStatusPending   LedgerStatus = 0
	LedgerStatusCompleted LedgerStatus = 1
	LedgerStatusCancelled LedgerStatus = 2
)

// SpendableKinds are the entry kinds that make up the derived spendable
// balance. DEPOSIT and INVESTMENT move principal, not spendable funds.
var SpendableKinds = []LedgerKind{
	LedgerKindYield,
	LedgerKindReferral,
	LedgerKindBonus,
	LedgerKindWithdrawal,
}

// LedgerEntry is an immutable financial fact attributed to a user. Entries
// are created once and never mutated, except that repair tooling may append
// a marker into Metadata. BalanceBefore/BalanceAfter are advisory snapshots
// taken at credit time and are never used for future computation.
type LedgerEntry struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	UserID        uuid.UUID       `gorm:"type:uuid;index;uniqueIndex:idx_ledger_user_reference" json:"user_id"`
	User          User            `gorm:"foreignKey:UserID" json:"-"`
	Kind          LedgerKind      `gorm:"type:varchar(20);not null;index" json:"kind"`
	Amount        decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"amount"`
	Status        LedgerStatus    `gorm:"not null;default:0;index" json:"status"`
	BalanceBefore decimal.Decimal `gorm:"type:numeric(20,2)" json:"balance_before"`
	BalanceAfter  decimal.Decimal `gorm:"type:numeric(20,2)" json:"balance_after"`
	// The unique (user, reference) pair makes the insert itself the
	// idempotency guard; entries without a reference are exempt.
	ReferenceID *string `gorm:"type:varchar(100);index;uniqueIndex:idx_ledger_user_reference" json:"reference_id,omitempty"`
	ReferenceType *string         `gorm:"type:varchar(50)" json:"reference_type,omitempty"`
	Level         *int            `json:"level,omitempty"`
	Description   string          `gorm:"type:text" json:"description"`
	Metadata      JSON            `gorm:"type:jsonb" json:"metadata"`
	CreatedAt     time.Time       `gorm:"default:CURRENT_TIMESTAMP;index" json:"created_at"`
}
