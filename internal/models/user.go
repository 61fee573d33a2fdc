package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TradingMode selects how yield windows are presented to the user
type TradingMode string

const (
	TradingModeAuto   TradingMode = "auto"
	TradingModeManual TradingMode = "manual"
)

// User represents a platform user. Principal is the invested capital and is
// mutated directly by deposits, license purchases and principal withdrawals.
// The spendable balance is never stored here; it is derived from the ledger.
type User struct {
	ID              uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	Email           string          `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Username        string          `gorm:"type:varchar(50);uniqueIndex" json:"username"`
	PasswordHash    string          `gorm:"type:varchar(255);not null" json:"-"`
	ReferralCode    string          `gorm:"type:varchar(60);uniqueIndex" json:"referral_code"`
	ReferredBy      *uuid.UUID      `gorm:"type:uuid;index" json:"referred_by,omitempty"`
	Principal       decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"principal"`
	LegacyBalance   decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"-"`
	Tier            int             `gorm:"default:0" json:"tier"`
	TradingMode     TradingMode     `gorm:"type:varchar(20);default:'auto'" json:"trading_mode"`
	TwoFactorSecret *string         `gorm:"type:varchar(255)" json:"-"`
	IsAdmin         bool            `gorm:"default:false" json:"is_admin"`
	CreatedAt       time.Time       `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"-"`
}
