package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentMethod represents how a payment is made
type PaymentMethod string

const (
	PaymentMethodPix    PaymentMethod = "pix"
	PaymentMethodCrypto PaymentMethod = "crypto"
	PaymentMethodBonus  PaymentMethod = "bonus"
)

// PaymentCategory distinguishes deposits from license purchases
type PaymentCategory string

const (
	PaymentCategoryDeposit PaymentCategory = "deposit"
	PaymentCategoryLicense PaymentCategory = "license"
)

// PaymentStatus is the settlement state of a payment
type PaymentStatus int

const (
	PaymentStatusPending   PaymentStatus = 0
	PaymentStatusApproved  PaymentStatus = 1
	PaymentStatusConfirmed PaymentStatus = 2
	PaymentStatusCancelled PaymentStatus = 3
)

// Payment is a deposit or license-purchase intent. It becomes CONFIRMED
// exactly once; ledger effects and commission distribution fire at that
// transition, guarded by conditional updates at the storage layer.
type Payment struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	UserID              uuid.UUID       `gorm:"type:uuid;index" json:"user_id"`
	User                User            `gorm:"foreignKey:UserID" json:"-"`
	Method              PaymentMethod   `gorm:"type:varchar(20);not null" json:"method"`
	Category            PaymentCategory `gorm:"type:varchar(20);not null" json:"category"`
	AmountCents         int64           `gorm:"not null" json:"amount_cents"`
	Status              PaymentStatus   `gorm:"not null;default:0;index" json:"status"`
	ExternalTxID        string          `gorm:"type:varchar(100);index" json:"external_tx_id"`
	ClientIdentifier    string          `gorm:"type:varchar(100);uniqueIndex" json:"client_identifier"`
	CommissionProcessed bool            `gorm:"default:false;index" json:"commission_processed"`
	PayCode             string          `gorm:"type:text" json:"pay_code"`
	QRCode              string          `gorm:"type:text" json:"qr_code"`
	Metadata            JSON            `gorm:"type:jsonb" json:"metadata"`
	CreatedAt           time.Time       `gorm:"default:CURRENT_TIMESTAMP;index" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt           gorm.DeletedAt  `gorm:"index" json:"-"`
}

// WebhookStatus is the processing state of an inbound webhook record
type WebhookStatus string

const (
	WebhookStatusProcessing WebhookStatus = "processing"
	WebhookStatusProcessed  WebhookStatus = "processed"
	WebhookStatusFailed     WebhookStatus = "failed"
)

// Gateway webhook event names
const (
	WebhookEventTransactionCreated  = "TRANSACTION_CREATED"
	WebhookEventTransactionPaid     = "TRANSACTION_PAID"
	WebhookEventTransactionCanceled = "TRANSACTION_CANCELED"
	WebhookEventTransactionRefunded = "TRANSACTION_REFUNDED"
)

// WebhookRecord is an append-only audit row for every inbound gateway
// notification. It is persisted before any business logic runs.
type WebhookRecord struct {
	ID           uuid.UUID     `gorm:"type:uuid;primary_key" json:"id"`
	Event        string        `gorm:"type:varchar(50);index" json:"event"`
	ExternalTxID string        `gorm:"type:varchar(100);index" json:"external_tx_id"`
	RawData      JSON          `gorm:"type:jsonb" json:"raw_data"`
	Status       WebhookStatus `gorm:"type:varchar(20);not null;default:'processing';index" json:"status"`
	RetryCount   int           `gorm:"default:0" json:"retry_count"`
	LastError    string        `gorm:"type:text" json:"last_error"`
	CreatedAt    time.Time     `gorm:"default:CURRENT_TIMESTAMP;index" json:"created_at"`
	UpdatedAt    time.Time     `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}
