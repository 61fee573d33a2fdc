package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// YieldScheduleWindow is a configured time-of-day window with a fixed
// profit percentage, claimable once per day. Read-only reference data.
type YieldScheduleWindow struct {
	ID         uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	StartTime  string          `gorm:"type:varchar(5);not null" json:"start_time"` // "HH:MM"
	EndTime    string          `gorm:"type:varchar(5);not null" json:"end_time"`
	Percentage decimal.Decimal `gorm:"type:numeric(6,3);not null" json:"percentage"` // percent units, 1.5 == 1.5%
	OrderIndex int             `gorm:"not null;default:0" json:"order_index"`
	CreatedAt  time.Time       `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

// Label returns the window label used in yield entry descriptions
func (w YieldScheduleWindow) Label() string {
	return w.StartTime + "-" + w.EndTime
}

// Operation is the cosmetic trade log written alongside a yield claim.
// It exists purely for user-facing presentation and carries no monetary
// authority.
type Operation struct {
	ID         uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	UserID     uuid.UUID       `gorm:"type:uuid;index" json:"user_id"`
	ScheduleID uuid.UUID       `gorm:"type:uuid;index" json:"schedule_id"`
	Asset      string          `gorm:"type:varchar(30);not null" json:"asset"`
	EntryPrice decimal.Decimal `gorm:"type:numeric(20,8)" json:"entry_price"`
	ExitPrice  decimal.Decimal `gorm:"type:numeric(20,8)" json:"exit_price"`
	Profit     decimal.Decimal `gorm:"type:numeric(20,2)" json:"profit"`
	CreatedAt  time.Time       `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}
