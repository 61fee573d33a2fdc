package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pixvest/backend/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerService owns the append-only ledger. The spendable balance is
// always derived by summing completed entries; there is no update path
// for an entry's amount.
type LedgerService struct {
	db *gorm.DB
}

// NewLedgerService creates a new ledger service
func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{db: db}
}

// Round2 rounds a monetary value to 2 decimal places, half away from zero.
// All amounts are rounded at the point of computation, not at display time.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Append inserts an immutable ledger entry. Callers are responsible for
// idempotency via ReferenceID; Append itself never deduplicates.
func (s *LedgerService) Append(entry *models.LedgerEntry) (*models.LedgerEntry, error) {
	return s.AppendWithTx(s.db, entry)
}

// AppendWithTx inserts an immutable ledger entry using an existing transaction
func (s *LedgerService) AppendWithTx(tx *gorm.DB, entry *models.LedgerEntry) (*models.LedgerEntry, error) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	entry.Amount = Round2(entry.Amount)

	if err := tx.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("error creating ledger entry: %w", err)
	}
	return entry, nil
}

// BalanceOf returns the derived spendable balance for a user: the sum of
// completed YIELD, REFERRAL, BONUS and WITHDRAWAL entries.
func (s *LedgerService) BalanceOf(userID uuid.UUID) (decimal.Decimal, error) {
	return s.BalanceOfKinds(userID, models.SpendableKinds, nil, nil)
}

// BalanceOfWithTx is BalanceOf inside an existing transaction
func (s *LedgerService) BalanceOfWithTx(tx *gorm.DB, userID uuid.UUID) (decimal.Decimal, error) {
	return s.balanceOfKinds(tx, userID, models.SpendableKinds, nil, nil)
}

// BalanceOfKinds sums completed entries of the given kinds for a user,
// optionally bounded to a time window.
func (s *LedgerService) BalanceOfKinds(userID uuid.UUID, kinds []models.LedgerKind, from, to *time.Time) (decimal.Decimal, error) {
	return s.balanceOfKinds(s.db, userID, kinds, from, to)
}

func (s *LedgerService) balanceOfKinds(tx *gorm.DB, userID uuid.UUID, kinds []models.LedgerKind, from, to *time.Time) (decimal.Decimal, error) {
	q := tx.Model(&models.LedgerEntry{}).
		Where("user_id = ? AND status = ? AND kind IN ?", userID, models.LedgerStatusCompleted, kinds)
	if from != nil {
		q = q.Where("created_at >= ?", *from)
	}
	if to != nil {
		q = q.Where("created_at < ?", *to)
	}

	row := q.Select("COALESCE(SUM(amount), 0)").Row()
	var sum decimal.Decimal
	if err := row.Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("error summing ledger entries: %w", err)
	}
	return Round2(sum), nil
}

// HasReference reports whether a ledger entry with the given reference id
// already exists for the user. Used as the idempotency guard by the
// commission engine and settlement machine.
func (s *LedgerService) HasReference(userID uuid.UUID, referenceID string) (bool, error) {
	return s.HasReferenceWithTx(s.db, userID, referenceID)
}

// HasReferenceWithTx is HasReference inside an existing transaction
func (s *LedgerService) HasReferenceWithTx(tx *gorm.DB, userID uuid.UUID, referenceID string) (bool, error) {
	var entry models.LedgerEntry
	err := tx.Where("user_id = ? AND reference_id = ?", userID, referenceID).First(&entry).Error
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("error checking ledger reference: %w", err)
}

// HasAnyReferenceWithTx reports whether any ledger entry carries the given
// reference id, regardless of owner. The webhook settlement path uses it as
// defense in depth against duplicate deliveries.
func (s *LedgerService) HasAnyReferenceWithTx(tx *gorm.DB, referenceID string) (bool, error) {
	var entry models.LedgerEntry
	err := tx.Where("reference_id = ?", referenceID).First(&entry).Error
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("error checking ledger reference: %w", err)
}

// Statement returns a user's ledger entries, newest first, paginated
func (s *LedgerService) Statement(userID uuid.UUID, page, pageSize int) ([]models.LedgerEntry, int64, error) {
	var entries []models.LedgerEntry
	var total int64

	if err := s.db.Model(&models.LedgerEntry{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("error counting ledger entries: %w", err)
	}

	offset := (page - 1) * pageSize
	if err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&entries).Error; err != nil {
		return nil, 0, fmt.Errorf("error finding ledger entries: %w", err)
	}

	return entries, total, nil
}
