package audit

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/pixvest/backend/internal/models"
	"gorm.io/gorm"
)

// RepairMarker is the metadata key stamped on ledger entries already
// applied to the legacy stored balance.
const RepairMarker = "repaired_balance"

// interBatchDelay throttles the repair loop to avoid overloading the
// database; it is not a correctness mechanism.
const interBatchDelay = 500 * time.Millisecond

// creditKinds are the ledger kinds the legacy balance must account for
var creditKinds = []models.LedgerKind{
	models.LedgerKindYield,
	models.LedgerKindReferral,
	models.LedgerKindBonus,
	models.LedgerKindWithdrawal,
}

// Summary is the repair output, always produced even on partial failure
type Summary struct {
	Scanned int
	Applied int
	Skipped int
	Errors  int
}

// Repairer backfills the legacy stored balance from ledger entries created
// before balance became ledger-derived. Marker-based idempotency makes it
// safe to re-run indefinitely; only Metadata is ever mutated on an entry.
type Repairer struct {
	db *gorm.DB
}

// NewRepairer creates a new repairer
func NewRepairer(db *gorm.DB) *Repairer {
	return &Repairer{db: db}
}

// Run scans completed credit-kind entries in bounded batches and applies
// each unmarked one to the owner's legacy balance exactly once.
func (r *Repairer) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{}
	var lastID string

	for {
		if ctx.Err() != nil {
			break
		}

		var entries []models.LedgerEntry
		q := r.db.Where("status = ? AND kind IN ?", models.LedgerStatusCompleted, creditKinds).
			Order("id ASC").Limit(batchSize)
		if lastID != "" {
			q = q.Where("id > ?", lastID)
		}
		if err := q.Find(&entries).Error; err != nil {
			return summary, fmt.Errorf("error scanning ledger entries: %w", err)
		}
		if len(entries) == 0 {
			break
		}

		for _, e := range entries {
			summary.Scanned++
			if e.Metadata != nil {
				if _, done := e.Metadata[RepairMarker]; done {
					summary.Skipped++
					continue
				}
			}
			if err := r.applyOnce(e); err != nil {
				log.Printf("Error repairing entry %s: %v", e.ID, err)
				summary.Errors++
				continue
			}
			summary.Applied++
		}

		lastID = entries[len(entries)-1].ID.String()
		time.Sleep(interBatchDelay)
	}

	log.Printf("Repair complete: %d scanned, %d applied, %d skipped, %d errors",
		summary.Scanned, summary.Applied, summary.Skipped, summary.Errors)
	return summary, nil
}

// applyOnce credits the entry amount to the owner's legacy balance and
// stamps the marker, both inside one transaction.
func (r *Repairer) applyOnce(entry models.LedgerEntry) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("id = ?", entry.UserID).
			Update("legacy_balance", gorm.Expr("legacy_balance + ?", entry.Amount))
		if res.Error != nil {
			return fmt.Errorf("error updating legacy balance: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("user %s not found for ledger entry %s", entry.UserID, entry.ID)
		}

		metadata := entry.Metadata
		if metadata == nil {
			metadata = models.JSON{}
		}
		metadata[RepairMarker] = true
		metadata["repaired_at"] = time.Now().Format(time.RFC3339)

		// Metadata is the only mutable field on a ledger entry.
		if err := tx.Model(&models.LedgerEntry{}).
			Where("id = ?", entry.ID).
			Update("metadata", metadata).Error; err != nil {
			return fmt.Errorf("error marking entry repaired: %w", err)
		}
		return nil
	})
}
