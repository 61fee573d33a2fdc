package audit

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/pixvest/backend/internal/models"
	"github.com/pixvest/backend/internal/services/ledger"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const batchSize = 200

// Mismatch is a user whose stored legacy balance disagrees with the
// ledger-derived balance.
type Mismatch struct {
	UserID  uuid.UUID
	Stored  decimal.Decimal
	Derived decimal.Decimal
}

// DuplicateGroup flags entries with the same user, kind, description and
// amount created within the same minute, a heuristic for accidental
// double-credits.
type DuplicateGroup struct {
	UserID      uuid.UUID
	Kind        models.LedgerKind
	Description string
	Amount      decimal.Decimal
	Minute      time.Time
	Count       int
}

// Report is the audit output. The tool always produces a final summary,
// even when individual records fail.
type Report struct {
	UsersChecked    int
	Mismatches      []Mismatch
	DuplicateGroups []DuplicateGroup
	Errors          int
}

// Auditor recomputes derived balances and detects duplicate ledger entries.
// Read-only and safe to re-run indefinitely.
type Auditor struct {
	db     *gorm.DB
	ledger *ledger.LedgerService
}

// NewAuditor creates a new auditor
func NewAuditor(db *gorm.DB) *Auditor {
	return &Auditor{db: db, ledger: ledger.NewLedgerService(db)}
}

// Run audits every user in bounded batches
func (a *Auditor) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	var users []models.User
	result := a.db.FindInBatches(&users, batchSize, func(tx *gorm.DB, batch int) error {
		for _, u := range users {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			derived, err := a.ledger.BalanceOf(u.ID)
			if err != nil {
				log.Printf("Error deriving balance for user %s: %v", u.ID, err)
				report.Errors++
				continue
			}
			report.UsersChecked++

			if !derived.Equal(u.LegacyBalance) {
				report.Mismatches = append(report.Mismatches, Mismatch{
					UserID:  u.ID,
					Stored:  u.LegacyBalance,
					Derived: derived,
				})
			}
		}
		return nil
	})
	if result.Error != nil {
		return report, fmt.Errorf("error scanning users: %w", result.Error)
	}

	if err := a.findDuplicates(ctx, report); err != nil {
		log.Printf("Error scanning for duplicates: %v", err)
		report.Errors++
	}

	log.Printf("Audit complete: %d users checked, %d mismatches, %d duplicate groups, %d errors",
		report.UsersChecked, len(report.Mismatches), len(report.DuplicateGroups), report.Errors)
	return report, nil
}

type dupKey struct {
	userID      uuid.UUID
	kind        models.LedgerKind
	description string
	amount      string
	minute      time.Time
}

// findDuplicates groups completed entries in Go rather than SQL so the
// minute-bucket heuristic behaves identically on every database.
func (a *Auditor) findDuplicates(ctx context.Context, report *Report) error {
	counts := make(map[dupKey]int)

	var entries []models.LedgerEntry
	result := a.db.Where("status = ?", models.LedgerStatusCompleted).
		FindInBatches(&entries, batchSize, func(tx *gorm.DB, batch int) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			for _, e := range entries {
				key := dupKey{
					userID:      e.UserID,
					kind:        e.Kind,
					description: e.Description,
					amount:      e.Amount.StringFixed(2),
					minute:      e.CreatedAt.Truncate(time.Minute),
				}
				counts[key]++
			}
			return nil
		})
	if result.Error != nil {
		return result.Error
	}

	for key, count := range counts {
		if count > 1 {
			amount, _ := decimal.NewFromString(key.amount)
			report.DuplicateGroups = append(report.DuplicateGroups, DuplicateGroup{
				UserID:      key.userID,
				Kind:        key.kind,
				Description: key.description,
				Amount:      amount,
				Minute:      key.minute,
				Count:       count,
			})
		}
	}
	return nil
}
