package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/pixvest/backend/internal/models"
	"gorm.io/gorm"
)

// WebhookReplayJob is the safety net against webhook delivery failures: it
// rescans recent TRANSACTION_PAID records whose linked payment never left
// PENDING and replays them. Payment state is re-checked before acting,
// since the webhook path may have confirmed the payment in the meantime.
type WebhookReplayJob struct {
	db         *gorm.DB
	webhookJob *WebhookJob
}

// NewWebhookReplayJob creates a new webhook replay job
func NewWebhookReplayJob(db *gorm.DB, webhookJob *WebhookJob) *WebhookReplayJob {
	return &WebhookReplayJob{db: db, webhookJob: webhookJob}
}

// Run replays unsettled paid webhooks from the last 24 hours. Returns the
// number of records replayed.
func (j *WebhookReplayJob) Run(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-24 * time.Hour)

	var records []models.WebhookRecord
	if err := j.db.Where("event = ? AND created_at >= ?", models.WebhookEventTransactionPaid, cutoff).
		Order("created_at ASC").Find(&records).Error; err != nil {
		return 0, fmt.Errorf("error finding paid webhook records: %w", err)
	}

	replayed := 0
	for _, r := range records {
		if ctx.Err() != nil {
			break
		}

		var p models.Payment
		err := j.db.Where("external_tx_id = ?", r.ExternalTxID).First(&p).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("Error loading payment for webhook %s: %v", r.ID, err)
			}
			continue
		}
		if p.Status != models.PaymentStatusPending {
			continue
		}

		record := r
		if err := j.webhookJob.ProcessRecord(&record); err != nil {
			log.Printf("Error replaying webhook %s: %v", record.ID, err)
			continue
		}
		replayed++
	}

	return replayed, nil
}
