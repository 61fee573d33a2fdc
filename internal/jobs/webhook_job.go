package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/pixvest/backend/internal/models"
	"github.com/pixvest/backend/internal/queue"
	"github.com/pixvest/backend/internal/services/payment"
	"gorm.io/gorm"
)

const (
	// WebhookJobType is the job type for processing gateway webhooks
	WebhookJobType queue.JobType = "process_webhook"
)

// WebhookJobPayload represents the payload for a webhook processing job
type WebhookJobPayload struct {
	WebhookID uuid.UUID `json:"webhook_id"`
}

// WebhookJob dispatches persisted webhook records to the settlement state
// machine. The record is persisted by the HTTP handler before this job ever
// runs, so a crash mid-processing still leaves an audit trail.
type WebhookJob struct {
	db         *gorm.DB
	paymentSvc *payment.PaymentService
}

// NewWebhookJob creates a new webhook job handler
func NewWebhookJob(db *gorm.DB, paymentSvc *payment.PaymentService) *WebhookJob {
	return &WebhookJob{db: db, paymentSvc: paymentSvc}
}

// RegisterWebhookJobHandlers registers the webhook job handlers
func RegisterWebhookJobHandlers(p *queue.Processor, db *gorm.DB, paymentSvc *payment.PaymentService) *WebhookJob {
	handler := NewWebhookJob(db, paymentSvc)
	p.RegisterHandler(WebhookJobType, handler.Handle)
	return handler
}

// EnqueueWebhookJob enqueues a webhook processing job
func EnqueueWebhookJob(q queue.QueueInterface, webhookID uuid.UUID) error {
	payload := WebhookJobPayload{WebhookID: webhookID}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook job payload: %w", err)
	}

	job := &queue.Job{
		Type:       WebhookJobType,
		Payload:    payloadBytes,
		MaxRetries: 5,
	}
	return q.Enqueue(job)
}

// Handle processes a webhook job
func (j *WebhookJob) Handle(ctx context.Context, job queue.Job) error {
	var payload WebhookJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal webhook job payload: %w", err)
	}

	var record models.WebhookRecord
	if err := j.db.First(&record, "id = ?", payload.WebhookID).Error; err != nil {
		return fmt.Errorf("failed to get webhook record: %w", err)
	}

	if record.Status == models.WebhookStatusProcessed {
		log.Printf("Webhook %s already processed, skipping", record.ID)
		return nil
	}

	return j.ProcessRecord(&record)
}

// ProcessRecord dispatches one webhook record by event type and marks it
// processed or failed. Used by both the queue path and the replay job; the
// settlement machine re-checks payment state, so replays are safe.
func (j *WebhookJob) ProcessRecord(record *models.WebhookRecord) error {
	var err error
	switch record.Event {
	case models.WebhookEventTransactionPaid:
		err = j.paymentSvc.ConfirmFromWebhook(record.ExternalTxID)
	case models.WebhookEventTransactionCanceled, models.WebhookEventTransactionRefunded:
		err = j.paymentSvc.CancelFromWebhook(record.ExternalTxID)
	case models.WebhookEventTransactionCreated:
		// Acknowledgement only; the payment row already exists.
	default:
		// Unknown events stay visible as failures instead of being waved
		// through as processed. Retrying cannot help, so no error is
		// returned to the queue.
		log.Printf("Unhandled gateway event %q on webhook %s", record.Event, record.ID)
		if updErr := j.db.Model(record).Updates(map[string]interface{}{
			"status":     models.WebhookStatusFailed,
			"last_error": fmt.Sprintf("unhandled event %q", record.Event),
		}).Error; updErr != nil {
			log.Printf("Error marking webhook %s failed: %v", record.ID, updErr)
		}
		return nil
	}

	if err != nil {
		if updErr := j.db.Model(record).Updates(map[string]interface{}{
			"status":      models.WebhookStatusFailed,
			"retry_count": gorm.Expr("retry_count + 1"),
			"last_error":  err.Error(),
		}).Error; updErr != nil {
			log.Printf("Error marking webhook %s failed: %v", record.ID, updErr)
		}
		return fmt.Errorf("failed to process webhook %s: %w", record.ID, err)
	}

	if err := j.db.Model(record).Update("status", models.WebhookStatusProcessed).Error; err != nil {
		return fmt.Errorf("failed to mark webhook %s processed: %w", record.ID, err)
	}
	return nil
}
