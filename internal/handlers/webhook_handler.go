package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pixvest/backend/internal/jobs"
	"github.com/pixvest/backend/internal/models"
	"github.com/pixvest/backend/internal/queue"
	"gorm.io/gorm"
)

// WebhookHandler receives gateway notifications. The record is persisted
// verbatim before any business logic runs, so the audit trail survives a
// crash mid-processing; actual dispatch happens on the queue.
type WebhookHandler struct {
	db    *gorm.DB
	queue queue.QueueInterface
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(db *gorm.DB, q queue.QueueInterface) *WebhookHandler {
	return &WebhookHandler{db: db, queue: q}
}

type gatewayWebhookPayload struct {
	Event       string `json:"event"`
	Transaction struct {
		ID         string `json:"id"`
		Identifier string `json:"identifier"`
		Status     string `json:"status"`
	} `json:"transaction"`
	Client map[string]interface{} `json:"client"`
}

// HandleGatewayWebhook handles POST /webhooks/gateway
func (h *WebhookHandler) HandleGatewayWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	// Even malformed payloads get an audit row; the event/tx id just stay
	// empty and the dispatch job logs the unhandled event.
	var payload gatewayWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Printf("Malformed gateway webhook: %v", err)
	}
	raw := models.JSON{}
	_ = json.Unmarshal(body, &raw)

	record := models.WebhookRecord{
		ID:           uuid.New(),
		Event:        payload.Event,
		ExternalTxID: payload.Transaction.ID,
		RawData:      raw,
		Status:       models.WebhookStatusProcessing,
	}
	if err := h.db.Create(&record).Error; err != nil {
		log.Printf("Error persisting webhook record: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record webhook"})
		return
	}

	if err := jobs.EnqueueWebhookJob(h.queue, record.ID); err != nil {
		// The replay job will pick the record up; still acknowledge.
		log.Printf("Error enqueueing webhook job %s: %v", record.ID, err)
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
