package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobType identifies the handler for a job
type JobType string

// Job is a unit of asynchronous work carried through Redis
type Job struct {
	ID         uuid.UUID       `json:"id"`
	Type       JobType         `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Retries    int             `json:"retries"`
	MaxRetries int             `json:"max_retries"`
	CreatedAt  time.Time       `json:"created_at"`
}

// JobHandler processes one job
type JobHandler func(ctx context.Context, job Job) error

// QueueInterface is the queue contract used by producers
type QueueInterface interface {
	Enqueue(job *Job) error
}
