package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const defaultQueueKey = "pixvest:jobs"

// RedisQueue is a Redis-backed job queue
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue creates a new Redis-backed queue
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client, key: defaultQueueKey}
}

// Enqueue pushes a job onto the queue
func (q *RedisQueue) Enqueue(job *Job) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("error marshaling job: %w", err)
	}

	if err := q.client.LPush(context.Background(), q.key, data).Err(); err != nil {
		return fmt.Errorf("error enqueueing job: %w", err)
	}
	return nil
}

// Dequeue pops a job, blocking up to timeout. Returns nil when the queue is
// empty.
func (q *RedisQueue) Dequeue(timeout time.Duration) (*Job, error) {
	result, err := q.client.BRPop(context.Background(), timeout, q.key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error dequeueing job: %w", err)
	}
	if len(result) < 2 {
		return nil, nil
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("error unmarshaling job: %w", err)
	}
	return &job, nil
}
