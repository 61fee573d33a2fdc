package queue

import (
	"context"
	"log"
	"sync"
	"time"
)

// Processor pulls jobs from the queue and dispatches them to registered
// handlers with a fixed worker pool. Failed jobs are re-enqueued until
// MaxRetries is exhausted.
type Processor struct {
	queue      *RedisQueue
	handlers   map[JobType]JobHandler
	numWorkers int
	mu         sync.RWMutex
	wg         sync.WaitGroup
	quit       chan struct{}
}

// NewProcessor creates a new job processor
func NewProcessor(queue *RedisQueue, numWorkers int) *Processor {
	return &Processor{
		queue:      queue,
		handlers:   make(map[JobType]JobHandler),
		numWorkers: numWorkers,
		quit:       make(chan struct{}),
	}
}

// RegisterHandler registers the handler for a job type
func (p *Processor) RegisterHandler(jobType JobType, handler JobHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[jobType] = handler
}

// Start starts the worker goroutines
func (p *Processor) Start() {
	log.Printf("Starting %d queue workers", p.numWorkers)
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.work(i)
	}
}

// Stop stops the workers and waits for them to drain
func (p *Processor) Stop() {
	close(p.quit)
	p.wg.Wait()
}

func (p *Processor) work(workerID int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.quit:
			log.Printf("Queue worker %d stopped", workerID)
			return
		default:
			job, err := p.queue.Dequeue(1 * time.Second)
			if err != nil {
				log.Printf("Error dequeueing job: %v", err)
				time.Sleep(time.Second)
				continue
			}
			if job == nil {
				continue
			}
			p.dispatch(workerID, job)
		}
	}
}

func (p *Processor) dispatch(workerID int, job *Job) {
	p.mu.RLock()
	handler, ok := p.handlers[job.Type]
	p.mu.RUnlock()
	if !ok {
		log.Printf("No handler registered for job type %s, dropping job %s", job.Type, job.ID)
		return
	}

	if err := handler(context.Background(), *job); err != nil {
		log.Printf("Worker %d: job %s (%s) failed: %v", workerID, job.ID, job.Type, err)
		if job.Retries < job.MaxRetries {
			job.Retries++
			if err := p.queue.Enqueue(job); err != nil {
				log.Printf("Error re-enqueueing job %s: %v", job.ID, err)
			}
		} else {
			log.Printf("Job %s exhausted %d retries, dropping", job.ID, job.MaxRetries)
		}
	}
}
