package jobs

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/pixvest/backend/internal/services/commission"
	"github.com/pixvest/backend/internal/services/payment"
)

// Scheduler runs the recurring reconciliation tasks. Tasks are assumed
// at-least-once and may overlap across instances; correctness comes from
// the storage-level conditional updates inside the services, never from
// in-process coordination.
type Scheduler struct {
	scheduler *gocron.Scheduler
}

// NewScheduler creates a new scheduler
func NewScheduler() *Scheduler {
	return &Scheduler{scheduler: gocron.NewScheduler(time.UTC)}
}

// RegisterRecurring registers the periodic reconciliation jobs
func (s *Scheduler) RegisterRecurring(paymentSvc *payment.PaymentService, commissionSvc *commission.CommissionService, replayJob *WebhookReplayJob) error {
	if _, err := s.scheduler.Every(2).Minutes().Do(func() {
		n, err := paymentSvc.PollPending(context.Background())
		if err != nil {
			log.Printf("Pending payment poll failed: %v", err)
			return
		}
		if n > 0 {
			log.Printf("Pending payment poll transitioned %d payments", n)
		}
	}); err != nil {
		return err
	}

	if _, err := s.scheduler.Every(2).Minutes().Do(func() {
		n, err := paymentSvc.SettleApproved(context.Background())
		if err != nil {
			log.Printf("Approved payment settlement failed: %v", err)
			return
		}
		if n > 0 {
			log.Printf("Settled %d approved payments", n)
		}
	}); err != nil {
		return err
	}

	if _, err := s.scheduler.Every(2).Minutes().Do(func() {
		n, err := commissionSvc.ProcessBacklog(context.Background())
		if err != nil {
			log.Printf("Commission backlog pass failed: %v", err)
			return
		}
		if n > 0 {
			log.Printf("Processed commissions for %d payments", n)
		}
	}); err != nil {
		return err
	}

	if _, err := s.scheduler.Every(5).Minutes().Do(func() {
		n, err := replayJob.Run(context.Background())
		if err != nil {
			log.Printf("Webhook replay pass failed: %v", err)
			return
		}
		if n > 0 {
			log.Printf("Replayed %d webhooks", n)
		}
	}); err != nil {
		return err
	}

	return nil
}

// Start starts the scheduler asynchronously
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}
