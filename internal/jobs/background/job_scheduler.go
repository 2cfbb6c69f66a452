package background

import (
	"context"
	"log"
	"sync"
	"time"

	"agridist/internal/events"
	"agridist/internal/repositories"
	"agridist/internal/services"

	"github.com/go-co-op/gocron/v2"
)

const (
	stalePaymentAge   = 48 * time.Hour
	stalePaymentBatch = 200
)

// JobScheduler runs the periodic maintenance work: payment reminders for
// requests stuck before verification, and the ledger consistency audit.
type JobScheduler struct {
	scheduler     gocron.Scheduler
	requestRepo   repositories.RequestRepository
	ledgerService services.LedgerService
	publisher     events.Publisher
	jobs          map[string]gocron.Job
	mu            sync.RWMutex
}

func NewJobScheduler(requestRepo repositories.RequestRepository, ledgerService services.LedgerService, publisher events.Publisher) (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	js := &JobScheduler{
		scheduler:     scheduler,
		requestRepo:   requestRepo,
		ledgerService: ledgerService,
		publisher:     publisher,
		jobs:          make(map[string]gocron.Job),
	}

	if err := js.registerJobs(); err != nil {
		return nil, err
	}
	return js, nil
}

func (js *JobScheduler) Start() {
	log.Printf("Starting background job scheduler")
	js.scheduler.Start()
}

func (js *JobScheduler) Stop() error {
	log.Printf("Stopping background job scheduler")
	return js.scheduler.Shutdown()
}

func (js *JobScheduler) registerJobs() error {
	reminderJob, err := js.scheduler.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(js.runPaymentReminders),
	)
	if err != nil {
		return err
	}

	auditJob, err := js.scheduler.NewJob(
		gocron.DurationJob(6*time.Hour),
		gocron.NewTask(js.runLedgerAudit),
	)
	if err != nil {
		return err
	}

	js.mu.Lock()
	js.jobs["payment_reminders"] = reminderJob
	js.jobs["ledger_audit"] = auditJob
	js.mu.Unlock()
	return nil
}

// runPaymentReminders surfaces requests whose payment has sat in pending or
// rejected beyond the reminder window. The rejected cycle has no retry cap,
// so this is the only backstop against requests looping forever unnoticed.
func (js *JobScheduler) runPaymentReminders() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-stalePaymentAge)
	stale, err := js.requestRepo.ListStalePayments(ctx, cutoff, stalePaymentBatch)
	if err != nil {
		log.Printf("WARN: payment reminder scan failed: %v", err)
		return
	}

	for _, request := range stale {
		js.publisher.Publish(ctx, events.TypeRequestPaymentStale, map[string]interface{}{
			"request_id":     request.ID.String(),
			"requester_id":   request.RequesterID.String(),
			"payment_status": request.PaymentStatus,
			"age_hours":      int(time.Since(request.UpdatedAt).Hours()),
		})
	}
	if len(stale) > 0 {
		log.Printf("Payment reminder scan flagged %d stale requests", len(stale))
	}
}

func (js *JobScheduler) runLedgerAudit() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	problems, err := js.ledgerService.Audit(ctx)
	if err != nil {
		log.Printf("WARN: ledger audit failed to run: %v", err)
		return
	}
	for _, problem := range problems {
		log.Printf("CRITICAL: ledger audit: %s", problem)
	}
	if len(problems) == 0 {
		log.Printf("Ledger audit passed")
	}
}
