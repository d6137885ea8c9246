package scheduler

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"propertyhub_backend/internal/events"
	"propertyhub_backend/internal/visits/domain"
	"propertyhub_backend/internal/visits/repository"
	"propertyhub_backend/platform/apperr"
	"propertyhub_backend/platform/config"
	"propertyhub_backend/platform/logger"
)

// VisitReader loads visit requests for reminder processing.
type VisitReader interface {
	GetByID(ctx context.Context, id int64) (*repository.VisitRequest, error)
}

// Worker consumes scheduled tasks. Reminder handling re-reads the visit
// before publishing: a visit cancelled after its reminder was scheduled
// must stay silent.
type Worker struct {
	server *asynq.Server
	visits VisitReader
	bus    events.Bus
	log    *logger.Logger
}

// NewWorker creates the task worker.
func NewWorker(cfg config.SchedulerConfig, visits VisitReader, bus events.Bus, log *logger.Logger) (*Worker, error) {
	connOpt, err := RedisConnOpt(cfg)
	if err != nil {
		return nil, err
	}

	server := asynq.NewServer(connOpt, asynq.Config{
		Concurrency: cfg.GetAsynqConcurrency(),
		Queues: map[string]int{
			cfg.GetAsynqQueueName(): 1,
		},
	})
	return &Worker{server: server, visits: visits, bus: bus, log: log}, nil
}

// Run starts processing tasks and blocks until Shutdown is called.
func (w *Worker) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskVisitReminder, w.handleVisitReminder)
	return w.server.Run(mux)
}

// Shutdown stops the worker, waiting for in-flight tasks.
func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

func (w *Worker) handleVisitReminder(ctx context.Context, t *asynq.Task) error {
	payload, err := ParseVisitReminderPayload(t)
	if err != nil {
		// Malformed payloads will never succeed; drop them.
		return fmt.Errorf("%w: %w", asynq.SkipRetry, err)
	}

	visit, err := w.visits.GetByID(ctx, payload.VisitID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			w.log.Warn("reminder_visit_missing", "visit_id", payload.VisitID)
			return nil
		}
		return err
	}

	if visit.Status != domain.StatusConfirmed {
		w.log.Info("reminder_skipped",
			"visit_id", visit.ID,
			"status", string(visit.Status),
		)
		return nil
	}

	window := visit.ConfirmedWindow()
	if err := w.bus.PublishSync(ctx, events.VisitReminderDue{
		BaseEvent:  events.NewBaseEvent(),
		VisitID:    visit.ID,
		PropertyID: visit.PropertyID,
		BuyerID:    visit.BuyerID,
		AgentID:    visit.AgentID,
		Date:       window.Date,
		StartTime:  window.Start,
	}); err != nil {
		return err
	}

	w.log.Info("reminder_sent", "visit_id", visit.ID)
	return nil
}
