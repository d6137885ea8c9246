// Command scheduler runs the background task worker that delivers visit
// reminders.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"propertyhub_backend/internal/directory"
	"propertyhub_backend/internal/email"
	"propertyhub_backend/internal/events"
	"propertyhub_backend/internal/notification"
	"propertyhub_backend/internal/reputation"
	"propertyhub_backend/internal/scheduler"
	visitrepo "propertyhub_backend/internal/visits/repository"
	"propertyhub_backend/platform/config"
	"propertyhub_backend/platform/db"
	"propertyhub_backend/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if cfg.RedisURL == "" {
		fmt.Fprintln(os.Stderr, "REDIS_URL is required for the scheduler")
		os.Exit(1)
	}

	log := logger.New(cfg.Env)

	if err := run(cfg, log); err != nil {
		log.Error("worker_exit", "error", err.Error())
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	var err error
	for attempt := 1; ; attempt++ {
		pool, err = db.NewPool(ctx, cfg)
		if err == nil {
			break
		}
		if attempt == 5 {
			return fmt.Errorf("database: %w", err)
		}
		delay := time.Duration(attempt*attempt) * time.Second
		log.Warn("startup_retry", "component", "database", "attempt", attempt, "delay", delay.String(), "error", err.Error())
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	defer pool.Close()

	// Reminder deliveries reuse the notification pipeline; the worker
	// publishes on its own in-process bus.
	bus := events.NewInMemoryBus(log)
	engine := reputation.New(reputation.Config{
		NoShowThreshold:   cfg.NoShowThreshold,
		DeclineThreshold:  cfg.DeclineThreshold,
		MaxActiveRequests: cfg.MaxActiveRequests,
	})

	var mail email.Sender
	if cfg.EmailEnabled {
		mail = email.NewSMTPSender(cfg, log)
	} else {
		mail = email.NewNoopSender(log)
	}

	directoryModule := directory.NewModule(pool, engine, log)
	notification.NewModule(pool, mail, directoryModule.Repo, bus, log)

	worker, err := scheduler.NewWorker(cfg, visitrepo.New(pool), bus, log)
	if err != nil {
		return fmt.Errorf("worker: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("worker_started", "queue", cfg.AsynqQueueName, "concurrency", cfg.AsynqConcurrency)
		errCh <- worker.Run()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("worker_shutting_down")
		worker.Shutdown()

		drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := bus.Drain(drainCtx); err != nil {
			log.Warn("drain_timeout", "error", err.Error())
		}
		return <-errCh
	}
}
