// Command api runs the PropertyHub HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	catalogrepo "propertyhub_backend/internal/catalog/repository"
	"propertyhub_backend/internal/directory"
	"propertyhub_backend/internal/email"
	"propertyhub_backend/internal/events"
	apphttp "propertyhub_backend/internal/http"
	"propertyhub_backend/internal/http/router"
	"propertyhub_backend/internal/notification"
	"propertyhub_backend/internal/reputation"
	"propertyhub_backend/internal/scheduler"
	"propertyhub_backend/internal/visits"
	visitservice "propertyhub_backend/internal/visits/service"
	"propertyhub_backend/platform/config"
	"propertyhub_backend/platform/db"
	"propertyhub_backend/platform/logger"
	"propertyhub_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Env)

	if err := run(cfg, log); err != nil {
		log.Error("server_exit", "error", err.Error())
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := withRetry(ctx, log, "migrations", func() error {
		return db.RunMigrations(cfg.DatabaseURL, "migrations")
	}); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database", func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()

	bus := events.NewInMemoryBus(log)
	engine := reputation.New(reputation.Config{
		NoShowThreshold:   cfg.NoShowThreshold,
		DeclineThreshold:  cfg.DeclineThreshold,
		MaxActiveRequests: cfg.MaxActiveRequests,
	})
	val := validator.New()

	var mail email.Sender
	if cfg.EmailEnabled {
		mail = email.NewSMTPSender(cfg, log)
	} else {
		mail = email.NewNoopSender(log)
	}

	var reminders visitservice.ReminderScheduler
	if cfg.RedisURL != "" {
		client, err := scheduler.NewClient(cfg, log)
		if err != nil {
			return fmt.Errorf("scheduler client: %w", err)
		}
		defer client.Close()
		reminders = client
	} else {
		log.Warn("reminders_disabled", "reason", "REDIS_URL not set")
	}

	catalogRepo := catalogrepo.New(pool)
	directoryModule := directory.NewModule(pool, engine, log)
	notificationModule := notification.NewModule(pool, mail, directoryModule.Repo, bus, log)
	visitsModule := visits.NewModule(visits.Deps{
		DB:               pool,
		Properties:       catalogRepo,
		Users:            directoryModule.Repo,
		Warnings:         directoryModule.Service,
		Engine:           engine,
		Bus:              bus,
		Scheduler:        reminders,
		ReminderLeadTime: cfg.ReminderLeadTime,
		Validator:        val,
		Logger:           log,
	})

	app := &apphttp.App{
		Config: cfg,
		Logger: log,
		Modules: []apphttp.Module{
			visitsModule,
			directoryModule,
			notificationModule,
		},
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server_listening", "addr", cfg.HTTPAddr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("server_shutting_down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		// Let in-flight notification handlers finish.
		return bus.Drain(shutdownCtx)
	})

	return g.Wait()
}

// withRetry runs fn with quadratic backoff. Startup dependencies are often
// a few seconds behind the app in containerized deploys.
func withRetry(ctx context.Context, log *logger.Logger, name string, fn func() error) error {
	const attempts = 5
	const baseDelay = time.Second

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		delay := time.Duration(attempt*attempt) * baseDelay
		log.Warn("startup_retry",
			"component", name,
			"attempt", attempt,
			"delay", delay.String(),
			"error", err.Error(),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
