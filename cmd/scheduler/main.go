package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"kitportal_backend/internal/leads"
	"kitportal_backend/internal/notification"
	"kitportal_backend/internal/scheduler"
	"kitportal_backend/internal/vendors"
	"kitportal_backend/platform/config"
	"kitportal_backend/platform/db"
	"kitportal_backend/platform/events"
	"kitportal_backend/platform/logger"
	"kitportal_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)

	notificationModule := notification.New(pool, initSender(cfg, log), cfg, log)
	notificationModule.RegisterHandlers(eventBus)

	// Worker-side lead wiring for the bulk duplicate scan (no HTTP handlers).
	val := validator.New()
	vendorsModule := vendors.NewModule(pool, val)
	leadsModule, err := leads.NewModule(pool, vendorsModule.Service(), eventBus, val, cfg, log)
	if err != nil {
		log.Error("failed to initialize leads module", "error", err)
		panic("failed to initialize leads module: " + err.Error())
	}

	dispatcher, err := scheduler.NewNotificationOutboxDispatcher(cfg, pool, log)
	if err != nil {
		log.Error("failed to initialize outbox dispatcher", "error", err)
		panic("failed to initialize outbox dispatcher: " + err.Error())
	}
	defer func() { _ = dispatcher.Close() }()
	go dispatcher.Run(ctx)

	scanTicker, err := scheduler.NewDuplicateScanTicker(cfg, log)
	if err != nil {
		log.Error("failed to initialize duplicate scan ticker", "error", err)
		panic("failed to initialize duplicate scan ticker: " + err.Error())
	}
	defer func() { _ = scanTicker.Close() }()
	go scanTicker.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, eventBus, leadsModule.AlertManager(), log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

// initSender picks the SMTP sender when email is enabled, otherwise a
// log-only sender so the outbox path still runs end to end.
func initSender(cfg config.EmailConfig, log *logger.Logger) notification.Sender {
	if !cfg.GetEmailEnabled() {
		log.Warn("EMAIL_ENABLED is false; notifications will be logged, not sent")
		return notification.NewLogSender(log)
	}
	return notification.NewSMTPSender(cfg)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
