package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"kitportal_backend/internal/events"
	"kitportal_backend/internal/leads/alerts"
	"kitportal_backend/platform/config"
	platformevents "kitportal_backend/platform/events"
	"kitportal_backend/platform/logger"
)

// DuplicateScanner runs the MBI duplicate sweep.
type DuplicateScanner interface {
	BulkScan(ctx context.Context) (alerts.ScanReport, error)
}

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	bus     platformevents.Bus
	scanner DuplicateScanner
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, bus platformevents.Bus, scanner DuplicateScanner, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL)
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:  server,
		mux:     mux,
		bus:     bus,
		scanner: scanner,
		log:     log,
	}

	mux.HandleFunc(TaskNotificationOutboxDue, w.handleNotificationOutboxDue)
	mux.HandleFunc(TaskDuplicateBulkScan, w.handleDuplicateBulkScan)

	return w, nil
}

func (w *Worker) handleNotificationOutboxDue(ctx context.Context, task *asynq.Task) error {
	if w.bus == nil {
		return nil
	}

	payload, err := ParseNotificationOutboxDuePayload(task)
	if err != nil {
		return err
	}

	outboxID, err := uuid.Parse(payload.OutboxID)
	if err != nil {
		return err
	}

	return w.bus.PublishSync(ctx, events.NewNotificationOutboxDue(outboxID))
}

func (w *Worker) handleDuplicateBulkScan(ctx context.Context, _ *asynq.Task) error {
	if w.scanner == nil {
		return nil
	}

	started := time.Now()
	report, err := w.scanner.BulkScan(ctx)
	if err != nil {
		return err
	}

	w.log.Info("duplicate bulk scan complete",
		"groups_scanned", report.GroupsScanned,
		"leads_flagged", report.LeadsFlagged,
		"alerts_created", report.AlertsCreated,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
