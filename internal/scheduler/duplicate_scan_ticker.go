package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"

	"kitportal_backend/platform/config"
	"kitportal_backend/platform/logger"
)

// DuplicateScanTicker enqueues a bulk MBI duplicate scan on a fixed interval.
// Enqueueing through asynq (rather than scanning inline) means only one
// worker runs the sweep even with several scheduler replicas, since duplicate
// task IDs collapse within the interval window.
type DuplicateScanTicker struct {
	client   *asynq.Client
	queue    string
	interval time.Duration
	log      *logger.Logger
}

func NewDuplicateScanTicker(cfg config.SchedulerConfig, log *logger.Logger) (*DuplicateScanTicker, error) {
	opt, err := redisClientOpt(cfg.GetRedisURL())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	interval := cfg.GetDuplicateScanInterval()
	if interval <= 0 {
		interval = time.Hour
	}

	return &DuplicateScanTicker{
		client:   asynq.NewClient(opt),
		queue:    queue,
		interval: interval,
		log:      log,
	}, nil
}

func (t *DuplicateScanTicker) Close() error {
	if t == nil || t.client == nil {
		return nil
	}
	return t.client.Close()
}

func (t *DuplicateScanTicker) Run(ctx context.Context) {
	if t == nil || t.client == nil {
		return
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		_, err := t.client.EnqueueContext(ctx, NewDuplicateBulkScanTask(),
			asynq.Queue(t.queue),
			asynq.TaskID(scanTaskID(time.Now(), t.interval)),
			asynq.Retention(time.Hour),
		)
		if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
			t.log.Warn("failed to enqueue duplicate bulk scan", "error", err)
			continue
		}
		if err == nil {
			t.log.Info("duplicate bulk scan enqueued", "interval", t.interval.String())
		}
	}
}

// scanTaskID buckets the current time by interval so replicas racing at the
// same tick produce the same task ID and only one task lands in the queue.
func scanTaskID(now time.Time, interval time.Duration) string {
	return "alerts.bulk_scan." + now.UTC().Truncate(interval).Format("20060102T150405")
}
