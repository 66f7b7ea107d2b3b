package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper short-circuits carrier redeliveries. Dedupe is an optimization
// layer: the tracking_events unique index is the authoritative guard, so a
// deduper failure degrades to extra DB work, never to data loss.
//
// Seen is a read-only check; Mark is called only after the event has been
// durably applied. Marking earlier would make a transient processing failure
// eat the carrier's retry for the whole TTL.
type Deduper interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

// dedupeTTL keeps keys long enough to absorb carrier redelivery windows.
const dedupeTTL = 48 * time.Hour

// RedisDeduper implements Deduper over plain key existence.
type RedisDeduper struct {
	client *redis.Client
}

func NewRedisDeduper(client *redis.Client) *RedisDeduper {
	return &RedisDeduper{client: client}
}

func (d *RedisDeduper) Seen(ctx context.Context, key string) (bool, error) {
	n, err := d.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *RedisDeduper) Mark(ctx context.Context, key string) error {
	return d.client.Set(ctx, key, 1, dedupeTTL).Err()
}

// NoopDeduper is used when redis is not configured; every event proceeds to
// the DB-level idempotency check.
type NoopDeduper struct{}

func (NoopDeduper) Seen(context.Context, string) (bool, error) {
	return false, nil
}

func (NoopDeduper) Mark(context.Context, string) error {
	return nil
}

// eventKey identifies one physical carrier scan across redeliveries.
func eventKey(p CarrierEventPayload) string {
	return fmt.Sprintf("carrier:event:%s:%s:%s:%s",
		p.TrackingNumber, p.ActivityStatus.Code, p.LocalActivityDate, p.LocalActivityTime)
}
