package webhook

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisDeduperMarkThenSeen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	d := NewRedisDeduper(client)

	payload := outboundScan("AR", "I")
	key := eventKey(payload)

	seen, err := d.Seen(context.Background(), key)
	if err != nil {
		t.Fatalf("first check: %v", err)
	}
	if seen {
		t.Fatal("fresh key reported as seen")
	}

	// Seen is read-only: checking must not mark.
	seen, err = d.Seen(context.Background(), key)
	if err != nil {
		t.Fatalf("repeat check: %v", err)
	}
	if seen {
		t.Fatal("unmarked key reported as seen after a check")
	}

	if err := d.Mark(context.Background(), key); err != nil {
		t.Fatalf("mark: %v", err)
	}
	seen, err = d.Seen(context.Background(), key)
	if err != nil {
		t.Fatalf("check after mark: %v", err)
	}
	if !seen {
		t.Fatal("marked key not reported as seen")
	}

	// A different scan on the same tracking number is a distinct event.
	other := outboundScan("D1", "D")
	seen, err = d.Seen(context.Background(), eventKey(other))
	if err != nil {
		t.Fatalf("other key: %v", err)
	}
	if seen {
		t.Fatal("distinct event collided with marked one")
	}

	if mr.TTL(key) <= 0 {
		t.Fatal("dedupe key has no TTL")
	}
}
