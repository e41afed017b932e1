package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Deduper implements domain.Deduper on Redis SetNX so redelivered webhook
// events are dropped even across a process restart within the window.
type Deduper struct {
	rdb    *goredis.Client
	window time.Duration
}

// NewDeduper creates a Redis-backed deduper with the given remember window.
func NewDeduper(rdb *goredis.Client, window time.Duration) *Deduper {
	return &Deduper{rdb: rdb, window: window}
}

// FirstSeen reports whether this delivery ID is new within the window.
func (d *Deduper) FirstSeen(ctx context.Context, deliveryID uuid.UUID) (bool, error) {
	set, err := d.rdb.SetNX(ctx, dedupKey(deliveryID), "1", d.window).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check delivery dedup: %w", err)
	}
	return set, nil
}

func dedupKey(deliveryID uuid.UUID) string {
	return "dedup:delivery:" + deliveryID.String()
}
