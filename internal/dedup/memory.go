// Package dedup filters redelivered transport events. Two implementations
// exist behind domain.Deduper: this in-memory one for single-instance
// deployments without Redis, and the Redis-backed one in internal/redis.
package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Memory remembers delivery IDs for a fixed window using a plain map.
// Expired entries are pruned lazily on each check.
type Memory struct {
	window time.Duration
	clock  clockwork.Clock

	mu   sync.Mutex
	seen map[uuid.UUID]time.Time
}

// NewMemory creates an in-memory deduper with the given remember window.
func NewMemory(window time.Duration, clock clockwork.Clock) *Memory {
	return &Memory{
		window: window,
		clock:  clock,
		seen:   make(map[uuid.UUID]time.Time),
	}
}

// FirstSeen reports whether this delivery ID is new within the window.
func (m *Memory) FirstSeen(_ context.Context, deliveryID uuid.UUID) (bool, error) {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	for id, expiresAt := range m.seen {
		if now.After(expiresAt) {
			delete(m.seen, id)
		}
	}

	if _, ok := m.seen[deliveryID]; ok {
		return false, nil
	}
	m.seen[deliveryID] = now.Add(m.window)
	return true, nil
}
