package tracker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/RobinLiu69/MentionDodger/internal/domain"
)

// SettingsCache keeps the runtime ghost rules in memory with a short TTL so
// the hot message path does not hit the database per message. A stale value
// only delays when a rule change takes hold for *new* mentions; armed timers
// keep their deadline regardless.
type SettingsCache struct {
	repo  domain.SettingsRepository
	ttl   time.Duration
	clock clockwork.Clock

	mu        sync.RWMutex
	cached    domain.Settings
	expiresAt time.Time
	valid     bool
}

// NewSettingsCache creates a cache with the given TTL.
func NewSettingsCache(repo domain.SettingsRepository, ttl time.Duration, clock clockwork.Clock) *SettingsCache {
	return &SettingsCache{repo: repo, ttl: ttl, clock: clock}
}

// Current returns the active settings. On a store error it falls back to the
// last cached value, or the defaults when nothing was cached yet; message
// intake must not stall on a settings read.
func (c *SettingsCache) Current(ctx context.Context) domain.Settings {
	c.mu.RLock()
	if c.valid && c.clock.Now().Before(c.expiresAt) {
		s := c.cached
		c.mu.RUnlock()
		return s
	}
	c.mu.RUnlock()

	s, err := c.repo.GetSettings(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Settings lookup failed, using last known values", "error", err)
		c.mu.RLock()
		defer c.mu.RUnlock()
		if c.valid {
			return c.cached
		}
		return domain.DefaultSettings()
	}

	c.mu.Lock()
	c.cached = s
	c.expiresAt = c.clock.Now().Add(c.ttl)
	c.valid = true
	c.mu.Unlock()

	return s
}

// Invalidate drops the cached value; the next Current call re-reads the store.
// Called after an admin updates the settings row.
func (c *SettingsCache) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()
}
