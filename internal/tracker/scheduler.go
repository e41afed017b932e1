package tracker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/RobinLiu69/MentionDodger/internal/correlation"
	"github.com/RobinLiu69/MentionDodger/internal/domain"
	"github.com/RobinLiu69/MentionDodger/internal/logging"
	"github.com/RobinLiu69/MentionDodger/internal/metrics"
)

// Ledger is the subset of mention repository operations the scheduler needs.
type Ledger interface {
	GetByID(ctx context.Context, id int64) (*domain.Mention, error)
	ListOpen(ctx context.Context) ([]domain.Mention, error)
	CloseAsTimeout(ctx context.Context, id int64) (bool, error)
}

// Scheduler owns one deferred timeout per open mention. The timer set is a
// cache of intent, never an authority: the fire path re-reads the persisted
// mention and delegates the terminal write to the ledger's idempotent close,
// so a timer racing a reply resolves to exactly one outcome no matter who
// runs first. Timers are in-memory only and rebuilt by RestoreAll after a
// restart.
type Scheduler struct {
	repo      Ledger
	publisher domain.EventPublisher
	clock     clockwork.Clock

	mu      sync.Mutex
	pending map[int64]clockwork.Timer
}

// NewScheduler creates a Scheduler with an empty timer set.
func NewScheduler(repo Ledger, publisher domain.EventPublisher, clock clockwork.Clock) *Scheduler {
	return &Scheduler{
		repo:      repo,
		publisher: publisher,
		clock:     clock,
		pending:   make(map[int64]clockwork.Timer),
	}
}

// Schedule arms a timeout for the mention using the given window, measured
// from the mention's creation time. When the remaining window is already
// spent (recovery of an overdue mention), the mention is resolved
// synchronously instead of arming a zero-delay timer.
func (s *Scheduler) Schedule(m *domain.Mention, window time.Duration) {
	remaining := window - s.clock.Since(m.MentionTime)
	if remaining <= 0 {
		ctx := correlation.WithID(context.Background(), correlation.NewID())
		s.resolveTimeout(ctx, m.ID)
		return
	}

	id := m.ID

	s.mu.Lock()
	if old, ok := s.pending[id]; ok {
		logging.WithMention(id).Warn("Mention already has a timeout armed, replacing")
		old.Stop()
		delete(s.pending, id)
		metrics.PendingTimers.Dec()
	}
	s.pending[id] = s.clock.AfterFunc(remaining, func() { s.fire(id) })
	metrics.PendingTimers.Inc()
	s.mu.Unlock()

	logging.WithMention(id).Debug("Timeout armed", "remaining", remaining)
}

// fire runs on the timer goroutine when a deadline elapses. Panics are
// contained here so a bad callback can neither crash the process nor leak
// its live-set entry.
func (s *Scheduler) fire(id int64) {
	defer func() {
		if r := recover(); r != nil {
			logging.WithMention(id).Error("Timeout handler panicked", "panic", r)
			metrics.TimerFireErrors.Inc()
		}
		s.remove(id)
	}()

	ctx := correlation.WithID(context.Background(), correlation.NewID())
	s.resolveTimeout(ctx, id)
}

// resolveTimeout re-reads the persisted mention (the in-memory copy may be
// stale relative to a reply recorded since arming) and closes it iff still
// open.
func (s *Scheduler) resolveTimeout(ctx context.Context, id int64) {
	m, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, domain.ErrMentionNotFound) {
		slog.WarnContext(ctx, "Mention no longer exists, skipping timeout", "mention_id", id)
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "Failed to re-read mention on timeout", "mention_id", id, "error", err)
		metrics.TimerFireErrors.Inc()
		return
	}

	if !m.Open() {
		slog.DebugContext(ctx, "Mention already closed, skipping timeout", "mention_id", id)
		return
	}

	won, err := s.repo.CloseAsTimeout(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to close mention as timed out", "mention_id", id, "error", err)
		metrics.TimerFireErrors.Inc()
		return
	}
	if !won {
		// Reply path got there between the re-read and the close.
		slog.DebugContext(ctx, "Timeout lost the close race", "mention_id", id)
		return
	}

	metrics.MentionsTimedOutTotal.Inc()
	slog.InfoContext(ctx, "User ghosted a mention",
		"mention_id", id, "user_id", m.MentionedUserID, "guild_id", m.GuildID)

	s.publisher.PublishMentionEvent(domain.MentionEvent{
		Type:            domain.EventMentionTimedOut,
		MentionID:       id,
		GuildID:         m.GuildID,
		ChannelID:       m.ChannelID,
		MentionedUserID: m.MentionedUserID,
		At:              s.clock.Now(),
	})
}

// Cancel disarms the mention's timer if one is armed, reporting whether the
// cancellation took effect. Safe to race with the timer firing: the loser
// observes a no-op, and durable correctness rests on the ledger either way.
func (s *Scheduler) Cancel(id int64) bool {
	s.mu.Lock()
	t, ok := s.pending[id]
	if !ok {
		s.mu.Unlock()
		logging.WithMention(id).Debug("No timeout to cancel")
		return false
	}
	delete(s.pending, id)
	metrics.PendingTimers.Dec()
	s.mu.Unlock()

	stopped := t.Stop()
	if stopped {
		logging.WithMention(id).Debug("Timeout cancelled")
	}
	return stopped
}

// remove drops a fired timer from the live set; harmless if Cancel already
// removed it.
func (s *Scheduler) remove(id int64) {
	s.mu.Lock()
	if _, ok := s.pending[id]; ok {
		delete(s.pending, id)
		metrics.PendingTimers.Dec()
	}
	s.mu.Unlock()
}

// PendingCount returns the number of currently armed timers.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// IsPending reports whether a timer is armed for the mention.
func (s *Scheduler) IsPending(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[id]
	return ok
}

// RestoreAll rebuilds the timer set from the store's open mentions. Called
// once at startup, after the store is reachable and before message intake.
// Mentions whose window fully elapsed during the outage are resolved
// in place rather than re-armed.
func (s *Scheduler) RestoreAll(ctx context.Context, window time.Duration) error {
	open, err := s.repo.ListOpen(ctx)
	if err != nil {
		return err
	}

	restored, overdue := 0, 0
	for i := range open {
		m := &open[i]
		if window-s.clock.Since(m.MentionTime) > 0 {
			s.Schedule(m, window)
			restored++
		} else {
			s.resolveTimeout(ctx, m.ID)
			overdue++
		}
	}

	slog.InfoContext(ctx, "Restored pending timeouts", "armed", restored, "resolved_overdue", overdue)
	return nil
}

// CancelAll drains every armed timer without closing mentions. Used on
// graceful shutdown; the mentions stay open and are picked up by RestoreAll
// on the next start.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	n := len(s.pending)
	for id, t := range s.pending {
		t.Stop()
		delete(s.pending, id)
		metrics.PendingTimers.Dec()
	}
	s.mu.Unlock()

	slog.Info("Cancelled all pending timeouts", "count", n)
}
