package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/RobinLiu69/MentionDodger/internal/domain"
)

// memoryLedger is an in-memory MentionRepository with the same close-iff-open
// semantics as the real store.
type memoryLedger struct {
	mu       sync.Mutex
	nextID   int64
	mentions map[int64]*domain.Mention

	getErr   error
	closeErr error
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{mentions: make(map[int64]*domain.Mention)}
}

func (l *memoryLedger) CreateMention(_ context.Context, m *domain.Mention) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	stored := *m
	stored.ID = l.nextID
	l.mentions[stored.ID] = &stored
	return stored.ID, nil
}

func (l *memoryLedger) GetByID(_ context.Context, id int64) (*domain.Mention, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.getErr != nil {
		return nil, l.getErr
	}
	m, ok := l.mentions[id]
	if !ok {
		return nil, domain.ErrMentionNotFound
	}
	copied := *m
	return &copied, nil
}

func (l *memoryLedger) ListOpen(_ context.Context) ([]domain.Mention, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var open []domain.Mention
	for _, m := range l.mentions {
		if m.Open() {
			open = append(open, *m)
		}
	}
	return open, nil
}

func (l *memoryLedger) ListOpenForUser(_ context.Context, userID, channelID string) ([]domain.Mention, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var open []domain.Mention
	for _, m := range l.mentions {
		if m.Open() && m.MentionedUserID == userID && m.ChannelID == channelID {
			open = append(open, *m)
		}
	}
	return open, nil
}

func (l *memoryLedger) CloseAsResponded(_ context.Context, id int64, responseTime time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closeErr != nil {
		return false, l.closeErr
	}
	m, ok := l.mentions[id]
	if !ok || !m.Open() {
		return false, nil
	}
	m.Responded = true
	m.ResponseTime = &responseTime
	return true, nil
}

func (l *memoryLedger) CloseAsTimeout(_ context.Context, id int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closeErr != nil {
		return false, l.closeErr
	}
	m, ok := l.mentions[id]
	if !ok || !m.Open() {
		return false, nil
	}
	m.TimedOut = true
	return true, nil
}

func (l *memoryLedger) get(id int64) domain.Mention {
	l.mu.Lock()
	defer l.mu.Unlock()
	return *l.mentions[id]
}

func (l *memoryLedger) put(m domain.Mention) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if m.ID > l.nextID {
		l.nextID = m.ID
	}
	l.mentions[m.ID] = &m
}

// capturingPublisher records published events for assertions.
type capturingPublisher struct {
	mu     sync.Mutex
	events []domain.MentionEvent
}

func (p *capturingPublisher) PublishMentionEvent(event domain.MentionEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturingPublisher) all() []domain.MentionEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.MentionEvent, len(p.events))
	copy(out, p.events)
	return out
}

func (p *capturingPublisher) countOfType(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

// fakeRoster is an in-memory RosterRepository.
type fakeRoster struct {
	mu      sync.Mutex
	tracked map[string]bool
	err     error
}

func newFakeRoster(userIDs ...string) *fakeRoster {
	r := &fakeRoster{tracked: make(map[string]bool)}
	for _, id := range userIDs {
		r.tracked[id] = true
	}
	return r
}

func (r *fakeRoster) Join(_ context.Context, userID, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracked[userID] = true
	return nil
}

func (r *fakeRoster) Quit(_ context.Context, userID, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tracked, userID)
	return nil
}

func (r *fakeRoster) IsTracked(_ context.Context, userID, _ string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	return r.tracked[userID], nil
}

func (r *fakeRoster) ListTracked(_ context.Context, _ string) ([]domain.TrackedPlayer, error) {
	return nil, nil
}

// fakeDeduper remembers delivery IDs in memory.
type fakeDeduper struct {
	mu   sync.Mutex
	seen map[uuid.UUID]bool
	err  error
}

func newFakeDeduper() *fakeDeduper {
	return &fakeDeduper{seen: make(map[uuid.UUID]bool)}
}

func (d *fakeDeduper) FirstSeen(_ context.Context, deliveryID uuid.UUID) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	if d.seen[deliveryID] {
		return false, nil
	}
	d.seen[deliveryID] = true
	return true, nil
}

// fakeSettingsRepo serves fixed settings, optionally failing.
type fakeSettingsRepo struct {
	mu       sync.Mutex
	settings domain.Settings
	err      error
	calls    int
}

func (r *fakeSettingsRepo) GetSettings(_ context.Context) (domain.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return domain.Settings{}, r.err
	}
	return r.settings, nil
}

func (r *fakeSettingsRepo) UpdateSettings(_ context.Context, s domain.Settings) (domain.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings = s
	return s, nil
}

func (r *fakeSettingsRepo) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}
