package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/RobinLiu69/MentionDodger/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testWindow = 5 * time.Minute

func newTestScheduler(t *testing.T) (*Scheduler, *memoryLedger, *capturingPublisher, *clockwork.FakeClock) {
	t.Helper()
	ledger := newMemoryLedger()
	publisher := &capturingPublisher{}
	clock := clockwork.NewFakeClock()
	s := NewScheduler(ledger, publisher, clock)
	t.Cleanup(s.CancelAll)
	return s, ledger, publisher, clock
}

func createOpenMention(t *testing.T, ledger *memoryLedger, clock clockwork.Clock) *domain.Mention {
	t.Helper()
	m := &domain.Mention{
		GuildID:         "guild-1",
		ChannelID:       "channel-1",
		MessageID:       "msg-1",
		MentionedUserID: "alice",
		MentionerUserID: "bob",
		MentionTime:     clock.Now(),
	}
	id, err := ledger.CreateMention(context.Background(), m)
	require.NoError(t, err)
	m.ID = id
	return m
}

func TestSchedulerFiresTimeoutAfterWindow(t *testing.T) {
	s, ledger, publisher, clock := newTestScheduler(t)
	m := createOpenMention(t, ledger, clock)

	s.Schedule(m, testWindow)
	assert.True(t, s.IsPending(m.ID))

	clock.Advance(testWindow)

	assert.Eventually(t, func() bool {
		return ledger.get(m.ID).TimedOut
	}, time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		return s.PendingCount() == 0
	}, time.Second, 5*time.Millisecond)

	events := publisher.all()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventMentionTimedOut, events[0].Type)
	assert.Equal(t, m.ID, events[0].MentionID)
	assert.Equal(t, "alice", events[0].MentionedUserID)
}

func TestSchedulerDoesNotFireBeforeWindow(t *testing.T) {
	s, ledger, publisher, clock := newTestScheduler(t)
	m := createOpenMention(t, ledger, clock)

	s.Schedule(m, testWindow)
	clock.Advance(testWindow - time.Second)

	assert.True(t, ledger.get(m.ID).Open())
	assert.True(t, s.IsPending(m.ID))
	assert.Empty(t, publisher.all())
}

func TestSchedulerCancelDisarmsTimer(t *testing.T) {
	s, ledger, publisher, clock := newTestScheduler(t)
	m := createOpenMention(t, ledger, clock)

	s.Schedule(m, testWindow)
	assert.True(t, s.Cancel(m.ID))
	assert.Equal(t, 0, s.PendingCount())

	clock.Advance(testWindow * 2)

	assert.True(t, ledger.get(m.ID).Open())
	assert.Empty(t, publisher.all())
}

func TestSchedulerCancelUnknownMention(t *testing.T) {
	s, _, _, _ := newTestScheduler(t)
	assert.False(t, s.Cancel(42))
}

func TestSchedulerTimeoutSkipsAlreadyRespondedMention(t *testing.T) {
	s, ledger, publisher, clock := newTestScheduler(t)
	m := createOpenMention(t, ledger, clock)

	s.Schedule(m, testWindow)

	// A reply is recorded while the timer is still armed.
	won, err := ledger.CloseAsResponded(context.Background(), m.ID, clock.Now())
	require.NoError(t, err)
	require.True(t, won)

	clock.Advance(testWindow)

	assert.Eventually(t, func() bool {
		return s.PendingCount() == 0
	}, time.Second, 5*time.Millisecond)

	got := ledger.get(m.ID)
	assert.True(t, got.Responded)
	assert.False(t, got.TimedOut)
	assert.Equal(t, 0, publisher.countOfType(domain.EventMentionTimedOut))
}

func TestSchedulerOverdueMentionResolvedSynchronously(t *testing.T) {
	s, ledger, publisher, clock := newTestScheduler(t)
	m := createOpenMention(t, ledger, clock)
	clock.Advance(testWindow * 2)

	s.Schedule(m, testWindow)

	assert.Equal(t, 0, s.PendingCount())
	assert.True(t, ledger.get(m.ID).TimedOut)
	assert.Equal(t, 1, publisher.countOfType(domain.EventMentionTimedOut))
}

func TestSchedulerReplacesDuplicateTimer(t *testing.T) {
	s, ledger, publisher, clock := newTestScheduler(t)
	m := createOpenMention(t, ledger, clock)

	s.Schedule(m, testWindow)
	s.Schedule(m, testWindow)
	assert.Equal(t, 1, s.PendingCount())

	clock.Advance(testWindow)

	assert.Eventually(t, func() bool {
		return ledger.get(m.ID).TimedOut
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, publisher.countOfType(domain.EventMentionTimedOut))
}

func TestSchedulerMissingMentionIsSkipped(t *testing.T) {
	s, _, publisher, clock := newTestScheduler(t)
	m := &domain.Mention{ID: 99, MentionTime: clock.Now()}

	s.Schedule(m, testWindow)
	clock.Advance(testWindow)

	assert.Eventually(t, func() bool {
		return s.PendingCount() == 0
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, publisher.all())
}

func TestSchedulerRestoreAll(t *testing.T) {
	s, ledger, publisher, clock := newTestScheduler(t)
	ctx := context.Background()

	fresh := createOpenMention(t, ledger, clock)

	overdue := createOpenMention(t, ledger, clock)
	stale := ledger.get(overdue.ID)
	stale.MentionTime = clock.Now().Add(-2 * testWindow)
	ledger.put(stale)

	answered := createOpenMention(t, ledger, clock)
	won, err := ledger.CloseAsResponded(ctx, answered.ID, clock.Now())
	require.NoError(t, err)
	require.True(t, won)

	require.NoError(t, s.RestoreAll(ctx, testWindow))

	// Only the fresh mention gets a timer; the overdue one is resolved in
	// place and the answered one is ignored.
	assert.Equal(t, 1, s.PendingCount())
	assert.True(t, s.IsPending(fresh.ID))
	assert.True(t, ledger.get(overdue.ID).TimedOut)
	assert.True(t, ledger.get(answered.ID).Responded)
	assert.Equal(t, 1, publisher.countOfType(domain.EventMentionTimedOut))

	clock.Advance(testWindow)

	assert.Eventually(t, func() bool {
		return ledger.get(fresh.ID).TimedOut
	}, time.Second, 5*time.Millisecond)
}

func TestSchedulerRestoreAllArmsRemainingWindowOnly(t *testing.T) {
	s, ledger, publisher, clock := newTestScheduler(t)

	m := createOpenMention(t, ledger, clock)
	clock.Advance(testWindow / 2)

	require.NoError(t, s.RestoreAll(context.Background(), testWindow))
	require.True(t, s.IsPending(m.ID))

	// Advancing past the original deadline must fire; the timer was armed
	// with the remaining half window, not a full one.
	clock.Advance(testWindow / 2)

	assert.Eventually(t, func() bool {
		return ledger.get(m.ID).TimedOut
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, publisher.countOfType(domain.EventMentionTimedOut))
}

func TestSchedulerCancelAllLeavesMentionsOpen(t *testing.T) {
	s, ledger, publisher, clock := newTestScheduler(t)
	first := createOpenMention(t, ledger, clock)
	second := createOpenMention(t, ledger, clock)

	s.Schedule(first, testWindow)
	s.Schedule(second, testWindow)
	require.Equal(t, 2, s.PendingCount())

	s.CancelAll()
	assert.Equal(t, 0, s.PendingCount())

	clock.Advance(testWindow * 2)

	assert.True(t, ledger.get(first.ID).Open())
	assert.True(t, ledger.get(second.ID).Open())
	assert.Empty(t, publisher.all())
}
