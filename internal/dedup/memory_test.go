package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_FirstSeen(t *testing.T) {
	clock := clockwork.NewFakeClock()
	d := NewMemory(5*time.Minute, clock)
	id := uuid.New()

	first, err := d.FirstSeen(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := d.FirstSeen(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, again)
}

func TestMemory_ForgetsAfterWindow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	d := NewMemory(5*time.Minute, clock)
	id := uuid.New()

	first, err := d.FirstSeen(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, first)

	clock.Advance(5*time.Minute + time.Second)

	first, err = d.FirstSeen(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, first, "expired entries should be forgotten")
}

func TestMemory_DistinctIDsIndependent(t *testing.T) {
	clock := clockwork.NewFakeClock()
	d := NewMemory(time.Minute, clock)

	first, err := d.FirstSeen(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.True(t, first)

	first, err = d.FirstSeen(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.True(t, first)
}
