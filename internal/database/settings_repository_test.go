package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RobinLiu69/MentionDodger/internal/domain"
)

func TestGetSettingsReturnsDefaultsWhenUnseeded(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewSettingsRepo(pool)

	s, err := repo.GetSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSettings().ResponseTimeoutSeconds, s.ResponseTimeoutSeconds)
	assert.Equal(t, domain.DefaultSettings().MinResponseLength, s.MinResponseLength)
}

func TestSeedSettings(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewSettingsRepo(pool)
	ctx := context.Background()

	require.NoError(t, repo.SeedSettings(ctx, 120, 5))

	s, err := repo.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 120, s.ResponseTimeoutSeconds)
	assert.Equal(t, 5, s.MinResponseLength)

	// Seeding again must not clobber the existing row.
	require.NoError(t, repo.SeedSettings(ctx, 900, 50))

	s, err = repo.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 120, s.ResponseTimeoutSeconds)
}

func TestUpdateSettings(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewSettingsRepo(pool)
	ctx := context.Background()

	stored, err := repo.UpdateSettings(ctx, domain.Settings{
		ResponseTimeoutSeconds: 600,
		MinResponseLength:      10,
	})
	require.NoError(t, err)
	assert.Equal(t, 600, stored.ResponseTimeoutSeconds)
	assert.Equal(t, 10, stored.MinResponseLength)
	assert.False(t, stored.UpdatedAt.IsZero())

	s, err := repo.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 600, s.ResponseTimeoutSeconds)
}

func TestUpdateSettingsRejectsOutOfRangeValues(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewSettingsRepo(pool)
	ctx := context.Background()

	tests := []domain.Settings{
		{ResponseTimeoutSeconds: 9, MinResponseLength: 3},
		{ResponseTimeoutSeconds: 3601, MinResponseLength: 3},
		{ResponseTimeoutSeconds: 300, MinResponseLength: 0},
		{ResponseTimeoutSeconds: 300, MinResponseLength: 101},
	}
	for _, s := range tests {
		_, err := repo.UpdateSettings(ctx, s)
		assert.ErrorIs(t, err, domain.ErrSettingsOutOfRange)
	}
}
