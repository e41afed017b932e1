package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RobinLiu69/MentionDodger/internal/domain"
)

// seedGhost creates mention history so that userID ends with the given counts.
func seedGhost(t *testing.T, repo *MentionRepo, userID string, ghosted, responded int) {
	t.Helper()
	ctx := context.Background()
	for range ghosted {
		id, err := repo.CreateMention(ctx, &domain.Mention{
			GuildID: "g1", ChannelID: "c1", MessageID: "m",
			MentionedUserID: userID, MentionerUserID: "bob",
			MentionTime: time.Now().UTC(),
		})
		require.NoError(t, err)
		won, err := repo.CloseAsTimeout(ctx, id)
		require.NoError(t, err)
		require.True(t, won)
	}
	for range responded {
		id, err := repo.CreateMention(ctx, &domain.Mention{
			GuildID: "g1", ChannelID: "c1", MessageID: "m",
			MentionedUserID: userID, MentionerUserID: "bob",
			MentionTime: time.Now().UTC(),
		})
		require.NoError(t, err)
		won, err := repo.CloseAsResponded(ctx, id, time.Now().UTC())
		require.NoError(t, err)
		require.True(t, won)
	}
}

func TestGetStats_NotFound(t *testing.T) {
	pool := setupTestDB(t)
	stats := NewStatsRepo(pool)

	s, err := stats.GetStats(context.Background(), "nobody", "g1")
	assert.ErrorIs(t, err, domain.ErrStatsNotFound)
	assert.Nil(t, s)
}

func TestLeaderboardOrdering(t *testing.T) {
	pool := setupTestDB(t)
	mentions := NewMentionRepo(pool)
	stats := NewStatsRepo(pool)
	ctx := context.Background()

	seedGhost(t, mentions, "worst", 3, 0)
	seedGhost(t, mentions, "middle", 2, 2)
	seedGhost(t, mentions, "best", 0, 3)

	board, err := stats.Leaderboard(ctx, "g1", 10)
	require.NoError(t, err)
	require.Len(t, board, 3)
	assert.Equal(t, "worst", board[0].UserID)
	assert.Equal(t, "middle", board[1].UserID)
	assert.Equal(t, "best", board[2].UserID)
}

func TestLeaderboardTieBrokenByResponseRate(t *testing.T) {
	pool := setupTestDB(t)
	mentions := NewMentionRepo(pool)
	stats := NewStatsRepo(pool)
	ctx := context.Background()

	// Same ghost count; the lower response rate ranks worse (first).
	seedGhost(t, mentions, "rarely_replies", 2, 1)
	seedGhost(t, mentions, "often_replies", 2, 6)

	board, err := stats.Leaderboard(ctx, "g1", 10)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "rarely_replies", board[0].UserID)
	assert.Equal(t, "often_replies", board[1].UserID)
}

func TestLeaderboardRespectsLimit(t *testing.T) {
	pool := setupTestDB(t)
	mentions := NewMentionRepo(pool)
	stats := NewStatsRepo(pool)

	seedGhost(t, mentions, "a", 3, 0)
	seedGhost(t, mentions, "b", 2, 0)
	seedGhost(t, mentions, "c", 1, 0)

	board, err := stats.Leaderboard(context.Background(), "g1", 2)
	require.NoError(t, err)
	assert.Len(t, board, 2)
}

func TestListGuildStats(t *testing.T) {
	pool := setupTestDB(t)
	mentions := NewMentionRepo(pool)
	stats := NewStatsRepo(pool)

	seedGhost(t, mentions, "a", 2, 0)
	seedGhost(t, mentions, "b", 1, 1)

	all, err := stats.ListGuildStats(context.Background(), "g1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].UserID)
}

func TestSystemStats(t *testing.T) {
	pool := setupTestDB(t)
	mentions := NewMentionRepo(pool)
	roster := NewRosterRepo(pool)
	stats := NewStatsRepo(pool)
	ctx := context.Background()

	require.NoError(t, roster.Join(ctx, "alice", "g1"))
	seedGhost(t, mentions, "alice", 2, 1)

	// One open mention on top of the closed history.
	_, err := mentions.CreateMention(ctx, &domain.Mention{
		GuildID: "g1", ChannelID: "c1", MessageID: "m",
		MentionedUserID: "alice", MentionerUserID: "bob",
		MentionTime: time.Now().UTC(),
	})
	require.NoError(t, err)

	sys, err := stats.SystemStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, sys.TotalMentions)
	assert.Equal(t, 1, sys.TotalResponded)
	assert.Equal(t, 2, sys.TotalTimedOut)
	assert.Equal(t, 1, sys.OpenMentions)
	assert.Equal(t, 1, sys.TrackedPlayers)
	require.NotNil(t, sys.TopGhost)
	assert.Equal(t, "alice", sys.TopGhost.UserID)
}

func TestSystemStatsEmpty(t *testing.T) {
	pool := setupTestDB(t)
	stats := NewStatsRepo(pool)

	sys, err := stats.SystemStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sys.TotalMentions)
	assert.Nil(t, sys.TopGhost)
}

func TestResetUser(t *testing.T) {
	pool := setupTestDB(t)
	mentions := NewMentionRepo(pool)
	stats := NewStatsRepo(pool)
	ctx := context.Background()

	seedGhost(t, mentions, "alice", 1, 1)
	seedGhost(t, mentions, "carol", 1, 0)

	require.NoError(t, stats.ResetUser(ctx, "alice", "g1"))

	_, err := stats.GetStats(ctx, "alice", "g1")
	assert.ErrorIs(t, err, domain.ErrStatsNotFound)

	// Other users keep their history.
	carol, err := stats.GetStats(ctx, "carol", "g1")
	require.NoError(t, err)
	assert.Equal(t, 1, carol.GhostCount)
}

func TestResetGuild(t *testing.T) {
	pool := setupTestDB(t)
	mentions := NewMentionRepo(pool)
	stats := NewStatsRepo(pool)
	ctx := context.Background()

	seedGhost(t, mentions, "alice", 1, 0)
	seedGhost(t, mentions, "carol", 2, 0)

	require.NoError(t, stats.ResetGuild(ctx, "g1"))

	board, err := stats.Leaderboard(ctx, "g1", 10)
	require.NoError(t, err)
	assert.Empty(t, board)

	open, err := mentions.ListOpen(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)
}
