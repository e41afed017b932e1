package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RobinLiu69/MentionDodger/internal/domain"
)

const statColumns = `user_id, guild_id, ghost_count, mention_count, response_rate, last_updated`

// StatsRepo implements domain.StatsRepository backed by PostgreSQL.
type StatsRepo struct {
	pool *pgxpool.Pool
}

// NewStatsRepo creates a StatsRepo from the shared connection pool.
func NewStatsRepo(pool *pgxpool.Pool) *StatsRepo {
	return &StatsRepo{pool: pool}
}

func scanStat(row pgx.Row) (*domain.GhostStat, error) {
	var s domain.GhostStat
	err := row.Scan(&s.UserID, &s.GuildID, &s.GhostCount, &s.MentionCount, &s.ResponseRate, &s.LastUpdated)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetStats returns one user's aggregate or domain.ErrStatsNotFound.
func (r *StatsRepo) GetStats(ctx context.Context, userID, guildID string) (*domain.GhostStat, error) {
	s, err := scanStat(r.pool.QueryRow(ctx,
		`SELECT `+statColumns+` FROM ghost_stats WHERE user_id = $1 AND guild_id = $2`,
		userID, guildID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrStatsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ghost stats: %w", err)
	}
	return s, nil
}

// Leaderboard returns up to limit users ordered worst-first: ghost count
// descending, then response rate ascending. Users never mentioned are
// excluded.
func (r *StatsRepo) Leaderboard(ctx context.Context, guildID string, limit int) ([]domain.GhostStat, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+statColumns+` FROM ghost_stats
		WHERE guild_id = $1 AND mention_count > 0
		ORDER BY ghost_count DESC, response_rate ASC
		LIMIT $2
	`, guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var stats []domain.GhostStat
	for rows.Next() {
		s, err := scanStat(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ghost stats: %w", err)
		}
		stats = append(stats, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read leaderboard rows: %w", err)
	}
	return stats, nil
}

// ListGuildStats returns every stat row of a guild in leaderboard order,
// without the limit. Used by the CSV export.
func (r *StatsRepo) ListGuildStats(ctx context.Context, guildID string) ([]domain.GhostStat, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+statColumns+` FROM ghost_stats
		WHERE guild_id = $1
		ORDER BY ghost_count DESC, response_rate ASC
	`, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to query guild stats: %w", err)
	}
	defer rows.Close()

	var stats []domain.GhostStat
	for rows.Next() {
		s, err := scanStat(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ghost stats: %w", err)
		}
		stats = append(stats, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read guild stats rows: %w", err)
	}
	return stats, nil
}

// SystemStats returns service-wide totals and the worst ghost overall.
func (r *StatsRepo) SystemStats(ctx context.Context) (*domain.SystemStats, error) {
	var stats domain.SystemStats
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE responded),
			COUNT(*) FILTER (WHERE timed_out),
			COUNT(*) FILTER (WHERE NOT responded AND NOT timed_out),
			(SELECT COUNT(*) FROM tracked_players)
		FROM mentions
	`).Scan(&stats.TotalMentions, &stats.TotalResponded, &stats.TotalTimedOut,
		&stats.OpenMentions, &stats.TrackedPlayers)
	if err != nil {
		return nil, fmt.Errorf("failed to query system stats: %w", err)
	}

	top, err := scanStat(r.pool.QueryRow(ctx, `
		SELECT `+statColumns+` FROM ghost_stats
		WHERE ghost_count > 0
		ORDER BY ghost_count DESC, response_rate ASC
		LIMIT 1
	`))
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to query top ghost: %w", err)
	}
	if err == nil {
		stats.TopGhost = top
	}
	return &stats, nil
}

// ResetUser deletes one user's stats and mention history in a guild.
func (r *StatsRepo) ResetUser(ctx context.Context, userID, guildID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx,
		`DELETE FROM ghost_stats WHERE user_id = $1 AND guild_id = $2`, userID, guildID); err != nil {
		return fmt.Errorf("failed to delete ghost stats: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM mentions WHERE mentioned_user_id = $1 AND guild_id = $2`, userID, guildID); err != nil {
		return fmt.Errorf("failed to delete mentions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ResetGuild deletes every stat and mention row of a guild.
func (r *StatsRepo) ResetGuild(ctx context.Context, guildID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, `DELETE FROM ghost_stats WHERE guild_id = $1`, guildID); err != nil {
		return fmt.Errorf("failed to delete ghost stats: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM mentions WHERE guild_id = $1`, guildID); err != nil {
		return fmt.Errorf("failed to delete mentions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
