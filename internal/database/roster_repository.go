package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RobinLiu69/MentionDodger/internal/domain"
)

// RosterRepo implements domain.RosterRepository: the allow-list of players
// who opted into ghost tracking.
type RosterRepo struct {
	pool *pgxpool.Pool
}

// NewRosterRepo creates a RosterRepo from the shared connection pool.
func NewRosterRepo(pool *pgxpool.Pool) *RosterRepo {
	return &RosterRepo{pool: pool}
}

// Join adds a user to the roster; joining twice is a no-op.
func (r *RosterRepo) Join(ctx context.Context, userID, guildID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO tracked_players (user_id, guild_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, guild_id) DO NOTHING
	`, userID, guildID)
	if err != nil {
		return fmt.Errorf("failed to join roster: %w", err)
	}
	return nil
}

// Quit removes a user from the roster; quitting when absent is a no-op.
func (r *RosterRepo) Quit(ctx context.Context, userID, guildID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM tracked_players WHERE user_id = $1 AND guild_id = $2`, userID, guildID)
	if err != nil {
		return fmt.Errorf("failed to quit roster: %w", err)
	}
	return nil
}

// IsTracked reports whether a user opted into tracking in a guild.
func (r *RosterRepo) IsTracked(ctx context.Context, userID, guildID string) (bool, error) {
	var tracked bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tracked_players WHERE user_id = $1 AND guild_id = $2)`,
		userID, guildID).Scan(&tracked)
	if err != nil {
		return false, fmt.Errorf("failed to check roster: %w", err)
	}
	return tracked, nil
}

// ListTracked returns a guild's roster ordered by join time.
func (r *RosterRepo) ListTracked(ctx context.Context, guildID string) ([]domain.TrackedPlayer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, guild_id, joined_at FROM tracked_players
		WHERE guild_id = $1
		ORDER BY joined_at ASC
	`, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roster: %w", err)
	}
	defer rows.Close()

	var players []domain.TrackedPlayer
	for rows.Next() {
		var p domain.TrackedPlayer
		if err := rows.Scan(&p.UserID, &p.GuildID, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tracked player: %w", err)
		}
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read roster rows: %w", err)
	}
	return players, nil
}
