package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RobinLiu69/MentionDodger/internal/domain"
)

// mentionColumns must match the Scan order in scanMention.
const mentionColumns = `id, guild_id, channel_id, message_id, mentioned_user_id, mentioner_user_id, mention_time, responded, response_time, timed_out`

// MentionRepo implements domain.MentionRepository backed by PostgreSQL.
// It owns the ledger's consistency contract: the close operations are the
// single idempotent "transition iff open" primitive both the reply path and
// the timeout path race through, and every closing transition recomputes the
// addressee's response rate in the same transaction.
type MentionRepo struct {
	pool *pgxpool.Pool
}

// NewMentionRepo creates a MentionRepo from the shared connection pool.
func NewMentionRepo(pool *pgxpool.Pool) *MentionRepo {
	return &MentionRepo{pool: pool}
}

func scanMention(row pgx.Row) (*domain.Mention, error) {
	var m domain.Mention
	err := row.Scan(
		&m.ID, &m.GuildID, &m.ChannelID, &m.MessageID,
		&m.MentionedUserID, &m.MentionerUserID, &m.MentionTime,
		&m.Responded, &m.ResponseTime, &m.TimedOut,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateMention inserts an open mention and increments the addressee's
// mention_count in the same transaction. Returns the assigned id.
func (r *MentionRepo) CreateMention(ctx context.Context, m *domain.Mention) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO mentions (guild_id, channel_id, message_id, mentioned_user_id, mentioner_user_id, mention_time)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, m.GuildID, m.ChannelID, m.MessageID, m.MentionedUserID, m.MentionerUserID, m.MentionTime).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert mention: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO ghost_stats (user_id, guild_id, mention_count, last_updated)
		VALUES ($1, $2, 1, NOW())
		ON CONFLICT (user_id, guild_id) DO UPDATE SET
			mention_count = ghost_stats.mention_count + 1,
			last_updated = NOW()
	`, m.MentionedUserID, m.GuildID)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert ghost stats: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return id, nil
}

// GetByID returns a single mention or domain.ErrMentionNotFound.
func (r *MentionRepo) GetByID(ctx context.Context, id int64) (*domain.Mention, error) {
	m, err := scanMention(r.pool.QueryRow(ctx,
		`SELECT `+mentionColumns+` FROM mentions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrMentionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mention by ID: %w", err)
	}
	return m, nil
}

// ListOpen returns all open mentions ordered by mention time ascending.
// Used only during startup recovery.
func (r *MentionRepo) ListOpen(ctx context.Context) ([]domain.Mention, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+mentionColumns+` FROM mentions
		WHERE NOT responded AND NOT timed_out
		ORDER BY mention_time ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list open mentions: %w", err)
	}
	return collectMentions(rows)
}

// ListOpenForUser returns the open mentions a reply from userID in channelID
// could resolve, newest first.
func (r *MentionRepo) ListOpenForUser(ctx context.Context, userID, channelID string) ([]domain.Mention, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+mentionColumns+` FROM mentions
		WHERE mentioned_user_id = $1
		  AND channel_id = $2
		  AND NOT responded AND NOT timed_out
		ORDER BY mention_time DESC
	`, userID, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list open mentions for user: %w", err)
	}
	return collectMentions(rows)
}

func collectMentions(rows pgx.Rows) ([]domain.Mention, error) {
	defer rows.Close()

	var mentions []domain.Mention
	for rows.Next() {
		m, err := scanMention(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mention: %w", err)
		}
		mentions = append(mentions, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read mention rows: %w", err)
	}
	return mentions, nil
}

// CloseAsResponded transitions the mention to closed/responded iff it is
// currently open. Returns false when the mention was already closed or does
// not exist; that is not an error, it means the timeout path won the race.
func (r *MentionRepo) CloseAsResponded(ctx context.Context, id int64, responseTime time.Time) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	var userID, guildID string
	err = tx.QueryRow(ctx, `
		UPDATE mentions
		SET responded = TRUE, response_time = $2
		WHERE id = $1 AND NOT responded AND NOT timed_out
		RETURNING mentioned_user_id, guild_id
	`, id, responseTime).Scan(&userID, &guildID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to close mention as responded: %w", err)
	}

	if err := recomputeResponseRate(ctx, tx, userID, guildID); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return true, nil
}

// CloseAsTimeout transitions the mention to closed/timed-out iff it is
// currently open, incrementing the addressee's ghost count. Returns false
// when the reply path already closed it.
func (r *MentionRepo) CloseAsTimeout(ctx context.Context, id int64) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	var userID, guildID string
	err = tx.QueryRow(ctx, `
		UPDATE mentions
		SET timed_out = TRUE
		WHERE id = $1 AND NOT responded AND NOT timed_out
		RETURNING mentioned_user_id, guild_id
	`, id).Scan(&userID, &guildID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to close mention as timed out: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO ghost_stats (user_id, guild_id, ghost_count, last_updated)
		VALUES ($1, $2, 1, NOW())
		ON CONFLICT (user_id, guild_id) DO UPDATE SET
			ghost_count = ghost_stats.ghost_count + 1,
			last_updated = NOW()
	`, userID, guildID)
	if err != nil {
		return false, fmt.Errorf("failed to increment ghost count: %w", err)
	}

	if err := recomputeResponseRate(ctx, tx, userID, guildID); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return true, nil
}

// recomputeResponseRate derives response_rate from the mentions table inside
// the caller's transaction, keeping the GhostStat invariant intact at
// read-committed isolation.
func recomputeResponseRate(ctx context.Context, tx pgx.Tx, userID, guildID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE ghost_stats
		SET response_rate = (
				SELECT COUNT(*) FROM mentions
				WHERE mentioned_user_id = $1 AND guild_id = $2 AND responded
			)::real / GREATEST(mention_count, 1),
			last_updated = NOW()
		WHERE user_id = $1 AND guild_id = $2
	`, userID, guildID)
	if err != nil {
		return fmt.Errorf("failed to recompute response rate: %w", err)
	}
	return nil
}
