package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RobinLiu69/MentionDodger/internal/domain"
)

// SettingsRepo persists the runtime-tunable ghost rules as a singleton row.
type SettingsRepo struct {
	pool *pgxpool.Pool
}

// NewSettingsRepo creates a SettingsRepo from the shared connection pool.
func NewSettingsRepo(pool *pgxpool.Pool) *SettingsRepo {
	return &SettingsRepo{pool: pool}
}

// GetSettings returns the current settings, or the defaults when the row
// does not exist yet.
func (r *SettingsRepo) GetSettings(ctx context.Context) (domain.Settings, error) {
	var s domain.Settings
	err := r.pool.QueryRow(ctx,
		`SELECT response_timeout_seconds, min_response_length, updated_at FROM settings WHERE id = TRUE`,
	).Scan(&s.ResponseTimeoutSeconds, &s.MinResponseLength, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DefaultSettings(), nil
	}
	if err != nil {
		return domain.Settings{}, fmt.Errorf("failed to get settings: %w", err)
	}
	return s, nil
}

// UpdateSettings upserts the singleton row after bounds validation and
// returns the stored values.
func (r *SettingsRepo) UpdateSettings(ctx context.Context, s domain.Settings) (domain.Settings, error) {
	if s.ResponseTimeoutSeconds < 10 || s.ResponseTimeoutSeconds > 3600 {
		return domain.Settings{}, domain.ErrSettingsOutOfRange
	}
	if s.MinResponseLength < 1 || s.MinResponseLength > 100 {
		return domain.Settings{}, domain.ErrSettingsOutOfRange
	}

	var stored domain.Settings
	err := r.pool.QueryRow(ctx, `
		INSERT INTO settings (id, response_timeout_seconds, min_response_length, updated_at)
		VALUES (TRUE, $1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET
			response_timeout_seconds = EXCLUDED.response_timeout_seconds,
			min_response_length = EXCLUDED.min_response_length,
			updated_at = NOW()
		RETURNING response_timeout_seconds, min_response_length, updated_at
	`, s.ResponseTimeoutSeconds, s.MinResponseLength).Scan(
		&stored.ResponseTimeoutSeconds, &stored.MinResponseLength, &stored.UpdatedAt)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("failed to update settings: %w", err)
	}
	return stored, nil
}

// SeedSettings creates the settings row from config values if it is absent.
// Existing values stay untouched so restarts do not clobber admin changes.
func (r *SettingsRepo) SeedSettings(ctx context.Context, timeoutSeconds, minLength int) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO settings (id, response_timeout_seconds, min_response_length)
		VALUES (TRUE, $1, $2)
		ON CONFLICT (id) DO NOTHING
	`, timeoutSeconds, minLength)
	if err != nil {
		return fmt.Errorf("failed to seed settings: %w", err)
	}
	return nil
}
