package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// --- Model types ---

// Mention is one tracked expectation that a mentioned user replies in time.
// A mention is open until exactly one of Responded or TimedOut is set; a
// closed mention is never mutated again.
type Mention struct {
	ID              int64      `db:"id"`
	GuildID         string     `db:"guild_id"`
	ChannelID       string     `db:"channel_id"`
	MessageID       string     `db:"message_id"`
	MentionedUserID string     `db:"mentioned_user_id"`
	MentionerUserID string     `db:"mentioner_user_id"`
	MentionTime     time.Time  `db:"mention_time"`
	Responded       bool       `db:"responded"`
	ResponseTime    *time.Time `db:"response_time"`
	TimedOut        bool       `db:"timed_out"`
}

// Open reports whether the mention still awaits a terminal outcome.
func (m Mention) Open() bool {
	return !m.Responded && !m.TimedOut
}

// GhostStat is the per-user, per-guild reputation aggregate.
// ResponseRate is recomputed inside the same transaction as any change to
// GhostCount or MentionCount.
type GhostStat struct {
	UserID       string    `db:"user_id" json:"user_id"`
	GuildID      string    `db:"guild_id" json:"guild_id"`
	GhostCount   int       `db:"ghost_count" json:"ghost_count"`
	MentionCount int       `db:"mention_count" json:"mention_count"`
	ResponseRate float64   `db:"response_rate" json:"response_rate"`
	LastUpdated  time.Time `db:"last_updated" json:"last_updated"`
}

// SystemStats is the service-wide aggregate surfaced for operators.
type SystemStats struct {
	TotalMentions  int        `json:"total_mentions"`
	TotalResponded int        `json:"total_responded"`
	TotalTimedOut  int        `json:"total_timed_out"`
	OpenMentions   int        `json:"open_mentions"`
	TrackedPlayers int        `json:"tracked_players"`
	TopGhost       *GhostStat `json:"top_ghost,omitempty"`
}

// TrackedPlayer is a roster entry: only tracked users accumulate mentions.
type TrackedPlayer struct {
	UserID   string    `db:"user_id" json:"user_id"`
	GuildID  string    `db:"guild_id" json:"guild_id"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
}

// Settings are the runtime-tunable ghost rules. Changes apply to new
// mentions only; armed timers keep their original deadline.
type Settings struct {
	ResponseTimeoutSeconds int       `db:"response_timeout_seconds" json:"response_timeout_seconds"`
	MinResponseLength      int       `db:"min_response_length" json:"min_response_length"`
	UpdatedAt              time.Time `db:"updated_at" json:"updated_at"`
}

// Window returns the response timeout as a duration.
func (s Settings) Window() time.Duration {
	return time.Duration(s.ResponseTimeoutSeconds) * time.Second
}

// DefaultSettings are used until the settings row exists.
func DefaultSettings() Settings {
	return Settings{ResponseTimeoutSeconds: 300, MinResponseLength: 3}
}

// MentionedUser identifies one addressee carried by an inbound message.
type MentionedUser struct {
	ID    string `json:"id"`
	IsBot bool   `json:"is_bot"`
}

// Message is an inbound chat message as delivered by the transport.
// DeliveryID is the transport's delivery identifier, used to deduplicate
// redelivered events; it is not the chat message ID.
type Message struct {
	DeliveryID  uuid.UUID       `json:"delivery_id"`
	GuildID     string          `json:"guild_id"`
	ChannelID   string          `json:"channel_id"`
	MessageID   string          `json:"message_id"`
	AuthorID    string          `json:"author_id"`
	AuthorIsBot bool            `json:"author_is_bot"`
	Content     string          `json:"content"`
	Mentions    []MentionedUser `json:"mentions"`
}

// --- Event types ---

const (
	EventMentionCreated   = "created"
	EventMentionResponded = "responded"
	EventMentionTimedOut  = "timed_out"
)

// MentionEvent is pushed to live feed subscribers on lifecycle transitions.
type MentionEvent struct {
	Type            string    `json:"type"`
	MentionID       int64     `json:"mention_id"`
	GuildID         string    `json:"guild_id"`
	ChannelID       string    `json:"channel_id"`
	MentionedUserID string    `json:"mentioned_user_id"`
	At              time.Time `json:"at"`
}

// --- Interfaces ---

// MentionRepository is the obligation ledger. CloseAsResponded and
// CloseAsTimeout transition a mention iff it is currently open and report
// whether the write won; a false return with nil error means the mention was
// already closed (or absent) and nothing changed. Both recompute the
// addressee's GhostStat in the same transaction.
type MentionRepository interface {
	CreateMention(ctx context.Context, m *Mention) (int64, error)
	GetByID(ctx context.Context, id int64) (*Mention, error)
	ListOpen(ctx context.Context) ([]Mention, error)
	ListOpenForUser(ctx context.Context, userID, channelID string) ([]Mention, error)
	CloseAsResponded(ctx context.Context, id int64, responseTime time.Time) (bool, error)
	CloseAsTimeout(ctx context.Context, id int64) (bool, error)
}

// StatsRepository serves the presentation query surface.
type StatsRepository interface {
	GetStats(ctx context.Context, userID, guildID string) (*GhostStat, error)
	Leaderboard(ctx context.Context, guildID string, limit int) ([]GhostStat, error)
	ListGuildStats(ctx context.Context, guildID string) ([]GhostStat, error)
	SystemStats(ctx context.Context) (*SystemStats, error)
	ResetUser(ctx context.Context, userID, guildID string) error
	ResetGuild(ctx context.Context, guildID string) error
}

// RosterRepository is the eligibility allow-list.
type RosterRepository interface {
	Join(ctx context.Context, userID, guildID string) error
	Quit(ctx context.Context, userID, guildID string) error
	IsTracked(ctx context.Context, userID, guildID string) (bool, error)
	ListTracked(ctx context.Context, guildID string) ([]TrackedPlayer, error)
}

// SettingsRepository persists the runtime-tunable ghost rules.
type SettingsRepository interface {
	GetSettings(ctx context.Context) (Settings, error)
	UpdateSettings(ctx context.Context, s Settings) (Settings, error)
}

// Deduper filters redelivered transport events. FirstSeen returns true the
// first time a delivery ID is observed within the dedup window.
type Deduper interface {
	FirstSeen(ctx context.Context, deliveryID uuid.UUID) (bool, error)
}

// EventPublisher pushes mention lifecycle events to live subscribers.
// Implementations must not block the caller.
type EventPublisher interface {
	PublishMentionEvent(event MentionEvent)
}
