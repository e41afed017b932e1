package logging

import (
	"log/slog"
	"os"

	"github.com/RobinLiu69/MentionDodger/internal/correlation"
)

// InitLogger initializes the global logger with the specified level and format.
// level: "debug", "info", "warn", "error" (defaults to "info")
// format: "json" or "text" (defaults to "text")
func InitLogger(level, format string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(correlation.NewHandler(handler)))
}

// WithGuild returns a logger with a guild_id field.
func WithGuild(guildID string) *slog.Logger {
	return slog.Default().With("guild_id", guildID)
}

// WithMention returns a logger with a mention_id field.
func WithMention(mentionID int64) *slog.Logger {
	return slog.Default().With("mention_id", mentionID)
}
