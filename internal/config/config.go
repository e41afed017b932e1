package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds everything supplied through the environment. Runtime-tunable
// ghost rules (timeout window, min reply length) live in the database; the
// values here only seed the settings row on first start.
type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"development"`
	Port        string `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL" validate:"required"`
	RedisURL    string `env:"REDIS_URL"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"text"`

	// WebhookSecret signs inbound message events; the gateway rejects
	// requests whose HMAC does not match.
	WebhookSecret string `env:"WEBHOOK_SECRET" validate:"required,min=10,max=100"`

	// AdminToken authorizes mutating API endpoints (settings, resets).
	AdminToken string `env:"ADMIN_TOKEN" validate:"required,min=16"`

	// Ghost rule seeds, applied only when the settings row does not exist yet.
	ResponseTimeoutSeconds int `env:"RESPONSE_TIMEOUT_SECONDS" envDefault:"300" validate:"min=10,max=3600"`
	MinResponseLength      int `env:"MIN_RESPONSE_LENGTH" envDefault:"3" validate:"min=1,max=100"`

	// DedupWindowSeconds is how long a webhook delivery ID is remembered.
	DedupWindowSeconds int `env:"DEDUP_WINDOW_SECONDS" envDefault:"300" validate:"min=10"`
}

// Load reads .env (if present), parses the environment and validates bounds.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
