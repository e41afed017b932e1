package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/RobinLiu69/MentionDodger/internal/broadcast"
	"github.com/RobinLiu69/MentionDodger/internal/config"
	"github.com/RobinLiu69/MentionDodger/internal/domain"
	"github.com/RobinLiu69/MentionDodger/internal/tracker"
)

// webhookHandler receives signed message deliveries.
type webhookHandler interface {
	HandleMessage(c echo.Context) error
}

// pendingCounter exposes the scheduler's live timer set size.
type pendingCounter interface {
	PendingCount() int
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	stats         domain.StatsRepository
	roster        domain.RosterRepository
	settingsRepo  domain.SettingsRepository
	settingsCache *tracker.SettingsCache
	scheduler     pendingCounter
	hub           *broadcast.Hub
	webhook       webhookHandler

	postgres  postgresHealthChecker
	redis     redisHealthChecker
	startTime time.Time
}

// Dependencies bundles everything the HTTP surface needs.
type Dependencies struct {
	Stats         domain.StatsRepository
	Roster        domain.RosterRepository
	SettingsRepo  domain.SettingsRepository
	SettingsCache *tracker.SettingsCache
	Scheduler     pendingCounter
	Hub           *broadcast.Hub
	Webhook       webhookHandler
	Postgres      postgresHealthChecker
	Redis         redisHealthChecker // nil when Redis is not configured
}

func NewServer(cfg *config.Config, deps Dependencies) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:          e,
		config:        cfg,
		stats:         deps.Stats,
		roster:        deps.Roster,
		settingsRepo:  deps.SettingsRepo,
		settingsCache: deps.SettingsCache,
		scheduler:     deps.Scheduler,
		hub:           deps.Hub,
		webhook:       deps.Webhook,
		postgres:      deps.Postgres,
		redis:         deps.Redis,
		startTime:     time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
