package server

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	s.echo.Use(s.setupRequestLoggerMiddleware())
	s.echo.Use(middleware.Recover())

	// Observability endpoints (no auth required)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.GET("/version", s.handleVersion)

	// Signed message ingress (authenticated by HMAC, not token)
	s.echo.POST("/webhooks/messages", s.webhook.HandleMessage)

	// Live feed (read-only)
	s.echo.GET("/ws/feed/:guild", s.handleFeed)

	// Read API
	s.echo.GET("/api/stats/:guild/:user", s.handleGetStats)
	s.echo.GET("/api/leaderboard/:guild", s.handleLeaderboard)
	s.echo.GET("/api/pending", s.handlePending)
	s.echo.GET("/api/system", s.handleSystemStats)
	s.echo.GET("/api/roster/:guild", s.handleListRoster)
	s.echo.GET("/api/settings", s.handleGetSettings)
	s.echo.GET("/api/export/:guild", s.handleExportCSV)

	// Mutating API (admin token required)
	admin := s.echo.Group("/api", s.requireAdmin)
	admin.POST("/roster/:guild/:user", s.handleJoinRoster)
	admin.DELETE("/roster/:guild/:user", s.handleQuitRoster)
	admin.PUT("/settings", s.handleUpdateSettings)
	admin.POST("/reset/:guild/:user", s.handleResetUser)
	admin.POST("/reset/:guild", s.handleResetGuild)
}

func (s *Server) setupRequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.Info("Request", attrs...)
			return nil
		},
	})
}
