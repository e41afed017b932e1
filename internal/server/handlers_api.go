package server

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/RobinLiu69/MentionDodger/internal/domain"
	"github.com/RobinLiu69/MentionDodger/internal/logging"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 50
)

func (s *Server) handleGetStats(c echo.Context) error {
	guildID := c.Param("guild")
	userID := c.Param("user")
	ctx := c.Request().Context()

	stat, err := s.stats.GetStats(ctx, userID, guildID)
	if errors.Is(err, domain.ErrStatsNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "no stats for user")
	}
	if err != nil {
		slog.Error("Failed to load ghost stats", "error", err, "user_id", userID, "guild_id", guildID)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load stats")
	}

	return c.JSON(http.StatusOK, stat)
}

func (s *Server) handleLeaderboard(c echo.Context) error {
	guildID := c.Param("guild")

	limit := defaultLeaderboardLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be an integer")
		}
		limit = parsed
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}

	stats, err := s.stats.Leaderboard(c.Request().Context(), guildID, limit)
	if err != nil {
		logging.WithGuild(guildID).Error("Failed to load leaderboard", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load leaderboard")
	}
	if stats == nil {
		stats = []domain.GhostStat{}
	}

	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handlePending(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]int{"pending": s.scheduler.PendingCount()})
}

func (s *Server) handleSystemStats(c echo.Context) error {
	sys, err := s.stats.SystemStats(c.Request().Context())
	if err != nil {
		slog.Error("Failed to load system stats", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load system stats")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"totals":       sys,
		"armed_timers": s.scheduler.PendingCount(),
	})
}

func (s *Server) handleListRoster(c echo.Context) error {
	guildID := c.Param("guild")

	players, err := s.roster.ListTracked(c.Request().Context(), guildID)
	if err != nil {
		logging.WithGuild(guildID).Error("Failed to list roster", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list roster")
	}
	if players == nil {
		players = []domain.TrackedPlayer{}
	}

	return c.JSON(http.StatusOK, players)
}

func (s *Server) handleJoinRoster(c echo.Context) error {
	guildID := c.Param("guild")
	userID := c.Param("user")

	if err := s.roster.Join(c.Request().Context(), userID, guildID); err != nil {
		slog.Error("Failed to join roster", "error", err, "user_id", userID, "guild_id", guildID)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to join roster")
	}

	slog.Info("User joined tracking roster", "user_id", userID, "guild_id", guildID)
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleQuitRoster(c echo.Context) error {
	guildID := c.Param("guild")
	userID := c.Param("user")

	if err := s.roster.Quit(c.Request().Context(), userID, guildID); err != nil {
		slog.Error("Failed to quit roster", "error", err, "user_id", userID, "guild_id", guildID)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to quit roster")
	}

	slog.Info("User left tracking roster", "user_id", userID, "guild_id", guildID)
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetSettings(c echo.Context) error {
	settings, err := s.settingsRepo.GetSettings(c.Request().Context())
	if err != nil {
		slog.Error("Failed to load settings", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load settings")
	}
	return c.JSON(http.StatusOK, settings)
}

type updateSettingsRequest struct {
	ResponseTimeoutSeconds int `json:"response_timeout_seconds"`
	MinResponseLength      int `json:"min_response_length"`
}

func (s *Server) handleUpdateSettings(c echo.Context) error {
	var req updateSettingsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	updated, err := s.settingsRepo.UpdateSettings(c.Request().Context(), domain.Settings{
		ResponseTimeoutSeconds: req.ResponseTimeoutSeconds,
		MinResponseLength:      req.MinResponseLength,
	})
	if errors.Is(err, domain.ErrSettingsOutOfRange) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		slog.Error("Failed to update settings", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update settings")
	}

	// Changes apply to mentions created from now on; armed timers keep
	// their original deadline.
	s.settingsCache.Invalidate()

	slog.Info("Settings updated",
		"response_timeout_seconds", updated.ResponseTimeoutSeconds,
		"min_response_length", updated.MinResponseLength)
	return c.JSON(http.StatusOK, updated)
}

func (s *Server) handleExportCSV(c echo.Context) error {
	guildID := c.Param("guild")

	stats, err := s.stats.ListGuildStats(c.Request().Context(), guildID)
	if err != nil {
		logging.WithGuild(guildID).Error("Failed to export guild stats", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to export stats")
	}

	// Render fully before touching the response, so any failure still
	// surfaces as a proper error status instead of a truncated 200 body.
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"rank", "user_id", "ghost_count", "mention_count", "response_rate"})
	for i, stat := range stats {
		_ = w.Write([]string{
			strconv.Itoa(i + 1),
			stat.UserID,
			strconv.Itoa(stat.GhostCount),
			strconv.Itoa(stat.MentionCount),
			strconv.FormatFloat(stat.ResponseRate, 'f', 4, 64),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		logging.WithGuild(guildID).Error("Failed to render stats export", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to export stats")
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="ghost_stats_%s.csv"`, guildID))
	return c.Blob(http.StatusOK, "text/csv", buf.Bytes())
}

func (s *Server) handleResetUser(c echo.Context) error {
	guildID := c.Param("guild")
	userID := c.Param("user")

	if err := s.stats.ResetUser(c.Request().Context(), userID, guildID); err != nil {
		slog.Error("Failed to reset user", "error", err, "user_id", userID, "guild_id", guildID)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to reset user")
	}

	slog.Info("Reset user stats", "user_id", userID, "guild_id", guildID)
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleResetGuild(c echo.Context) error {
	guildID := c.Param("guild")

	// Destructive enough to require typing the guild ID back.
	if c.QueryParam("confirm") != guildID {
		return echo.NewHTTPError(http.StatusBadRequest, "confirm query parameter must match guild id")
	}

	if err := s.stats.ResetGuild(c.Request().Context(), guildID); err != nil {
		logging.WithGuild(guildID).Error("Failed to reset guild", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to reset guild")
	}

	logging.WithGuild(guildID).Info("Reset guild stats")
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
