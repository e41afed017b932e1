package server

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var feedUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The feed is read-only and carries no credentials, so any origin may
	// subscribe.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleFeed upgrades the connection and streams mention lifecycle events for
// one guild until the client disconnects.
func (s *Server) handleFeed(c echo.Context) error {
	guildID := c.Param("guild")
	if guildID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "guild id required")
	}

	conn, err := feedUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return nil
	}

	if err := s.hub.Register(guildID, conn); err != nil {
		slog.Warn("Rejected feed client", "guild_id", guildID, "error", err)
		return nil
	}

	slog.Debug("Feed client connected", "guild_id", guildID)

	// Reads only service control frames; the hub owns all writes.
	go func() {
		defer s.hub.Unregister(guildID, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	return nil
}
