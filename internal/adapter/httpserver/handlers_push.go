package httpserver

import (
	"log/slog"

	"github.com/labstack/echo/v4"
)

func (s *Server) registerPushRoutes() {
	s.echo.GET("/ws", s.handlePush)
}

// handlePush upgrades to a websocket and hands the connection to the hub
// for the lifetime of the client view.
func (s *Server) handlePush(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		slog.DebugContext(c.Request().Context(), "Push upgrade failed", "error", err)
		return nil
	}

	if err := s.hub.Serve(conn); err != nil {
		slog.WarnContext(c.Request().Context(), "Push client rejected", "error", err)
	}
	return nil
}
