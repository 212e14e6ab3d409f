package api

import (
	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"
)

// wsHandler upgrades HTTP connections to WebSocket and delegates to the
// event bus for a single run's live event stream.
func (s *Server) wsHandler(c *echo.Context) error {
	runID := c.Param("id")

	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		OriginPatterns: s.cfg.CORSOrigins,
	})
	if err != nil {
		return err
	}

	s.bus.HandleConnection(c.Request().Context(), runID, conn)
	return nil
}
