package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/benchwiki/pkg/version"
)

// healthHandler handles GET /health.
func (s *Server) healthHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, &HealthResponse{
		Status:  "healthy",
		Version: version.Full(),
	})
}
