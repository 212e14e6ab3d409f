package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// listArchivesHandler handles GET /archives.
func (s *Server) listArchivesHandler(c *echo.Context) error {
	archives, err := s.store.ListArchives()
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, archives)
}

// getArchiveHandler handles GET /archives/:id.
func (s *Server) getArchiveHandler(c *echo.Context) error {
	runID := c.Param("id")
	details, err := s.store.GetArchiveDetails(runID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, details)
}
