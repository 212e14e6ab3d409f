package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// listModelsHandler handles GET /models.
func (s *Server) listModelsHandler(c *echo.Context) error {
	models, err := s.llm.ListModels(c.Request().Context())
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, models)
}
