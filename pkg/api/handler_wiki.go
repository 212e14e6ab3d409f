package api

import (
	"errors"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/benchwiki/pkg/wikisource"
)

// validateWikiHandler handles GET /wiki/validate?url=...
//
// A malformed URL or a page the Wikipedia API reports missing is a soft
// failure (200, valid:false) — only an actual upstream fetch error is a 500.
func (s *Server) validateWikiHandler(c *echo.Context) error {
	rawURL := c.QueryParam("url")
	title, err := s.wiki.Validate(c.Request().Context(), rawURL)
	if err == nil {
		return c.JSON(http.StatusOK, &ValidateWikiResponse{Valid: true, Title: title})
	}
	if errors.Is(err, wikisource.ErrPageNotFound) || errors.Is(err, wikisource.ErrInvalidURL) {
		return c.JSON(http.StatusOK, &ValidateWikiResponse{Valid: false, Error: err.Error()})
	}
	return mapServiceError(err)
}

// randomWikiHandler handles GET /wiki/random.
func (s *Server) randomWikiHandler(c *echo.Context) error {
	url, title, err := s.wiki.RandomPage(c.Request().Context())
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, &RandomWikiResponse{URL: url, Title: title})
}
