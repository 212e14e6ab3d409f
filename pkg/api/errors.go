package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/benchwiki/pkg/archive"
	"github.com/codeready-toolchain/benchwiki/pkg/registry"
	"github.com/codeready-toolchain/benchwiki/pkg/wikisource"
)

// Validation errors for a submitted run config.
var (
	errMissingModels       = errors.New("models: at least one model is required")
	errMissingPages        = errors.New("start_page and target_page are required")
	errNonPositiveMaxSteps = errors.New("max_steps must be positive")
)

// mapServiceError maps domain errors to HTTP error responses.
func mapServiceError(err error) *echo.HTTPError {
	if errors.Is(err, wikisource.ErrPageNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "page not found")
	}
	if errors.Is(err, registry.ErrRunNotFound) || errors.Is(err, archive.ErrRunNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}

	slog.Error("unexpected service error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
