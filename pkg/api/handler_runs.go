package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/benchwiki/pkg/orchestrator"
)

// startRunHandler handles POST /runs.
func (s *Server) startRunHandler(c *echo.Context) error {
	var req StartRunRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid run config: "+err.Error())
	}

	cfg := orchestrator.RunConfig(req)
	if cfg.MaxLoops <= 0 {
		cfg.MaxLoops = s.cfg.MaxLoops
	}
	if cfg.MaxHallucinationRetries <= 0 {
		cfg.MaxHallucinationRetries = s.cfg.MaxHallucinationRetries
	}
	if err := validateRunConfig(cfg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	runID := s.registry.Start(cfg)
	return c.JSON(http.StatusOK, &StartRunResponse{Message: "run started", RunID: runID})
}

// stopRunHandler handles POST /runs/:id/stop.
func (s *Server) stopRunHandler(c *echo.Context) error {
	runID := c.Param("id")
	if err := s.registry.Stop(runID); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, &StopRunResponse{Message: "stop requested", RunID: runID})
}

func validateRunConfig(cfg orchestrator.RunConfig) error {
	if len(cfg.Models) == 0 {
		return errMissingModels
	}
	if cfg.StartPage == "" || cfg.TargetPage == "" {
		return errMissingPages
	}
	if cfg.MaxSteps <= 0 {
		return errNonPositiveMaxSteps
	}
	return nil
}
