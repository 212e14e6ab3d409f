// Package api provides the HTTP/WebSocket surface for the benchmark engine:
// model listing, Wikipedia URL helpers, run lifecycle, archive browsing, and
// live event streaming.
package api

import (
	"context"
	"net"
	"net/http"

	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/codeready-toolchain/benchwiki/pkg/archive"
	"github.com/codeready-toolchain/benchwiki/pkg/config"
	"github.com/codeready-toolchain/benchwiki/pkg/orchestrator"
)

// ModelLister lists models available from the configured LLM provider.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// WikiValidator validates article URLs and fetches a random article.
type WikiValidator interface {
	Validate(ctx context.Context, rawURL string) (string, error)
	RandomPage(ctx context.Context) (pageURL, title string, err error)
}

// RunRegistry starts, stops, and looks up benchmark runs.
type RunRegistry interface {
	Start(cfg orchestrator.RunConfig) string
	Stop(runID string) error
}

// ArchiveReader serves archived run listings and details.
type ArchiveReader interface {
	ListArchives() ([]archive.ArchiveSummary, error)
	GetArchiveDetails(runID string) (*archive.ArchiveDetails, error)
}

// EventConnector upgrades a connection into a run's live event stream.
type EventConnector interface {
	HandleConnection(ctx context.Context, runID string, conn *websocket.Conn)
}

// Server is the HTTP API server.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server
	cfg        *config.Config
	llm        ModelLister
	wiki       WikiValidator
	registry   RunRegistry
	store      ArchiveReader
	bus        EventConnector
}

// NewServer creates a new API server with Echo v5 and registers all routes.
func NewServer(cfg *config.Config, llm ModelLister, wiki WikiValidator, reg RunRegistry, store ArchiveReader, bus EventConnector) *Server {
	e := echo.New()

	s := &Server{
		echo:     e,
		cfg:      cfg,
		llm:      llm,
		wiki:     wiki,
		registry: reg,
		store:    store,
		bus:      bus,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(2 * 1024 * 1024))
	s.echo.Use(securityHeaders())
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.cfg.CORSOrigins,
	}))

	s.echo.GET("/health", s.healthHandler)

	s.echo.GET("/models", s.listModelsHandler)
	s.echo.GET("/wiki/validate", s.validateWikiHandler)
	s.echo.GET("/wiki/random", s.randomWikiHandler)

	s.echo.POST("/runs", s.startRunHandler)
	s.echo.POST("/runs/:id/stop", s.stopRunHandler)

	s.echo.GET("/archives", s.listArchivesHandler)
	s.echo.GET("/archives/:id", s.getArchiveHandler)

	s.echo.GET("/live/:id", s.wsHandler)
}

// Start starts the HTTP server on the given address (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener, as
// cmd/benchwiki does after binding its port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
