// Command benchwiki runs the Wikipedia navigation benchmark engine: an
// HTTP/WebSocket API that starts, streams, and archives LLM navigation
// runs.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codeready-toolchain/benchwiki/pkg/api"
	"github.com/codeready-toolchain/benchwiki/pkg/archive"
	"github.com/codeready-toolchain/benchwiki/pkg/config"
	"github.com/codeready-toolchain/benchwiki/pkg/events"
	"github.com/codeready-toolchain/benchwiki/pkg/llmadapter"
	"github.com/codeready-toolchain/benchwiki/pkg/orchestrator"
	"github.com/codeready-toolchain/benchwiki/pkg/registry"
	"github.com/codeready-toolchain/benchwiki/pkg/wikisource"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	envPath := flag.String("env-file", getEnv("ENV_FILE", ".env"), "path to a .env file (optional)")
	flag.Parse()

	cfg, err := config.Load(*envPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := config.NewLogger(cfg)
	slog.SetDefault(logger)

	wiki := wikisource.New(&http.Client{Timeout: cfg.HTTPTimeout}, cfg.WikiBaseURL, cfg.WikiUserAgent)

	llm, err := llmadapter.New(llmadapter.Config{APIKey: cfg.LLMAPIKey, BaseURL: cfg.LLMBaseURL})
	if err != nil {
		slog.Error("failed to create LLM adapter", "error", err)
		os.Exit(1)
	}

	store, err := archive.New(cfg.ArchiveBasePath)
	if err != nil {
		slog.Error("failed to create archive store", "error", err)
		os.Exit(1)
	}

	bus := events.NewBus()
	orch := orchestrator.New(wiki, llm, store, bus, time.Second, 300*time.Millisecond, 100*time.Millisecond)
	reg := registry.New(orch, bus, cfg.ConnectTimeout, cfg.SettleDelay)

	server := api.NewServer(cfg, llm, wiki, reg, store, bus)

	ln, err := net.Listen("tcp", ":"+cfg.HTTPPort)
	if err != nil {
		slog.Error("failed to bind HTTP listener", "port", cfg.HTTPPort, "error", err)
		os.Exit(1)
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting benchwiki", "port", cfg.HTTPPort)
		serverErr <- server.StartWithListener(ln)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("server stopped unexpectedly", "error", err)
			os.Exit(1)
		}
	case sig := <-sigChan:
		slog.Info("received shutdown signal, stopping server", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("error during graceful shutdown", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("benchwiki stopped")
}
