// Package config loads process configuration from the environment.
//
// A .env file is loaded first (if present) via godotenv, then every
// setting is read from the environment with a typed default, mirroring
// cmd/tarsy/main.go's getEnv + godotenv.Load pattern in the original
// codebase this package was adapted from.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every environment-driven tunable for the benchmark engine.
type Config struct {
	// LLM / HTTP credentials and endpoints.
	LLMAPIKey  string
	LLMBaseURL string

	// Wikipedia client.
	WikiUserAgent string
	WikiBaseURL   string

	// Timeouts.
	HTTPTimeout      time.Duration
	LLMConnectTimeout time.Duration
	LLMReadTimeout    time.Duration
	WSConnectTimeout  time.Duration

	// Orchestrator defaults. POST /runs fills MaxLoops and
	// MaxHallucinationRetries into a RunConfig that leaves them unset;
	// MaxSteps is not filled in (a RunConfig must give a positive value).
	// HistoryWindowSize is checked by Validate only; the orchestrator's
	// history window is fixed at 5.
	MaxSteps                int
	MaxLoops                int
	MaxHallucinationRetries int
	HistoryWindowSize       int

	// Event bus.
	ConnectTimeout time.Duration
	SettleDelay    time.Duration

	// Archive.
	ArchiveBasePath string

	// HTTP server.
	HTTPPort       string
	CORSOrigins    []string
	RateLimitPerMin int

	// Misc.
	LogLevel         string
	InsecureSkipTLS  bool
}

// Load reads configuration from the environment, optionally seeded by a
// .env file at envPath. A missing .env file is not an error — it is logged
// and loading continues from the process environment, exactly as the
// original main.go treats a missing .env as non-fatal.
func Load(envPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			slog.Warn("No .env file loaded, continuing with process environment", "path", envPath, "error", err)
		}
	}

	cfg := &Config{
		LLMAPIKey:               os.Getenv("LLM_API_KEY"),
		LLMBaseURL:              getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
		WikiUserAgent:           getEnv("WIKI_USER_AGENT", "benchwiki/1.0 (Educational Benchmark; https://github.com/codeready-toolchain/benchwiki)"),
		WikiBaseURL:             getEnv("WIKI_BASE_URL", "https://en.wikipedia.org/w/api.php"),
		HTTPTimeout:             getEnvDuration("HTTP_TIMEOUT", 30*time.Second),
		LLMConnectTimeout:       getEnvDuration("LLM_CONNECT_TIMEOUT", 120*time.Second),
		LLMReadTimeout:          getEnvDuration("LLM_READ_TIMEOUT", 300*time.Second),
		WSConnectTimeout:        getEnvDuration("WS_CONNECT_TIMEOUT", 10*time.Second),
		MaxSteps:                getEnvInt("MAX_STEPS", 20),
		MaxLoops:                getEnvInt("MAX_LOOPS", 3),
		MaxHallucinationRetries: getEnvInt("MAX_HALLUCINATION_RETRIES", 3),
		HistoryWindowSize:       getEnvInt("HISTORY_WINDOW_SIZE", 5),
		ConnectTimeout:          getEnvDuration("CONNECT_TIMEOUT", 10*time.Second),
		SettleDelay:             getEnvDuration("SETTLE_DELAY", 500*time.Millisecond),
		ArchiveBasePath:         getEnv("ARCHIVE_BASE_PATH", "archives"),
		HTTPPort:                getEnv("HTTP_PORT", "8000"),
		CORSOrigins:             splitCSV(getEnv("CORS_ORIGINS", "*")),
		RateLimitPerMin:         getEnvInt("RATE_LIMIT_PER_MIN", 0),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		InsecureSkipTLS:         getEnvBool("INSECURE_SKIP_TLS", false),
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("Invalid integer env var, using default", "key", key, "value", v, "default", defaultValue)
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("Invalid boolean env var, using default", "key", key, "value", v, "default", defaultValue)
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("Invalid duration env var, using default", "key", key, "value", v, "default", defaultValue)
		return defaultValue
	}
	return d
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// NewLogger builds the process-wide slog.Logger from the configured level.
func NewLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

// Validate returns an error describing any configuration problem that
// should prevent startup.
func (c *Config) Validate() error {
	if c.MaxSteps <= 0 {
		return fmt.Errorf("config: max_steps must be positive, got %d", c.MaxSteps)
	}
	if c.MaxLoops <= 0 {
		return fmt.Errorf("config: max_loops must be positive, got %d", c.MaxLoops)
	}
	if c.MaxHallucinationRetries <= 0 {
		return fmt.Errorf("config: max_hallucination_retries must be positive, got %d", c.MaxHallucinationRetries)
	}
	if c.HistoryWindowSize <= 0 {
		return fmt.Errorf("config: history_window_size must be positive, got %d", c.HistoryWindowSize)
	}
	return nil
}
