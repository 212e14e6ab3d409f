// Package orchestrator drives a benchmark run: for each configured model,
// it repeatedly fetches a Wikipedia page, asks the model to pick a link
// toward the target page, follows that link, and records every step. It
// owns the navigation state machine; wikisource, llmadapter, archive, and
// events are reached only through small interfaces so the state machine
// can be tested without a network or filesystem.
package orchestrator

import (
	"context"
	"time"

	"github.com/codeready-toolchain/benchwiki/pkg/archive"
	"github.com/codeready-toolchain/benchwiki/pkg/llmadapter"
	"github.com/codeready-toolchain/benchwiki/pkg/wikisource"
)

// RunConfig is the full configuration for one benchmark run across one or
// more models.
type RunConfig struct {
	Models                  []string `json:"models"`
	StartPage               string   `json:"start_page"`
	TargetPage              string   `json:"target_page"`
	MaxSteps                int      `json:"max_steps"`
	MaxLoops                int      `json:"max_loops"`
	MaxHallucinationRetries int      `json:"max_hallucination_retries"`
	UseStructuredOutput     bool     `json:"use_structured_output"`
}

// WikiSource fetches and anonymizes Wikipedia pages.
type WikiSource interface {
	FetchPage(ctx context.Context, title string) (*wikisource.Page, error)
}

// LLM issues a navigation prompt against a model and returns its choice.
type LLM interface {
	ChatStructured(ctx context.Context, model string, messages []llmadapter.Message, availableConcepts map[string]string, useStructuredOutput bool, maxRetries int, initialDelay time.Duration) (*llmadapter.AdapterResponse, error)
}

// Archive persists per-step and per-model artifacts for a run.
type Archive interface {
	SaveConfig(runID string, config any) error
	SaveModelStep(runID string, pairIdx int, modelName string, step archive.StepRecord) error
	SaveModelMetrics(runID string, pairIdx int, modelName string, metrics archive.ModelMetrics) error
	SaveSummary(runID string, summary archive.RunSummary) error
}

// Publisher emits run progress events. The concrete implementation is
// *events.Bus; this interface exists so the orchestrator never imports
// the events package's WebSocket machinery.
type Publisher interface {
	Publish(runID string, event any)
}

// ModelResult is the in-memory result of one model's run, returned from
// RunBenchmark for callers (chiefly tests) that want the full detail
// without re-reading the archive.
type ModelResult struct {
	Model   string
	Metrics archive.ModelMetrics
	Steps   []archive.StepRecord
}
