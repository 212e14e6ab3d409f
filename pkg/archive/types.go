// Package archive persists benchmark run artifacts to a directory-per-run
// file layout. Writes are idempotent (same key overwrites), and once a
// step/metrics file is written it is never mutated — later progress is
// always a new file, never an edit.
package archive

// StepRecord is one persisted step of a model's navigation.
type StepRecord struct {
	StepIndex               int               `json:"step_index"`
	PageTitle                string            `json:"page_title"`
	Prompt                   string            `json:"prompt"`
	RawResponse              string            `json:"raw_response"`
	NextConceptID            string            `json:"next_concept_id,omitempty"`
	NextPageTitle            string            `json:"next_page_title,omitempty"`
	Mapping                  map[string]string `json:"mapping"`
	LLMDuration              float64           `json:"llm_duration"`
	Timestamp                string            `json:"timestamp"`
	IsRetry                  bool              `json:"is_retry"`
	RetryNumber              int               `json:"retry_number,omitempty"`
	IsHallucination          bool              `json:"is_hallucination"`
	IsFinalTarget            bool              `json:"is_final_target"`
	Is404                    bool              `json:"is_404"`
	ParsingMethod            string            `json:"parsing_method"`
	StructuredParsingSuccess bool              `json:"structured_parsing_success"`
	Confidence               *float64          `json:"confidence,omitempty"`
	Intuition                string            `json:"intuition,omitempty"`
}

// ModelMetrics summarizes one model's run against a single pair.
type ModelMetrics struct {
	Status                     string   `json:"status"` // success, failed, stopped
	Reason                     string   `json:"reason"`
	Model                      string   `json:"model"`
	TotalSteps                 int      `json:"total_steps"`
	TotalWallTime              float64  `json:"total_wall_time"`
	MeanLLMLatency             float64  `json:"mean_llm_latency"`
	HallucinationCount         int      `json:"hallucination_count"`
	HallucinationRate          float64  `json:"hallucination_rate"`
	TotalRetries               int      `json:"total_retries"`
	StructuredParsingSuccess   int      `json:"structured_parsing_success_count"`
	StructuredParsingRate      float64  `json:"structured_parsing_success_rate"`
	Path                       []string `json:"path"`
}

// RunSummary is the overall result of a run across all models.
type RunSummary struct {
	RunID          string `json:"run_id"`
	Models         []string `json:"models"`
	SucceededCount int    `json:"succeeded_count"`
	FailedCount    int    `json:"failed_count"`
	StoppedCount   int    `json:"stopped_count"`
	Status         string `json:"status"`
	FatalError     string `json:"fatal_error,omitempty"`
}

// ArchiveSummary describes one archived run in a listing.
type ArchiveSummary struct {
	RunID     string         `json:"run_id"`
	Config    map[string]any `json:"config"`
	Timestamp string         `json:"timestamp"`
}

// ArchiveDetails is the full detail view of one run's archive.
type ArchiveDetails struct {
	Config  map[string]any            `json:"config,omitempty"`
	Summary map[string]any            `json:"summary,omitempty"`
	Pairs   map[int]PairDetails       `json:"pairs,omitempty"`
	Models  map[string]ModelDetails   `json:"models,omitempty"`
	Metrics map[string]any            `json:"metrics,omitempty"`
	Steps   []map[string]any          `json:"steps,omitempty"`
}

// PairDetails groups all models' data under one (start, target) pair.
type PairDetails struct {
	Models map[string]ModelDetails `json:"models"`
}

// ModelDetails is one model's metrics and ordered step records.
type ModelDetails struct {
	Metrics map[string]any   `json:"metrics,omitempty"`
	Steps   []map[string]any `json:"steps"`
}
