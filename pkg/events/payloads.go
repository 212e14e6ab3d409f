package events

// RunCreatedPayload is published immediately when a run is registered.
type RunCreatedPayload struct {
	Type  string `json:"type"` // always EventRunCreated
	RunID string `json:"run_id"`
}

// ReadyToStartPayload signals the handshake settle delay has elapsed.
type ReadyToStartPayload struct {
	Type  string `json:"type"` // always EventReadyToStart
	RunID string `json:"run_id"`
}

// RunStartPayload is published once per run, before any model begins.
type RunStartPayload struct {
	Type       string   `json:"type"` // always EventRunStart
	RunID      string   `json:"run_id"`
	StartPage  string   `json:"start_page"`
	TargetPage string   `json:"target_page"`
	Models     []string `json:"models"`
	Timestamp  string   `json:"timestamp"` // RFC3339Nano
}

// ModelStartPayload is published once per model, at the beginning of its
// navigation attempt.
type ModelStartPayload struct {
	Type      string `json:"type"` // always EventModelStart
	RunID     string `json:"run_id"`
	PairIndex int    `json:"pair_index"`
	Model     string `json:"model"`
	StartPage string `json:"start_page"`
	Timestamp string `json:"timestamp"`
}

// StepPayload is published after each completed step of a model's
// navigation, whether or not the step produced a usable choice.
type StepPayload struct {
	Type            string   `json:"type"` // always EventStep
	RunID           string   `json:"run_id"`
	PairIndex       int      `json:"pair_index"`
	Model           string   `json:"model"`
	StepIndex       int      `json:"step_index"`
	PageTitle       string   `json:"page_title"`
	NextPageTitle   string   `json:"next_page_title,omitempty"`
	IsRetry         bool     `json:"is_retry"`
	IsHallucination bool     `json:"is_hallucination"`
	Is404           bool     `json:"is_404"`
	ParsingMethod   string   `json:"parsing_method"`
	Confidence      *float64 `json:"confidence,omitempty"`
	Timestamp       string   `json:"timestamp"`
}

// HallucinationPayload is published when a model names a concept ID that
// does not appear in the current page's link mapping.
type HallucinationPayload struct {
	Type             string `json:"type"` // always EventHallucination
	RunID            string `json:"run_id"`
	PairIndex        int    `json:"pair_index"`
	Model            string `json:"model"`
	StepIndex        int    `json:"step_index"`
	ConsecutiveCount int    `json:"consecutive_count"`
	Timestamp        string `json:"timestamp"`
}

// ModelStoppedPayload is published when a stop request ends a model's
// navigation before it succeeded or failed.
type ModelStoppedPayload struct {
	Type      string `json:"type"` // always EventModelStopped
	RunID     string `json:"run_id"`
	PairIndex int    `json:"pair_index"`
	Model     string `json:"model"`
	Reason    string `json:"reason"`
	Timestamp string `json:"timestamp"`
}

// ModelCompletePayload is published when a model reaches a terminal state
// (success, failure, or stopped) for its pair.
type ModelCompletePayload struct {
	Type      string `json:"type"` // always EventModelComplete
	RunID     string `json:"run_id"`
	PairIndex int    `json:"pair_index"`
	Model     string `json:"model"`
	Status    string `json:"status"` // success, failed, stopped
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

// ModelFinalPayload carries a model's final metrics summary once persisted.
type ModelFinalPayload struct {
	Type      string   `json:"type"` // always EventModelFinal
	RunID     string   `json:"run_id"`
	PairIndex int      `json:"pair_index"`
	Model     string   `json:"model"`
	Path      []string `json:"path"`
	Timestamp string   `json:"timestamp"`
}

// RunStoppedPayload is published when the entire run is stopped by request
// before every model reached a terminal state.
type RunStoppedPayload struct {
	Type      string `json:"type"` // always EventRunStopped
	RunID     string `json:"run_id"`
	Timestamp string `json:"timestamp"`
}

// RunCompletedPayload is published once every model in the run has reached
// a terminal state.
type RunCompletedPayload struct {
	Type           string `json:"type"` // always EventRunCompleted
	RunID          string `json:"run_id"`
	SucceededCount int    `json:"succeeded_count"`
	FailedCount    int    `json:"failed_count"`
	StoppedCount   int    `json:"stopped_count"`
	Timestamp      string `json:"timestamp"`
}

// StopRequestedPayload echoes a client-initiated stop request back onto the
// topic so every connected viewer sees the stop take effect.
type StopRequestedPayload struct {
	Type      string `json:"type"` // always EventStopRequested
	RunID     string `json:"run_id"`
	Timestamp string `json:"timestamp"`
}

// ErrorPayload is published for a fatal, run-level error (as opposed to a
// single model's failure).
type ErrorPayload struct {
	Type      string `json:"type"` // always EventError
	RunID     string `json:"run_id"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}
