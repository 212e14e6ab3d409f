// Package llmadapter issues chat-completion calls against an OpenAI-compatible
// endpoint, parses the reply as a structured navigation choice with a regex
// fallback, and retries transient upstream failures with exponential backoff.
package llmadapter

import "errors"

// ErrLLM is wrapped by any non-retryable (or retries-exhausted) upstream error.
var ErrLLM = errors.New("llmadapter: request failed")

// ParsingMethod discriminates how an AdapterResponse's concept_id was obtained.
type ParsingMethod string

const (
	ParsingStructured  ParsingMethod = "structured"
	ParsingRegex       ParsingMethod = "regex"
	ParsingLegacyRegex ParsingMethod = "legacy_regex"
	ParsingFailed      ParsingMethod = "failed"
	ParsingNone        ParsingMethod = "none"
)

// Message is a single chat turn.
type Message struct {
	Role    string // "system" or "user"
	Content string
}

// Usage reports token counts when the upstream API provides them.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// AdapterResponse is the tagged-union result of a chat_structured call.
// Callers must branch on ParsingMethod rather than on field presence.
type AdapterResponse struct {
	ConceptID                string // empty when ParsingMethod == ParsingFailed
	Intuition                string
	Confidence                *float64
	Model                     string
	Usage                     Usage
	StructuredParsingSuccess  bool
	ParsingMethod             ParsingMethod
	RawResponse               string
}

// WikiNavigationChoice is the structured-output schema requested from the
// model: a 1-2 sentence intuition, the chosen concept id, and a confidence.
type WikiNavigationChoice struct {
	Intuition       string  `json:"intuition" jsonschema_description:"A short 1-2 sentence intuition/justification for your choice."`
	ChosenConceptID string  `json:"chosen_concept_id" jsonschema:"pattern=^CONCEPT_\\d+$" jsonschema_description:"The CONCEPT_ID you want to click next (e.g., CONCEPT_12). Must be from the available list."`
	Confidence      float64 `json:"confidence" jsonschema:"minimum=0,maximum=1" jsonschema_description:"Your confidence level in this choice (0.0 to 1.0)."`
}
