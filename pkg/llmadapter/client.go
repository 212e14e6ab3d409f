package llmadapter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Config configures a Client.
type Config struct {
	APIKey  string
	BaseURL string
}

// Client issues structured chat-completion requests against an
// OpenAI-compatible endpoint.
type Client struct {
	openai openai.Client
	schema any
}

// New creates a Client, validating that an API key was provided.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llmadapter: API key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	reflector := jsonschema.Reflector{AllowAdditionalProperties: false, DoNotReference: true}
	schema := reflector.Reflect(&WikiNavigationChoice{})

	return &Client{
		openai: openai.NewClient(opts...),
		schema: schema,
	}, nil
}

// ChatStructured sends messages (with the last user message augmented per
// spec.md §4.2) to model, retrying transient failures up to maxRetries times
// with exponential backoff and jitter starting at initialDelay. On success
// it returns a tagged AdapterResponse discriminated by ParsingMethod.
//
// Retry applies only to API-level failures. Parsing failures never retry at
// this layer — they produce a ParsingFailed sentinel and let the caller
// (the orchestrator) decide how to proceed.
func (c *Client) ChatStructured(
	ctx context.Context,
	model string,
	messages []Message,
	availableConcepts map[string]string,
	useStructuredOutput bool,
	maxRetries int,
	initialDelay time.Duration,
) (*AdapterResponse, error) {
	augmented := buildAugmentedMessages(messages, availableConcepts)

	var rawContent string
	var usage Usage
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(initialDelay, attempt)
			slog.Warn("retrying LLM call", "model", model, "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		content, u, err := c.call(ctx, model, augmented, useStructuredOutput)
		if err == nil {
			rawContent = content
			usage = u
			lastErr = nil
			break
		}

		lastErr = err
		if attempt < maxRetries && isRetryable(ctx, err) {
			continue
		}
		break
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrLLM, lastErr)
	}

	return parseResponse(rawContent, model, usage, availableConcepts), nil
}

func (c *Client) call(ctx context.Context, model string, messages []Message, structured bool) (string, Usage, error) {
	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: convertMessages(messages),
	}

	if structured {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        "wiki_navigation_choice",
					Description: openai.String("Structured response schema"),
					Schema:      c.schema,
					Strict:      openai.Bool(true),
				},
			},
		}
	}

	resp, err := c.openai.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", Usage{}, err
	}
	if len(resp.Choices) == 0 {
		return "", Usage{}, fmt.Errorf("empty choices in response")
	}

	usage := Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	return resp.Choices[0].Message.Content, usage, nil
}

func convertMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// parseResponse runs the structured-then-regex parsing policy over a raw
// completion and builds the tagged-union AdapterResponse.
func parseResponse(raw, model string, usage Usage, availableConcepts map[string]string) *AdapterResponse {
	if choice, ok := parseStructured(raw, availableConcepts); ok {
		confidence := choice.Confidence
		return &AdapterResponse{
			ConceptID:                choice.ChosenConceptID,
			Intuition:                choice.Intuition,
			Confidence:               &confidence,
			Model:                    model,
			Usage:                    usage,
			StructuredParsingSuccess: true,
			ParsingMethod:            ParsingStructured,
			RawResponse:              raw,
		}
	}

	conceptID, intuition, confidence := parseRegex(raw, availableConcepts)
	if conceptID != "" {
		return &AdapterResponse{
			ConceptID:     conceptID,
			Intuition:     intuition,
			Confidence:    confidence,
			Model:         model,
			Usage:         usage,
			ParsingMethod: ParsingRegex,
			RawResponse:   raw,
		}
	}

	return &AdapterResponse{
		Model:         model,
		Usage:         usage,
		ParsingMethod: ParsingFailed,
		RawResponse:   raw,
	}
}

// ListModels fetches the list of models available from the configured
// upstream provider.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	page, err := c.openai.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("llmadapter: list models: %w", err)
	}
	ids := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}
