package llmadapter

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/openai/openai-go"
)

var retryableSubstrings = []string{
	"timeout", "rate limit", "429", "500", "502", "503", "504",
	"connection error", "disconnected", "overloaded",
}

// isRetryable classifies an upstream error as transient or not, grounded on
// basegraph's common/llm/client.go IsRetryable: context cancellation is
// never retryable; an *openai.Error is retryable on 429/5xx; anything else
// is classified by substring match against known-transient error text,
// defaulting to retryable when the text doesn't match any known pattern
// (network errors with no API response are treated as retryable).
func isRetryable(ctx context.Context, err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}

	lower := strings.ToLower(err.Error())
	for _, s := range retryableSubstrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return true
}

// backoffDelay computes the retry delay for the given 1-based attempt
// number: initialDelay * 2^(attempt-1) + uniform(0, 0.1s) jitter.
func backoffDelay(initialDelay time.Duration, attempt int) time.Duration {
	backoff := initialDelay * time.Duration(1<<uint(attempt-1))
	jitter := time.Duration(rand.Float64() * float64(100*time.Millisecond))
	return backoff + jitter
}
