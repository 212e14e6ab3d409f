package llmadapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable_ContextErrorsNeverRetryable(t *testing.T) {
	assert.False(t, isRetryable(context.Background(), context.Canceled))
	assert.False(t, isRetryable(context.Background(), context.DeadlineExceeded))
}

func TestIsRetryable_KnownTransientSubstrings(t *testing.T) {
	assert.True(t, isRetryable(context.Background(), errors.New("upstream overloaded")))
	assert.True(t, isRetryable(context.Background(), errors.New("connection error: reset")))
}

func TestBackoffDelay_Exponential(t *testing.T) {
	d1 := backoffDelay(time.Second, 1)
	d2 := backoffDelay(time.Second, 2)
	assert.GreaterOrEqual(t, d1, time.Second)
	assert.Less(t, d1, time.Second+100*time.Millisecond)
	assert.GreaterOrEqual(t, d2, 2*time.Second)
	assert.Less(t, d2, 2*time.Second+100*time.Millisecond)
}

func TestBuildAugmentedMessages_AppendsConceptsAndInstructions(t *testing.T) {
	messages := []Message{
		{Role: "system", Content: "rules"},
		{Role: "user", Content: "Current Page: Foo"},
	}
	augmented := buildAugmentedMessages(messages, concepts)

	assert.Equal(t, "rules", augmented[0].Content)
	assert.Contains(t, augmented[1].Content, "Current Page: Foo")
	assert.Contains(t, augmented[1].Content, "CONCEPT_00: Foo")
	assert.Contains(t, augmented[1].Content, "CONCEPT_01: Bar")
}
