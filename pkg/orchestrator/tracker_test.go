package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHallucinationTracker_RecordHallucinationIncrementsBoth(t *testing.T) {
	tr := newHallucinationTracker(3)
	assert.Equal(t, 1, tr.RecordHallucination())
	assert.Equal(t, 2, tr.RecordHallucination())
	assert.Equal(t, 2, tr.totalRetries)
}

func TestHallucinationTracker_RecordValidChoiceResetsConsecutiveOnly(t *testing.T) {
	tr := newHallucinationTracker(3)
	tr.RecordHallucination()
	tr.RecordHallucination()
	tr.RecordValidChoice()
	assert.Equal(t, 0, tr.consecutive)
	assert.Equal(t, 2, tr.totalRetries)
}

func TestHallucinationTracker_ExceededMax(t *testing.T) {
	tr := newHallucinationTracker(2)
	assert.False(t, tr.ExceededMax())
	tr.RecordHallucination()
	assert.False(t, tr.ExceededMax())
	tr.RecordHallucination()
	assert.True(t, tr.ExceededMax())
}
