package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/codeready-toolchain/benchwiki/pkg/archive"
	"github.com/codeready-toolchain/benchwiki/pkg/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrchestrator struct {
	mu       sync.Mutex
	calls    int
	delay    time.Duration
	stopSeen bool
	summary  archive.RunSummary
	err      error
}

func (f *fakeOrchestrator) RunBenchmark(_ context.Context, _ orchestrator.RunConfig, _ string, stop *orchestrator.StopFlag) (archive.RunSummary, []orchestrator.ModelResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if stop.Requested() {
		f.mu.Lock()
		f.stopSeen = true
		f.mu.Unlock()
	}
	return f.summary, nil, f.err
}

type fakeBus struct {
	mu     sync.Mutex
	events []struct {
		runID string
		event any
	}
}

func (f *fakeBus) Publish(runID string, event any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, struct {
		runID string
		event any
	}{runID, event})
}

func (f *fakeBus) WaitForSettle(string, time.Duration, time.Duration) {}

func (f *fakeBus) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func TestRegistry_StartRegistersAndRuns(t *testing.T) {
	orch := &fakeOrchestrator{summary: archive.RunSummary{RunID: "ignored", SucceededCount: 1}}
	bus := &fakeBus{}
	reg := New(orch, bus, 0, 0)

	runID := reg.Start(orchestrator.RunConfig{Models: []string{"model-a"}})
	require.NotEmpty(t, runID)

	require.Eventually(t, func() bool {
		snap, ok := reg.Lookup(runID)
		return ok && snap.Status != StatusRunning
	}, time.Second, time.Millisecond)

	snap, ok := reg.Lookup(runID)
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, 1, snap.Summary.SucceededCount)
	assert.Equal(t, 1, orch.calls)
	assert.GreaterOrEqual(t, bus.count(), 1)
}

func TestRegistry_StartFailureMarksFailed(t *testing.T) {
	orch := &fakeOrchestrator{err: assert.AnError}
	bus := &fakeBus{}
	reg := New(orch, bus, 0, 0)

	runID := reg.Start(orchestrator.RunConfig{})

	require.Eventually(t, func() bool {
		snap, ok := reg.Lookup(runID)
		return ok && snap.Status != StatusRunning
	}, time.Second, time.Millisecond)

	snap, _ := reg.Lookup(runID)
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Error(t, snap.Err)
}

func TestRegistry_LookupUnknownRun(t *testing.T) {
	reg := New(&fakeOrchestrator{}, &fakeBus{}, 0, 0)
	_, ok := reg.Lookup("does-not-exist")
	assert.False(t, ok)
}

func TestRegistry_StopUnknownRunErrors(t *testing.T) {
	reg := New(&fakeOrchestrator{}, &fakeBus{}, 0, 0)
	err := reg.Stop("does-not-exist")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestRegistry_StopIsIdempotentAndPropagatesToOrchestrator(t *testing.T) {
	orch := &fakeOrchestrator{delay: 50 * time.Millisecond}
	bus := &fakeBus{}
	reg := New(orch, bus, 0, 0)

	runID := reg.Start(orchestrator.RunConfig{})

	require.NoError(t, reg.Stop(runID))
	require.NoError(t, reg.Stop(runID))

	require.Eventually(t, func() bool {
		snap, ok := reg.Lookup(runID)
		return ok && snap.Status != StatusRunning
	}, time.Second, time.Millisecond)

	orch.mu.Lock()
	defer orch.mu.Unlock()
	assert.True(t, orch.stopSeen)
}

func TestRegistry_ConcurrentStartsGetDistinctRunIDs(t *testing.T) {
	orch := &fakeOrchestrator{}
	bus := &fakeBus{}
	reg := New(orch, bus, 0, 0)

	var wg sync.WaitGroup
	ids := make([]string, 20)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = reg.Start(orchestrator.RunConfig{})
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, id := range ids {
		require.NotEmpty(t, id)
		assert.False(t, seen[id])
		seen[id] = true
	}
}
