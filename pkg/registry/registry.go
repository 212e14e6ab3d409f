// Package registry tracks in-flight and finished benchmark runs. Each
// call to Start allocates a run ID, registers it, and dispatches the
// orchestrator on a detached goroutine so the HTTP handler that started it
// can return immediately; progress is observed over the event bus or
// polled via Lookup.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codeready-toolchain/benchwiki/pkg/archive"
	"github.com/codeready-toolchain/benchwiki/pkg/events"
	"github.com/codeready-toolchain/benchwiki/pkg/orchestrator"
	"github.com/google/uuid"
)

// Status values for a registered run.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ErrRunNotFound is wrapped into the error Stop returns when runID was
// never registered.
var ErrRunNotFound = errors.New("registry: run not found")

// Orchestrator runs a benchmark to completion. Implemented by
// *orchestrator.Orchestrator; an interface here keeps the registry
// testable without real wiki/LLM/archive dependencies.
type Orchestrator interface {
	RunBenchmark(ctx context.Context, cfg orchestrator.RunConfig, runID string, stop *orchestrator.StopFlag) (archive.RunSummary, []orchestrator.ModelResult, error)
}

// Bus publishes run events and exposes the late-subscriber handshake.
type Bus interface {
	Publish(runID string, event any)
	WaitForSettle(runID string, connectTimeout, settleDelay time.Duration)
}

// runHandle is the registry's bookkeeping for one run.
type runHandle struct {
	mu      sync.RWMutex
	runID   string
	stop    *orchestrator.StopFlag
	status  string
	summary archive.RunSummary
	err     error
	done    chan struct{}
}

func (h *runHandle) snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Snapshot{
		RunID:   h.runID,
		Status:  h.status,
		Summary: h.summary,
		Err:     h.err,
	}
}

// Snapshot is a point-in-time view of a run's status.
type Snapshot struct {
	RunID   string
	Status  string
	Summary archive.RunSummary
	Err     error
}

// Registry is the run-id keyed map of all runs this process has started,
// live or finished. Entries are never removed — a finished run remains
// queryable for the life of the process; the archive store is the
// durable record across restarts.
type Registry struct {
	mu             sync.RWMutex
	runs           map[string]*runHandle
	orchestrator   Orchestrator
	bus            Bus
	connectTimeout time.Duration
	settleDelay    time.Duration
}

// New creates a Registry. connectTimeout and settleDelay parameterize the
// run-start late-subscriber handshake (see Bus.WaitForSettle).
func New(orch Orchestrator, bus Bus, connectTimeout, settleDelay time.Duration) *Registry {
	return &Registry{
		runs:           make(map[string]*runHandle),
		orchestrator:   orch,
		bus:            bus,
		connectTimeout: connectTimeout,
		settleDelay:    settleDelay,
	}
}

// Start allocates a run ID, registers it, and dispatches the orchestrator
// on a detached goroutine. It returns immediately with the new run ID.
func (r *Registry) Start(cfg orchestrator.RunConfig) string {
	runID := uuid.New().String()
	handle := &runHandle{
		runID:  runID,
		stop:   &orchestrator.StopFlag{},
		status: StatusRunning,
		done:   make(chan struct{}),
	}

	r.mu.Lock()
	r.runs[runID] = handle
	r.mu.Unlock()

	r.bus.Publish(runID, events.RunCreatedPayload{Type: events.EventRunCreated, RunID: runID})

	go r.run(handle, cfg)

	return runID
}

func (r *Registry) run(h *runHandle, cfg orchestrator.RunConfig) {
	defer close(h.done)

	r.bus.WaitForSettle(h.runID, r.connectTimeout, r.settleDelay)
	r.bus.Publish(h.runID, events.ReadyToStartPayload{Type: events.EventReadyToStart, RunID: h.runID})

	summary, _, err := r.orchestrator.RunBenchmark(context.Background(), cfg, h.runID, h.stop)

	h.mu.Lock()
	h.summary = summary
	h.err = err
	if err != nil {
		h.status = StatusFailed
	} else {
		h.status = StatusCompleted
	}
	h.mu.Unlock()

	if err != nil {
		slog.Error("run finished with error", "run_id", h.runID, "error", err)
	}
}

// Stop requests cancellation of a running run. Calling Stop twice, or
// after the run already finished, is harmless: the stop flag simply stays
// set, and each call publishes another stop_requested event. Returns an
// error only if runID is unknown.
func (r *Registry) Stop(runID string) error {
	r.mu.RLock()
	h, ok := r.runs[runID]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrRunNotFound, runID)
	}

	h.stop.Request()
	r.bus.Publish(runID, events.StopRequestedPayload{Type: events.EventStopRequested, RunID: runID, Timestamp: time.Now().UTC().Format(time.RFC3339Nano)})
	return nil
}

// Lookup returns the current snapshot of a run, or false if runID is
// unknown.
func (r *Registry) Lookup(runID string) (Snapshot, bool) {
	r.mu.RLock()
	h, ok := r.runs[runID]
	r.mu.RUnlock()
	if !ok {
		return Snapshot{}, false
	}
	return h.snapshot(), true
}
