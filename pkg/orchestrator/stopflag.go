package orchestrator

import "sync/atomic"

// StopFlag is a cooperative cancellation signal checked at loop
// boundaries. It never interrupts an in-flight LLM call or page fetch —
// it only stops the orchestrator from starting the next model or the next
// step once the current one completes.
type StopFlag struct {
	stopped atomic.Bool
}

// Request marks the flag as tripped. Safe to call from any goroutine,
// any number of times.
func (f *StopFlag) Request() {
	f.stopped.Store(true)
}

// Requested reports whether Request has been called.
func (f *StopFlag) Requested() bool {
	return f.stopped.Load()
}
