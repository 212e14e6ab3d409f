package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// ringBufferSize bounds how many past events a topic retains for
// subscribers that connect after publishing has started. A client that
// connects after the run has produced more than this many events only
// gets the most recent ringBufferSize of them — the REST archive endpoints
// remain the source of truth for anything older.
const ringBufferSize = 500

// writeTimeout bounds how long a single WebSocket send may block. A slow
// or stalled client must not stall the publisher that is broadcasting to
// every subscriber of a topic.
const writeTimeout = 5 * time.Second

// Bus is an in-process publish/subscribe hub keyed by run ID. It has no
// external broker: every topic and its ring buffer live in this process's
// memory, matching the archive store's single-process, file-based model.
type Bus struct {
	mu     sync.RWMutex
	topics map[string]*topic
}

type topic struct {
	mu          sync.RWMutex
	buffer      []json.RawMessage
	subscribers map[string]*subscriber
}

type subscriber struct {
	id   string
	conn *websocket.Conn
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{topics: make(map[string]*topic)}
}

func (b *Bus) getOrCreateTopic(runID string) *topic {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.topics[runID]
	if !ok {
		t = &topic{subscribers: make(map[string]*subscriber)}
		b.topics[runID] = t
	}
	return t
}

// Publish marshals event and appends it to the run's ring buffer, then
// fans it out to every currently connected subscriber. Marshal failures
// are a programmer error (all payload types in this package are plain
// JSON-safe structs) and are logged rather than propagated, since a
// publish call sits on the orchestrator's hot path. Publish returns once
// every send has finished or failed, so a slow client delays it by at
// most writeTimeout.
func (b *Bus) Publish(runID string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("marshal event", "run_id", runID, "error", err)
		return
	}

	t := b.getOrCreateTopic(runID)

	t.mu.Lock()
	t.buffer = append(t.buffer, data)
	if len(t.buffer) > ringBufferSize {
		t.buffer = t.buffer[len(t.buffer)-ringBufferSize:]
	}
	// Snapshot subscriber pointers under the lock, then release before
	// sending — broadcasting must not hold the topic lock for the
	// duration of potentially slow per-connection writes.
	subs := make([]*subscriber, 0, len(t.subscribers))
	for _, s := range t.subscribers {
		subs = append(subs, s)
	}
	t.mu.Unlock()

	// Deliver to all subscribers concurrently, and wait for every send so
	// that each subscriber still receives events in publish order.
	var wg sync.WaitGroup
	for _, s := range subs {
		wg.Add(1)
		go func(s *subscriber) {
			defer wg.Done()
			if err := b.send(s, data); err != nil {
				slog.Warn("drop subscriber after failed send", "run_id", runID, "subscriber_id", s.id, "error", err)
				t.removeSubscriber(s.id)
			}
		}(s)
	}
	wg.Wait()
}

func (t *topic) removeSubscriber(id string) {
	t.mu.Lock()
	delete(t.subscribers, id)
	t.mu.Unlock()
}

func (b *Bus) send(s *subscriber, data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return s.conn.Write(ctx, websocket.MessageText, data)
}

// SubscriberCount returns the number of live subscribers on a run's topic.
// Used by the handshake settle-delay wait and by tests.
func (b *Bus) SubscriberCount(runID string) int {
	b.mu.RLock()
	t, ok := b.topics[runID]
	b.mu.RUnlock()
	if !ok {
		return 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subscribers)
}

// WaitForSettle implements the run-start late-subscriber handshake: it
// polls for up to connectTimeout for a subscriber to appear on runID's
// topic. If one appears before the deadline, it waits an additional
// settleDelay to let that subscriber finish preparing before returning. If
// connectTimeout elapses with no subscriber, it returns immediately so the
// run proceeds anyway — the ring buffer still covers any client that
// connects moments later.
func (b *Bus) WaitForSettle(runID string, connectTimeout, settleDelay time.Duration) {
	deadline := time.After(connectTimeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-deadline:
			return
		case <-ticker.C:
			if b.SubscriberCount(runID) > 0 {
				time.Sleep(settleDelay)
				return
			}
		}
	}
}

// HandleConnection serves one WebSocket client subscribed to a single
// run's topic. It first replays the topic's ring buffer (so a client that
// connects mid-run sees everything published so far), then streams live
// events until the connection closes or ctx is cancelled. It blocks until
// the connection ends.
func (b *Bus) HandleConnection(ctx context.Context, runID string, conn *websocket.Conn) {
	t := b.getOrCreateTopic(runID)

	id := uuid.New().String()
	s := &subscriber{id: id, conn: conn}

	t.mu.Lock()
	backlog := make([]json.RawMessage, len(t.buffer))
	copy(backlog, t.buffer)
	t.subscribers[id] = s
	t.mu.Unlock()

	defer t.removeSubscriber(id)

	for _, data := range backlog {
		if err := b.send(s, data); err != nil {
			return
		}
	}

	// The read loop has no application-level protocol beyond keeping the
	// connection alive and noticing when the client disconnects; the
	// client never needs to send anything for events to flow.
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}
