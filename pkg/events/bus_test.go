package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestBus(t *testing.T, bus *Bus, runID string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		bus.HandleConnection(r.Context(), runID, conn)
	}))
	t.Cleanup(server.Close)
	return server
}

func dialTestBus(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + server.URL[len("http"):]
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestBus_LiveBroadcast(t *testing.T) {
	bus := NewBus()
	server := setupTestBus(t, bus, "run-1")
	conn := dialTestBus(t, server)

	require.Eventually(t, func() bool {
		return bus.SubscriberCount("run-1") == 1
	}, 2*time.Second, 10*time.Millisecond)

	bus.Publish("run-1", RunStartPayload{Type: EventRunStart, RunID: "run-1", StartPage: "A"})

	msg := readEvent(t, conn)
	assert.Equal(t, EventRunStart, msg["type"])
	assert.Equal(t, "A", msg["start_page"])
}

func TestBus_LateSubscriberCatchesUpViaRingBuffer(t *testing.T) {
	bus := NewBus()
	bus.Publish("run-2", RunCreatedPayload{Type: EventRunCreated, RunID: "run-2"})
	bus.Publish("run-2", RunStartPayload{Type: EventRunStart, RunID: "run-2", StartPage: "A"})

	server := setupTestBus(t, bus, "run-2")
	conn := dialTestBus(t, server)

	first := readEvent(t, conn)
	assert.Equal(t, EventRunCreated, first["type"])
	second := readEvent(t, conn)
	assert.Equal(t, EventRunStart, second["type"])
}

func TestBus_RingBufferIsBounded(t *testing.T) {
	bus := NewBus()
	for i := 0; i < ringBufferSize+10; i++ {
		bus.Publish("run-3", StepPayload{Type: EventStep, RunID: "run-3", StepIndex: i})
	}

	t2 := bus.getOrCreateTopic("run-3")
	t2.mu.RLock()
	size := len(t2.buffer)
	t2.mu.RUnlock()
	assert.Equal(t, ringBufferSize, size)
}

func TestBus_PublishToUnknownTopicDoesNotPanic(t *testing.T) {
	bus := NewBus()
	assert.NotPanics(t, func() {
		bus.Publish("no-subscribers", ErrorPayload{Type: EventError, RunID: "no-subscribers", Message: "boom"})
	})
}

func TestBus_WaitForSettle_ReturnsWhenSubscriberArrives(t *testing.T) {
	bus := NewBus()
	server := setupTestBus(t, bus, "run-4")

	done := make(chan struct{})
	go func() {
		bus.WaitForSettle("run-4", 2*time.Second, 10*time.Millisecond)
		close(done)
	}()

	dialTestBus(t, server)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForSettle did not return after subscriber connected")
	}
}

func TestBus_WaitForSettle_TimesOutWithoutSubscriber(t *testing.T) {
	bus := NewBus()
	start := time.Now()
	bus.WaitForSettle("run-5", 50*time.Millisecond, 10*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestBus_DisconnectRemovesSubscriber(t *testing.T) {
	bus := NewBus()
	server := setupTestBus(t, bus, "run-6")
	conn := dialTestBus(t, server)

	require.Eventually(t, func() bool {
		return bus.SubscriberCount("run-6") == 1
	}, 2*time.Second, 10*time.Millisecond)

	conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool {
		return bus.SubscriberCount("run-6") == 0
	}, 2*time.Second, 10*time.Millisecond)
}
