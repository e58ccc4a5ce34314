// ABOUTME: Tests for the telemetry hub: fan-out, filtering, nil-safety,
// ABOUTME: SSE streaming, health payloads, and relay batching.

package telemetry

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

// ============================================================================
// Broadcaster
// ============================================================================

func TestBroadcasterFanOut(t *testing.T) {
	b := NewBroadcaster(discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch1 := b.Subscribe(ctx, "")
	ch2 := b.Subscribe(ctx, "")

	b.Publish(Event{ID: "e1", Kind: KindChat, AgentID: "bore-01"})

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			assert.Equal(t, "e1", ev.ID)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestBroadcasterAgentFilter(t *testing.T) {
	b := NewBroadcaster(discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	filtered := b.Subscribe(ctx, "scout-02")
	b.Publish(Event{ID: "other", AgentID: "bore-01"})
	b.Publish(Event{ID: "mine", AgentID: "scout-02"})

	select {
	case ev := <-filtered:
		assert.Equal(t, "mine", ev.ID)
	case <-time.After(time.Second):
		t.Fatal("filtered subscriber did not receive its event")
	}
	select {
	case ev := <-filtered:
		t.Fatalf("unexpected extra event %s", ev.ID)
	default:
	}
}

func TestBroadcasterSlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroadcaster(discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Subscribe(ctx, "") // never drained

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBufferSize*2; i++ {
			b.Publish(Event{ID: "x"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestBroadcasterUnsubscribeOnContextEnd(t *testing.T) {
	b := NewBroadcaster(discard())
	ctx, cancel := context.WithCancel(context.Background())
	ch := b.Subscribe(ctx, "")
	cancel()

	require.Eventually(t, func() bool {
		return b.SubscriberCount() == 0
	}, time.Second, 5*time.Millisecond)

	_, open := <-ch
	assert.False(t, open, "channel closes on unsubscribe")
}

// ============================================================================
// Facade
// ============================================================================

func TestNilTelemetryIsSafe(t *testing.T) {
	var tel *Telemetry
	tel.EmitChat("a", "b", "c")
	tel.EmitToolCall("a", "tool")
	tel.EmitError("a", "boom")
	tel.EmitStatus("a", "idle")
	assert.Nil(t, tel.Broadcaster())
}

func TestEmitChatCarriesStructuredView(t *testing.T) {
	b := NewBroadcaster(discard())
	tel := New(b, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := b.Subscribe(ctx, "")

	tel.EmitChat("bore-01", "BORE-01", "[color=0,1,0]STATUS:[/color] ok")

	select {
	case ev := <-ch:
		require.NotNil(t, ev.Structured)
		require.NotNil(t, ev.Structured.Header)
		assert.Equal(t, "STATUS", ev.Structured.Header.Label)
	case <-time.After(time.Second):
		t.Fatal("no chat event")
	}
}

// ============================================================================
// HTTP surface
// ============================================================================

func TestHealthEndpoint(t *testing.T) {
	b := NewBroadcaster(discard())
	srv := NewServer(b, func() map[string]any {
		return map[string]any{"agents": 3}
	}, discard())

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, "ok", payload["status"])
	assert.EqualValues(t, 3, payload["agents"])
}

func TestEventsStream(t *testing.T) {
	b := NewBroadcaster(discard())
	srv := NewServer(b, nil, discard())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// Wait for the subscription before publishing.
	require.Eventually(t, func() bool {
		return b.SubscriberCount() == 1
	}, time.Second, 5*time.Millisecond)
	b.Publish(Event{ID: "live-1", Kind: KindStatus, AgentID: "bore-01"})

	reader := bufio.NewReader(resp.Body)
	deadline := time.After(2 * time.Second)
	lines := make(chan string, 1)
	go func() {
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			if strings.HasPrefix(line, "data: ") {
				lines <- line
				return
			}
		}
	}()

	select {
	case line := <-lines:
		var ev Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &ev))
		assert.Equal(t, "live-1", ev.ID)
	case <-deadline:
		t.Fatal("no SSE event received")
	}
}

// ============================================================================
// Relay pusher
// ============================================================================

func TestRelayPusherBatchesAndAuthenticates(t *testing.T) {
	var mu sync.Mutex
	var batches [][]Event
	var auths []string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ingest", r.URL.Path)
		var payload struct {
			Events []Event `json:"events"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		mu.Lock()
		batches = append(batches, payload.Events)
		auths = append(auths, r.Header.Get("Authorization"))
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer ts.Close()

	p := NewRelayPusher(ts.URL, "sekrit", discard())
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)

	for i := 0; i < maxBatch+5; i++ {
		p.Push(Event{ID: "batch", Kind: KindChat})
	}
	cancel()
	p.Wait()

	mu.Lock()
	defer mu.Unlock()
	total := 0
	for _, b := range batches {
		assert.LessOrEqual(t, len(b), maxBatch)
		total += len(b)
	}
	assert.Equal(t, maxBatch+5, total)
	for _, a := range auths {
		assert.Equal(t, "Bearer sekrit", a)
	}
}

func TestRelayPusherSurvivesOutage(t *testing.T) {
	p := NewRelayPusher("http://127.0.0.1:1", "", discard())
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)

	p.Push(Event{ID: "lost"})
	cancel()
	p.Wait() // must not hang or panic
}

func TestRelayPusherQueueBounded(t *testing.T) {
	p := NewRelayPusher("http://127.0.0.1:1", "", discard())
	for i := 0; i < queueLimit*2; i++ {
		p.Push(Event{ID: "q"})
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	assert.LessOrEqual(t, len(p.queue), queueLimit)
}
