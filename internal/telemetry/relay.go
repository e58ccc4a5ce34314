// ABOUTME: Batching pusher that forwards telemetry events to a remote relay
// ABOUTME: over HTTP. Best-effort: relay outages never slow the bridge.

package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	// maxBatch bounds one ingest request.
	maxBatch = 20
	// pushInterval is how often a partial batch is flushed.
	pushInterval = 2 * time.Second
	// queueLimit caps buffered events while the relay is unreachable.
	queueLimit = 1000

	userAgent = "bore-bridge/1.0"
)

// RelayPusher batches events and POSTs them to <base>/ingest with a bearer
// token. Events are dropped, oldest first, when the queue overflows.
type RelayPusher struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger

	mu    sync.Mutex
	queue []Event

	wake chan struct{}
	done chan struct{}
}

// NewRelayPusher builds a pusher; call Start to begin flushing.
func NewRelayPusher(baseURL, token string, logger *slog.Logger) *RelayPusher {
	if logger == nil {
		logger = slog.Default()
	}
	return &RelayPusher{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger.With("component", "relay"),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Push queues one event for delivery. Never blocks.
func (p *RelayPusher) Push(ev Event) {
	p.mu.Lock()
	p.queue = append(p.queue, ev)
	if len(p.queue) > queueLimit {
		p.queue = p.queue[len(p.queue)-queueLimit:]
	}
	full := len(p.queue) >= maxBatch
	p.mu.Unlock()

	if full {
		select {
		case p.wake <- struct{}{}:
		default:
		}
	}
}

// Start runs the flush loop until ctx is cancelled, then attempts one
// final flush so a clean shutdown loses nothing queued.
func (p *RelayPusher) Start(ctx context.Context) {
	go func() {
		defer close(p.done)
		ticker := time.NewTicker(pushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				p.flush(context.Background())
				return
			case <-ticker.C:
				p.flush(ctx)
			case <-p.wake:
				p.flush(ctx)
			}
		}
	}()
}

// Wait blocks until the flush loop has exited.
func (p *RelayPusher) Wait() { <-p.done }

func (p *RelayPusher) flush(ctx context.Context) {
	for {
		batch := p.takeBatch()
		if len(batch) == 0 {
			return
		}
		if err := p.post(ctx, batch); err != nil {
			// The batch is dropped; telemetry is best-effort.
			p.logger.Warn("relay push failed", "events", len(batch), "error", err)
			return
		}
	}
}

func (p *RelayPusher) takeBatch() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.queue)
	if n == 0 {
		return nil
	}
	if n > maxBatch {
		n = maxBatch
	}
	batch := make([]Event, n)
	copy(batch, p.queue[:n])
	p.queue = p.queue[n:]
	return batch
}

func (p *RelayPusher) post(ctx context.Context, batch []Event) error {
	body, err := json.Marshal(map[string]any{"events": batch})
	if err != nil {
		return fmt.Errorf("encoding batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/ingest", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("relay returned %s", resp.Status)
	}
	return nil
}
