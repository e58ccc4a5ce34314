// ABOUTME: In-memory fan-out of telemetry events to live subscribers.
// ABOUTME: Non-blocking publish; slow subscribers lose events, never stall.

package telemetry

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

type subscriber struct {
	ch      chan Event
	agentID string // empty means all agents
}

// Broadcaster is an in-memory pub/sub hub for telemetry events. Subscribers
// optionally filter by agent id and are cleaned up when their context ends.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[string]*subscriber
	logger *slog.Logger
}

// NewBroadcaster creates a hub. A nil logger means slog.Default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subs:   make(map[string]*subscriber),
		logger: logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a listener. agentID filters the stream to one agent;
// empty receives everything. The subscription ends with ctx.
func (b *Broadcaster) Subscribe(ctx context.Context, agentID string) <-chan Event {
	id := uuid.NewString()
	sub := &subscriber{ch: make(chan Event, subscriberBufferSize), agentID: agentID}

	b.mu.Lock()
	b.subs[id] = sub
	b.mu.Unlock()
	b.logger.Debug("subscriber added", "sub_id", id, "agent_filter", agentID)

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		if s, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(s.ch)
		}
		b.mu.Unlock()
		b.logger.Debug("subscriber removed", "sub_id", id)
	}()

	return sub.ch
}

// Publish fans an event out to every matching subscriber. Sends never
// block: a full subscriber channel drops the event for that subscriber.
// The lock is held through the sends so unsubscribe cannot close a
// channel mid-fanout.
func (b *Broadcaster) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if sub.agentID != "" && sub.agentID != ev.AgentID {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			b.logger.Debug("dropped event for slow subscriber", "event_id", ev.ID)
		}
	}
}

// SubscriberCount reports active subscriptions, for the health surface.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
