// ABOUTME: Nil-safe telemetry facade the rest of the bridge emits through.
// ABOUTME: Fans events to live subscribers and, optionally, a remote relay.

package telemetry

import (
	"github.com/borelabs/bore-bridge/internal/response"
)

// Telemetry is the emission surface handed to workers and the router.
// A nil *Telemetry is valid and drops everything, so callers never need
// to guard their emit sites.
type Telemetry struct {
	broadcaster *Broadcaster
	relay       *RelayPusher
}

// New wires a facade over a broadcaster and an optional relay pusher.
func New(broadcaster *Broadcaster, relay *RelayPusher) *Telemetry {
	return &Telemetry{broadcaster: broadcaster, relay: relay}
}

// Broadcaster exposes the hub for the SSE surface.
func (t *Telemetry) Broadcaster() *Broadcaster {
	if t == nil {
		return nil
	}
	return t.broadcaster
}

func (t *Telemetry) publish(ev Event) {
	if t == nil {
		return
	}
	if t.broadcaster != nil {
		t.broadcaster.Publish(ev)
	}
	if t.relay != nil {
		t.relay.Push(ev)
	}
}

// EmitChat records one chat line. The body is also parsed into its section
// structure so web consumers get the same breakdown the game renders.
func (t *Telemetry) EmitChat(agentID, author, body string) {
	ev := newEvent(KindChat, agentID)
	ev.Author = author
	ev.Body = body
	ev.Structured = response.Parse(body)
	t.publish(ev)
}

// EmitToolCall records an agent starting a tool.
func (t *Telemetry) EmitToolCall(agentID, tool string) {
	ev := newEvent(KindToolCall, agentID)
	ev.Tool = tool
	t.publish(ev)
}

// EmitError records a degraded turn or delivery failure.
func (t *Telemetry) EmitError(agentID, msg string) {
	ev := newEvent(KindError, agentID)
	ev.Body = msg
	t.publish(ev)
}

// EmitStatus records a worker state transition.
func (t *Telemetry) EmitStatus(agentID, state string) {
	ev := newEvent(KindStatus, agentID)
	ev.Body = state
	t.publish(ev)
}
