// ABOUTME: Telemetry event model: everything the bridge observes, timestamped
// ABOUTME: and tagged with the agent it concerns.

package telemetry

import (
	"time"

	"github.com/google/uuid"

	"github.com/borelabs/bore-bridge/internal/response"
)

// Kind classifies a telemetry event.
type Kind string

const (
	KindChat     Kind = "chat"
	KindToolCall Kind = "tool_call"
	KindError    Kind = "error"
	KindStatus   Kind = "status"
)

// Event is one observed moment of bridge activity. Chat events carry the
// structured view of the body so web consumers render the same sections
// the game shows as rich text.
type Event struct {
	ID         string               `json:"id"`
	Kind       Kind                 `json:"kind"`
	AgentID    string               `json:"agent_id"`
	Author     string               `json:"author,omitempty"`
	Body       string               `json:"body,omitempty"`
	Tool       string               `json:"tool,omitempty"`
	Structured *response.Structured `json:"structured,omitempty"`
	At         time.Time            `json:"at"`
}

func newEvent(kind Kind, agentID string) Event {
	return Event{
		ID:      uuid.NewString(),
		Kind:    kind,
		AgentID: agentID,
		At:      time.Now().UTC(),
	}
}
