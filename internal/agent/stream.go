// ABOUTME: Typed view over the reasoning CLI's stream-json output lines.
// ABOUTME: Each stdout line decodes to zero or more StreamEvent values.

package agent

import (
	"encoding/json"
	"fmt"
)

// StreamEvent is one event from the reasoning process's output stream.
// The set of implementations is closed; consumers switch on the concrete
// type and ignore Unknown.
type StreamEvent interface {
	streamEvent()
}

// AssistantText is a visible text block produced by the model.
type AssistantText struct {
	Text string
}

// AssistantToolUse records the model starting a tool call.
type AssistantToolUse struct {
	Name  string
	Input json.RawMessage
}

// ToolResult is the outcome of a tool call, echoed back on the stream.
type ToolResult struct {
	Content json.RawMessage
}

// Result is the terminal event of an invocation. SessionID is the
// continuation token for the next turn of the same conversation.
type Result struct {
	Text       string
	SessionID  string
	CostUSD    float64
	DurationMS int64
	NumTurns   int
	IsError    bool
}

// Unknown is any event type this version does not understand.
type Unknown struct {
	Type string
}

func (AssistantText) streamEvent()    {}
func (AssistantToolUse) streamEvent() {}
func (ToolResult) streamEvent()       {}
func (Result) streamEvent()           {}
func (Unknown) streamEvent()          {}

type streamLine struct {
	Type    string `json:"type"`
	Message struct {
		Content []struct {
			Type  string          `json:"type"`
			Text  string          `json:"text"`
			Name  string          `json:"name"`
			Input json.RawMessage `json:"input"`
		} `json:"content"`
	} `json:"message"`
	Content      json.RawMessage `json:"content"`
	Result       string          `json:"result"`
	SessionID    string          `json:"session_id"`
	TotalCostUSD float64         `json:"total_cost_usd"`
	DurationMS   int64           `json:"duration_ms"`
	NumTurns     int             `json:"num_turns"`
	IsError      bool            `json:"is_error"`
}

// ParseStreamLine decodes one stdout line. An assistant message expands to
// one event per content block. Malformed JSON is an error; an unrecognized
// but well-formed line is Unknown, never an error.
func ParseStreamLine(line []byte) ([]StreamEvent, error) {
	var raw streamLine
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, fmt.Errorf("decoding stream line: %w", err)
	}

	switch raw.Type {
	case "assistant":
		var events []StreamEvent
		for _, block := range raw.Message.Content {
			switch block.Type {
			case "text":
				events = append(events, AssistantText{Text: block.Text})
			case "tool_use":
				events = append(events, AssistantToolUse{Name: block.Name, Input: block.Input})
			}
		}
		return events, nil

	case "tool_result":
		return []StreamEvent{ToolResult{Content: raw.Content}}, nil

	case "result":
		return []StreamEvent{Result{
			Text:       raw.Result,
			SessionID:  raw.SessionID,
			CostUSD:    raw.TotalCostUSD,
			DurationMS: raw.DurationMS,
			NumTurns:   raw.NumTurns,
			IsError:    raw.IsError,
		}}, nil

	default:
		return []StreamEvent{Unknown{Type: raw.Type}}, nil
	}
}
