// ABOUTME: Minimal stand-in for the reasoning CLI for end-to-end testing.
// ABOUTME: Accepts the real flag surface and emits a scripted stream-json conversation.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"
)

func main() {
	// Accept the flags the bridge passes so it can point runner.binary here.
	prompt := flag.Bool("p", false, "print mode")
	outputFormat := flag.String("output-format", "text", "output format")
	flag.Bool("verbose", false, "verbose output")
	flag.String("permission-mode", "", "permission mode")
	flag.String("mcp-config", "", "MCP config path")
	flag.String("system-prompt", "", "system prompt")
	flag.Int("max-turns", 0, "max tool-use turns")
	flag.String("model", "", "model name")
	resume := flag.String("resume", "", "session id to resume")
	delay := flag.Duration("delay", 0, "artificial latency before replying")
	flag.Parse()

	if !*prompt || *outputFormat != "stream-json" {
		fmt.Fprintln(os.Stderr, "fake-claude only supports: -p --output-format stream-json")
		os.Exit(2)
	}
	message := flag.Arg(0)
	if message == "" {
		fmt.Fprintln(os.Stderr, "no prompt given")
		os.Exit(2)
	}

	if *delay > 0 {
		time.Sleep(*delay)
	}

	sessionID := fmt.Sprintf("fake-%d", time.Now().UnixNano())
	if *resume != "" {
		sessionID = *resume
	}

	emit(map[string]any{
		"type": "assistant",
		"message": map[string]any{
			"content": []map[string]any{
				{"type": "tool_use", "name": "get_player_position", "input": map[string]any{"player": 1}},
			},
		},
	})
	emit(map[string]any{
		"type":    "tool_result",
		"content": "x=12, y=-48",
	})
	emit(map[string]any{
		"type": "assistant",
		"message": map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": "[color=0,1,0]STATUS:[/color] echo: " + message},
			},
		},
	})
	emit(map[string]any{
		"type":           "result",
		"result":         "",
		"session_id":     sessionID,
		"total_cost_usd": 0.0001,
		"duration_ms":    int(delay.Milliseconds()) + 50,
		"num_turns":      1,
	})
}

func emit(v map[string]any) {
	line, err := json.Marshal(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "encoding event: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(line))
}
