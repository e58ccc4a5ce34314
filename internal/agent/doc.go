// Package agent runs one worker per configured AI agent.
//
// # Overview
//
// The agent package owns everything that happens between a routed game
// message and the reply relayed back into the game: profile loading,
// spawning the reasoning CLI, decoding its output stream, session
// continuity, and error degradation.
//
// # Profiles
//
// Each agent is declared by a TOML profile:
//
//	id = "bore-01"
//	display_name = "BORE-01"
//	system_prompt = """You are a mining overseer..."""
//	model = "sonnet"
//	max_turns = 15
//
// Profiles are loaded once at startup and are read-only afterwards.
//
// # Worker
//
// A Worker serializes all reasoning for one agent:
//
//	w := agent.NewWorker(agent.WorkerConfig{...})
//	w.Start(ctx)
//	w.Enqueue(msg)
//
// Key guarantees:
//
//   - Messages are processed strictly in arrival order (unbounded FIFO).
//   - At most one reasoning process runs per agent at any time.
//   - A failed invocation degrades to a short relayed error string; the
//     worker survives and moves on to the next message.
//
// # Invocation
//
// Each message becomes one spawn of the external reasoning CLI in headless
// streaming mode. Stdout lines decode to StreamEvent values:
//
//   - AssistantText: visible text, accumulated into the reply
//   - AssistantToolUse: surfaces as an in-game tool status update
//   - ToolResult: tool output echoed on the stream
//   - Result: terminal event carrying the continuation token and usage
//
// # Session Continuity
//
// The Result event's session id is the continuation token for the next
// turn. It is persisted only when the process exits cleanly; a failed
// invocation keeps the previous token, so the next message resumes the
// conversation from the last known-good turn.
//
// # Thread Safety
//
// Worker is safe for concurrent use: Enqueue, State, and QueueLen may be
// called from any goroutine while the drain goroutine is running.
package agent
