// ABOUTME: Per-agent worker: a FIFO inbox drained by one goroutine that runs
// ABOUTME: the reasoning CLI per message and relays the reply into the game.

package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/borelabs/bore-bridge/internal/response"
	"github.com/borelabs/bore-bridge/internal/session"
	"github.com/borelabs/bore-bridge/internal/watcher"
)

// State is a worker's coarse lifecycle phase, visible to health reporting.
type State string

const (
	StateIdle     State = "idle"
	StateInvoking State = "invoking"
)

// maxErrorLen bounds the error text relayed to players. Stack traces and
// CLI usage dumps stay in the logs.
const maxErrorLen = 200

// actionCompleteReply stands in when an invocation succeeds without
// producing any visible text (pure tool work).
const actionCompleteReply = "(action complete)"

// Notifier is the game-facing callback surface a worker needs.
type Notifier interface {
	SendResponse(playerIndex int, agentName, text string) error
	SendToolStatus(playerIndex int, agentName, toolName string) error
	SetStatus(playerIndex int, status string) error
}

// Status strings a worker pushes to the player panel around an invocation.
const (
	statusThinking = "[color=1,0.8,0.2]Thinking...[/color]"
	statusReady    = "[color=0.4,0.8,0.4]Ready[/color]"
)

// Recorder persists finished turns. Implementations must be safe for
// concurrent use; a nil Recorder disables persistence.
type Recorder interface {
	SaveTranscript(ctx context.Context, agentID, author, body string) error
	SaveTurnUsage(ctx context.Context, agentID string, costUSD float64, durationMS int64, numTurns int) error
}

// Observer receives live activity for the telemetry stream. A nil Observer
// disables emission.
type Observer interface {
	EmitChat(agentID, author, body string)
	EmitToolCall(agentID, tool string)
	EmitError(agentID, msg string)
	EmitStatus(agentID string, state string)
}

// Task is one standing work item an idle worker picks up.
type Task struct {
	Prompt string
	Player int
}

// TaskSource hands out standing tasks. Current returns the task to run
// next; Advance moves past it. Implementations persist their own position.
type TaskSource interface {
	Current() (Task, bool)
	Advance()
}

// WorkerConfig wires one worker's collaborators. Profile, Runner, Sessions,
// and Notifier are required; the rest are optional.
type WorkerConfig struct {
	Profile  Profile
	Runner   Runner
	Sessions *session.Store
	Notifier Notifier
	Tasks    TaskSource
	Recorder Recorder
	Observer Observer
	// Timeout caps one invocation's wall-clock time. Zero means 10 minutes.
	Timeout time.Duration
	Logger  *slog.Logger
}

const defaultInvokeTimeout = 10 * time.Minute

// Worker owns one agent: its inbox, its conversation continuity, and the
// single goroutine allowed to invoke its reasoning process. Messages are
// processed strictly in arrival order.
type Worker struct {
	profile  Profile
	runner   Runner
	sessions *session.Store
	notifier Notifier
	tasks    TaskSource
	recorder Recorder
	observer Observer
	timeout  time.Duration
	logger   *slog.Logger

	mu    sync.Mutex
	queue []watcher.Message
	state State

	wake chan struct{}
	done chan struct{}
}

// NewWorker builds a worker; call Start to begin draining its inbox.
func NewWorker(cfg WorkerConfig) *Worker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultInvokeTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Worker{
		profile:  cfg.Profile,
		runner:   cfg.Runner,
		sessions: cfg.Sessions,
		notifier: cfg.Notifier,
		tasks:    cfg.Tasks,
		recorder: cfg.Recorder,
		observer: cfg.Observer,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger.With("component", "worker", "agent", cfg.Profile.ID),
		state:    StateIdle,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// ID returns the agent id this worker serves.
func (w *Worker) ID() string { return w.profile.ID }

// State reports the worker's current phase.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// QueueLen reports the number of messages waiting in the inbox.
func (w *Worker) QueueLen() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

// Enqueue appends a message to the inbox. The inbox is unbounded; a slow
// agent backs up its own queue without blocking the router.
func (w *Worker) Enqueue(msg watcher.Message) {
	w.mu.Lock()
	w.queue = append(w.queue, msg)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Start launches the drain goroutine. It exits when ctx is cancelled; any
// in-flight invocation is killed through the same context.
func (w *Worker) Start(ctx context.Context) {
	go func() {
		defer close(w.done)
		w.run(ctx)
	}()
}

// Wait blocks until the drain goroutine has exited.
func (w *Worker) Wait() { <-w.done }

func (w *Worker) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if msg, ok := w.pop(); ok {
			w.handle(ctx, msg)
			continue
		}
		if w.tasks != nil {
			if task, ok := w.tasks.Current(); ok {
				w.handle(ctx, watcher.Message{
					PlayerIndex: task.Player,
					PlayerName:  "taskchain",
					Body:        task.Prompt,
					Destination: w.profile.ID,
				})
				w.tasks.Advance()
				continue
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-w.wake:
		}
	}
}

func (w *Worker) pop() (watcher.Message, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) == 0 {
		return watcher.Message{}, false
	}
	msg := w.queue[0]
	w.queue = w.queue[1:]
	return msg, true
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
	if w.observer != nil {
		w.observer.EmitStatus(w.profile.ID, string(s))
	}
}

// handle runs one message end to end. It never returns an error: every
// failure mode degrades to a relayed error string so the player always
// hears back and the worker survives for the next message.
func (w *Worker) handle(ctx context.Context, msg watcher.Message) {
	w.setState(StateInvoking)
	defer w.setState(StateIdle)

	if err := w.notifier.SetStatus(msg.PlayerIndex, statusThinking); err != nil {
		w.logger.Warn("thinking status not delivered", "error", err)
	}
	if w.observer != nil {
		w.observer.EmitChat(w.profile.ID, msg.PlayerName, msg.Body)
	}
	if w.recorder != nil {
		if err := w.recorder.SaveTranscript(ctx, w.profile.ID, msg.PlayerName, msg.Body); err != nil {
			w.logger.Warn("transcript write failed", "error", err)
		}
	}

	reply := w.invoke(ctx, msg)

	if err := w.notifier.SendResponse(msg.PlayerIndex, w.profile.Name(), reply); err != nil {
		w.logger.Error("response not delivered", "error", err)
		if w.observer != nil {
			w.observer.EmitError(w.profile.ID, "response delivery failed")
		}
	}
	if err := w.notifier.SetStatus(msg.PlayerIndex, statusReady); err != nil {
		w.logger.Warn("ready status not delivered", "error", err)
	}
	if w.observer != nil {
		w.observer.EmitChat(w.profile.ID, w.profile.Name(), reply)
	}
	if w.recorder != nil {
		if err := w.recorder.SaveTranscript(ctx, w.profile.ID, w.profile.Name(), reply); err != nil {
			w.logger.Warn("transcript write failed", "error", err)
		}
	}
}

// invoke runs the reasoning process for one message and returns the text to
// relay. The continuation token advances only on success; an invocation
// that errored may have a poisoned conversation state, so its fresh token
// is discarded and the next message resumes from the last good turn.
func (w *Worker) invoke(ctx context.Context, msg watcher.Message) string {
	token, _ := w.sessions.Load(w.profile.ID)

	inv := Invocation{
		Prompt:       msg.Body,
		SystemPrompt: w.profile.SystemPrompt,
		Model:        w.profile.Model,
		MaxTurns:     w.profile.MaxTurns,
		SessionID:    token,
	}

	runCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	var (
		parts    []string
		newToken string
		usage    *Result
	)
	start := time.Now()
	err := w.runner.Run(runCtx, inv, func(ev StreamEvent) {
		switch ev := ev.(type) {
		case AssistantText:
			if ev.Text != "" {
				parts = append(parts, ev.Text)
			}
		case AssistantToolUse:
			w.logger.Debug("tool call", "tool", ev.Name)
			if err := w.notifier.SendToolStatus(msg.PlayerIndex, w.profile.Name(), ev.Name); err != nil {
				w.logger.Warn("tool status not delivered", "error", err)
			}
			if w.observer != nil {
				w.observer.EmitToolCall(w.profile.ID, ev.Name)
			}
		case Result:
			res := ev
			usage = &res
			newToken = ev.SessionID
			if ev.Text != "" && !containsPart(parts, ev.Text) {
				parts = append(parts, ev.Text)
			}
		}
	})

	if err != nil {
		w.logger.Error("invocation failed",
			"error", err,
			"elapsed", time.Since(start).Round(time.Millisecond))
		if w.observer != nil {
			w.observer.EmitError(w.profile.ID, boundedError(err))
		}
		if IsLaunchFailure(err) {
			return "Error: claude CLI not installed"
		}
		// Text already streamed before the process died is still a valid
		// reply; the error string is relayed only when nothing arrived.
		if text := response.Sanitize(strings.Join(parts, "\n\n")); strings.TrimSpace(text) != "" {
			return text
		}
		return "Error: " + boundedError(err)
	}

	if newToken != "" {
		if err := w.sessions.Save(w.profile.ID, newToken); err != nil {
			w.logger.Error("session token not saved", "error", err)
		}
	}
	if usage != nil {
		w.logger.Info("turn complete",
			"cost_usd", usage.CostUSD,
			"duration_ms", usage.DurationMS,
			"num_turns", usage.NumTurns)
		if w.recorder != nil {
			if err := w.recorder.SaveTurnUsage(ctx, w.profile.ID, usage.CostUSD, usage.DurationMS, usage.NumTurns); err != nil {
				w.logger.Warn("usage write failed", "error", err)
			}
		}
	}

	text := response.Sanitize(strings.Join(parts, "\n\n"))
	if strings.TrimSpace(text) == "" {
		return actionCompleteReply
	}
	return text
}

func containsPart(parts []string, text string) bool {
	for _, p := range parts {
		if strings.Contains(p, text) {
			return true
		}
	}
	return false
}

// boundedError flattens an error to a single line capped at maxErrorLen.
func boundedError(err error) string {
	msg := strings.TrimSpace(err.Error())
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	if len(msg) > maxErrorLen {
		msg = msg[:maxErrorLen]
	}
	if msg == "" {
		msg = fmt.Sprintf("%T", err)
	}
	return msg
}
