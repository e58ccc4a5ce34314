// ABOUTME: Runner abstracts one invocation of the external reasoning CLI.
// ABOUTME: CLIRunner spawns the real process and streams its stdout as events.

package agent

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Invocation carries everything one reasoning turn needs.
type Invocation struct {
	Prompt       string
	SystemPrompt string
	Model        string
	MaxTurns     int
	SessionID    string // continuation token; empty starts a fresh conversation
}

// Runner executes one reasoning invocation, calling emit for each stream
// event in arrival order. A nil error means the process exited cleanly;
// events already emitted remain valid either way.
type Runner interface {
	Run(ctx context.Context, inv Invocation, emit func(StreamEvent)) error
}

// ProcessError is a reasoning process that launched but exited non-zero.
type ProcessError struct {
	Stderr string
	Err    error
}

func (e *ProcessError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return e.Err.Error()
	}
	return msg
}

func (e *ProcessError) Unwrap() error { return e.Err }

// scanBufSize must fit a single stream-json line; tool results can be large.
const scanBufSize = 4 << 20

// CLIRunner invokes the claude CLI in headless streaming mode.
type CLIRunner struct {
	// Binary is the executable name or path. Defaults to "claude".
	Binary string
	// MCPConfig is an optional path to an MCP server configuration
	// passed through to the CLI.
	MCPConfig string
}

func (r *CLIRunner) binary() string {
	if r.Binary != "" {
		return r.Binary
	}
	return "claude"
}

// Run spawns the CLI and parses its stdout line by line. Launch failures
// wrap exec.ErrNotFound; non-zero exits return a *ProcessError carrying
// captured stderr.
func (r *CLIRunner) Run(ctx context.Context, inv Invocation, emit func(StreamEvent)) error {
	args := []string{
		"-p",
		"--output-format", "stream-json",
		"--verbose",
		"--permission-mode", "bypassPermissions",
		"--system-prompt", inv.SystemPrompt,
		"--max-turns", strconv.Itoa(inv.MaxTurns),
	}
	if r.MCPConfig != "" {
		args = append(args, "--mcp-config", r.MCPConfig)
	}
	if inv.Model != "" {
		args = append(args, "--model", inv.Model)
	}
	if inv.SessionID != "" {
		args = append(args, "--resume", inv.SessionID)
	}
	args = append(args, inv.Prompt)

	cmd := exec.CommandContext(ctx, r.binary(), args...)
	cmd.Env = scrubEnv(os.Environ())

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("opening reasoning process stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launching reasoning process: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), scanBufSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		events, err := ParseStreamLine(line)
		if err != nil {
			// A garbled line is skipped; the result event still arrives.
			continue
		}
		for _, ev := range events {
			emit(ev)
		}
	}
	scanErr := scanner.Err()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("reasoning process: %w", ctx.Err())
		}
		return &ProcessError{Stderr: stderr.String(), Err: err}
	}
	if scanErr != nil {
		return fmt.Errorf("reading reasoning process output: %w", scanErr)
	}
	return nil
}

// IsLaunchFailure reports whether err means the CLI binary could not start
// at all, as opposed to starting and then failing.
func IsLaunchFailure(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist)
}

// scrubEnv drops the nested-session guard variable so the spawned CLI does
// not refuse to run inside another agent's process tree.
func scrubEnv(env []string) []string {
	out := env[:0:0]
	for _, kv := range env {
		if strings.HasPrefix(kv, "CLAUDECODE=") {
			continue
		}
		out = append(out, kv)
	}
	return out
}
