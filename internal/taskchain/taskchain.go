// ABOUTME: Standing task chains: a JSON list of prompts an idle agent works
// ABOUTME: through, with the cursor persisted across bridge restarts.

package taskchain

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/borelabs/bore-bridge/internal/agent"
)

type task struct {
	Prompt string `json:"prompt"`
	Player int    `json:"player"`
}

type chainFile struct {
	Tasks        []task `json:"chain"`
	Loop         bool   `json:"loop"`
	CurrentIndex int    `json:"current_index"`
}

// Chain is one agent's standing task list. It satisfies the worker's task
// source contract: Current hands out the task under the cursor, Advance
// moves past it and persists the new position so a restart resumes where
// the agent left off.
type Chain struct {
	path   string
	logger *slog.Logger

	mu    sync.Mutex
	tasks []task
	loop  bool
	index int
}

// Load reads a chain file. A cursor already past the end of a non-looping
// chain is kept as-is; the chain simply reports itself finished.
func Load(path string, logger *slog.Logger) (*Chain, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading task chain: %w", err)
	}

	var file chainFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing task chain %s: %w", path, err)
	}
	if len(file.Tasks) == 0 {
		return nil, fmt.Errorf("task chain %s has no tasks", path)
	}
	for i, tk := range file.Tasks {
		if tk.Prompt == "" {
			return nil, fmt.Errorf("task chain %s: task %d has no prompt", path, i)
		}
	}
	if file.CurrentIndex < 0 {
		file.CurrentIndex = 0
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		path:   path,
		logger: logger.With("component", "taskchain", "file", filepath.Base(path)),
		tasks:  file.Tasks,
		loop:   file.Loop,
		index:  file.CurrentIndex,
	}, nil
}

// Current returns the task under the cursor, or ok=false when the chain
// has finished.
func (c *Chain) Current() (agent.Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.index >= len(c.tasks) {
		return agent.Task{}, false
	}
	tk := c.tasks[c.index]
	player := tk.Player
	if player <= 0 {
		player = 1
	}
	return agent.Task{Prompt: tk.Prompt, Player: player}, true
}

// Advance moves the cursor forward, wrapping when the chain loops, and
// writes the position back to disk. A failed write is logged and the
// in-memory cursor still advances; worst case a restart repeats one task.
func (c *Chain) Advance() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.index++
	if c.loop && c.index >= len(c.tasks) {
		c.index = 0
	}
	if err := c.persist(); err != nil {
		c.logger.Warn("task chain position not saved", "error", err)
	}
}

// Remaining reports how many tasks are left before the chain finishes.
// A looping chain never finishes and reports its full length.
func (c *Chain) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loop {
		return len(c.tasks)
	}
	if c.index >= len(c.tasks) {
		return 0
	}
	return len(c.tasks) - c.index
}

func (c *Chain) persist() error {
	file := chainFile{Tasks: c.tasks, Loop: c.loop, CurrentIndex: c.index}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), ".chain-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.path)
}

// LoadDir loads every *.json chain under dir, keyed by agent id taken from
// the file name (bore-01.json drives agent bore-01). A missing directory
// means no chains are configured.
func LoadDir(dir string, logger *slog.Logger) (map[string]*Chain, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading task chain directory: %w", err)
	}

	chains := make(map[string]*Chain)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		chain, err := Load(filepath.Join(dir, entry.Name()), logger)
		if err != nil {
			return nil, err
		}
		agentID := entry.Name()[:len(entry.Name())-len(".json")]
		chains[agentID] = chain
	}
	return chains, nil
}
