// ABOUTME: Declarative per-agent profiles loaded once at startup from TOML records.
// ABOUTME: A profile fixes an agent's identity, system prompt, and turn budget.

package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// defaultMaxTurns bounds tool-use turns per message when a profile omits it.
const defaultMaxTurns = 15

// Profile is one agent's declarative record. Read-only after load.
type Profile struct {
	ID           string `toml:"id"`
	SystemPrompt string `toml:"system_prompt"`
	Model        string `toml:"model"`
	MaxTurns     int    `toml:"max_turns"`
	DisplayName  string `toml:"display_name"`
	Group        string `toml:"group"`
	Planet       string `toml:"planet"`
}

// Name returns the display name, falling back to the agent id.
func (p Profile) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.ID
}

// LoadProfile reads and validates a single profile file.
func LoadProfile(path string) (Profile, error) {
	var p Profile
	if _, err := toml.DecodeFile(path, &p); err != nil {
		return Profile{}, fmt.Errorf("parsing agent profile %s: %w", path, err)
	}

	if strings.TrimSpace(p.ID) == "" {
		return Profile{}, fmt.Errorf("agent profile %s: id is required", path)
	}
	if strings.TrimSpace(p.SystemPrompt) == "" {
		return Profile{}, fmt.Errorf("agent profile %s: system_prompt is required", path)
	}
	if p.MaxTurns <= 0 {
		p.MaxTurns = defaultMaxTurns
	}
	return p, nil
}

// LoadProfiles loads every *.toml profile under dir, sorted by agent id.
// An empty directory is an error: the bridge is useless with no agents.
func LoadProfiles(dir string) ([]Profile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading agents directory: %w", err)
	}

	var profiles []Profile
	seen := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}
		p, err := LoadProfile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("duplicate agent id %q in %s and %s", p.ID, prev, entry.Name())
		}
		seen[p.ID] = entry.Name()
		profiles = append(profiles, p)
	}

	if len(profiles) == 0 {
		return nil, fmt.Errorf("no agent profiles found in %s", dir)
	}

	sort.Slice(profiles, func(i, j int) bool { return profiles[i].ID < profiles[j].ID })
	return profiles, nil
}
