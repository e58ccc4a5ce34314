// ABOUTME: Durable per-agent continuation token storage, one JSON file per agent.
// ABOUTME: Saves are atomic whole-file rewrites so concurrent agents never race.

package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// record is the on-disk shape of one agent's session file.
type record struct {
	ContinuationToken string `json:"continuation_token"`
}

// Store persists continuation tokens under a directory, one
// <agent_id>.json per agent. Each agent worker exclusively owns its own
// file, so the store itself needs no locking.
type Store struct {
	dir string
}

// NewStore creates the session directory if needed and returns a Store.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating session directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Load returns the stored token for an agent. A missing or unparsable file
// is not an error: it signals a fresh conversation and returns ok=false.
func (s *Store) Load(agentID string) (token string, ok bool) {
	data, err := os.ReadFile(s.path(agentID))
	if err != nil {
		return "", false
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", false
	}
	if rec.ContinuationToken == "" {
		return "", false
	}
	return rec.ContinuationToken, true
}

// Save atomically rewrites the agent's session file with the new token.
func (s *Store) Save(agentID, token string) error {
	data, err := json.MarshalIndent(record{ContinuationToken: token}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session record: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(s.dir, agentID+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp session file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing session record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp session file: %w", err)
	}

	if err := os.Rename(tmpName, s.path(agentID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing session file: %w", err)
	}
	return nil
}

func (s *Store) path(agentID string) string {
	return filepath.Join(s.dir, agentID+".json")
}
