// ABOUTME: Transcript persistence: every message into and out of an agent,
// ABOUTME: queryable per agent in chronological order.

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TranscriptEntry is one line of an agent's conversation history.
type TranscriptEntry struct {
	ID        string
	AgentID   string
	Author    string
	Body      string
	CreatedAt time.Time
}

// SaveTranscript appends one transcript line for an agent.
func (s *Store) SaveTranscript(ctx context.Context, agentID, author, body string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transcript (id, agent_id, author, body, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), agentID, author, body, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving transcript line: %w", err)
	}
	return nil
}

// ListTranscript returns the most recent limit lines for an agent, oldest
// first. A limit <= 0 means no limit.
func (s *Store) ListTranscript(ctx context.Context, agentID string, limit int) ([]TranscriptEntry, error) {
	query := `
		SELECT id, agent_id, author, body, created_at
		FROM (
			SELECT id, agent_id, author, body, created_at
			FROM transcript
			WHERE agent_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		)
		ORDER BY created_at ASC, id ASC`
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, query, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing transcript: %w", err)
	}
	defer rows.Close()

	var entries []TranscriptEntry
	for rows.Next() {
		var e TranscriptEntry
		if err := rows.Scan(&e.ID, &e.AgentID, &e.Author, &e.Body, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning transcript line: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
