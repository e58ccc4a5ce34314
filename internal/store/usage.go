// ABOUTME: Per-turn reasoning usage: cost, wall time, and tool-use turns,
// ABOUTME: aggregated per agent for the operator surface.

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UsageTotals aggregates an agent's reasoning spend.
type UsageTotals struct {
	AgentID         string
	Invocations     int
	TotalCostUSD    float64
	TotalDurationMS int64
	TotalTurns      int
}

// SaveTurnUsage records the usage figures of one completed invocation.
func (s *Store) SaveTurnUsage(ctx context.Context, agentID string, costUSD float64, durationMS int64, numTurns int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turn_usage (id, agent_id, cost_usd, duration_ms, num_turns, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), agentID, costUSD, durationMS, numTurns, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving turn usage: %w", err)
	}
	return nil
}

// AgentUsageTotals returns per-agent totals, ordered by agent id.
func (s *Store) AgentUsageTotals(ctx context.Context) ([]UsageTotals, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT agent_id,
		       COUNT(*),
		       COALESCE(SUM(cost_usd), 0),
		       COALESCE(SUM(duration_ms), 0),
		       COALESCE(SUM(num_turns), 0)
		FROM turn_usage
		GROUP BY agent_id
		ORDER BY agent_id`)
	if err != nil {
		return nil, fmt.Errorf("aggregating usage: %w", err)
	}
	defer rows.Close()

	var totals []UsageTotals
	for rows.Next() {
		var u UsageTotals
		if err := rows.Scan(&u.AgentID, &u.Invocations, &u.TotalCostUSD, &u.TotalDurationMS, &u.TotalTurns); err != nil {
			return nil, fmt.Errorf("scanning usage totals: %w", err)
		}
		totals = append(totals, u)
	}
	return totals, rows.Err()
}
