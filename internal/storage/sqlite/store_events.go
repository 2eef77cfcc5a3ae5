package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/louisbranch/persona-engine/internal/storage"
)

const defaultEventLimit = 100

// PutTrainingEvent appends one run record.
func (s *Store) PutTrainingEvent(ctx context.Context, event storage.TrainingEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(event.ID) == "" {
		return fmt.Errorf("event id is required")
	}
	if strings.TrimSpace(event.AgentKey) == "" {
		return fmt.Errorf("agent key is required")
	}
	if strings.TrimSpace(event.Kind) == "" {
		return fmt.Errorf("event kind is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO training_events (
	id, agent_key, kind, episodes, total_reward,
	policy_loss, value_loss, entropy, clip_fraction, skipped_epochs, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		event.ID,
		event.AgentKey,
		event.Kind,
		event.Episodes,
		event.TotalReward,
		event.PolicyLoss,
		event.ValueLoss,
		event.Entropy,
		event.ClipFraction,
		event.SkippedEpochs,
		toMillis(event.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("put training event: %w", err)
	}
	return nil
}

// ListTrainingEvents returns the most recent events for an agent, newest
// first. A non-positive limit uses the default.
func (s *Store) ListTrainingEvents(ctx context.Context, agentKey string, limit int) ([]storage.TrainingEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	agentKey = strings.TrimSpace(agentKey)
	if agentKey == "" {
		return nil, fmt.Errorf("agent key is required")
	}
	if limit <= 0 {
		limit = defaultEventLimit
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, agent_key, kind, episodes, total_reward,
	policy_loss, value_loss, entropy, clip_fraction, skipped_epochs, created_at
FROM training_events
WHERE agent_key = ?
ORDER BY created_at DESC, id
LIMIT ?
`, agentKey, limit)
	if err != nil {
		return nil, fmt.Errorf("list training events: %w", err)
	}
	defer rows.Close()

	var events []storage.TrainingEvent
	for rows.Next() {
		var (
			event     storage.TrainingEvent
			createdAt int64
		)
		if err := rows.Scan(
			&event.ID,
			&event.AgentKey,
			&event.Kind,
			&event.Episodes,
			&event.TotalReward,
			&event.PolicyLoss,
			&event.ValueLoss,
			&event.Entropy,
			&event.ClipFraction,
			&event.SkippedEpochs,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan training event: %w", err)
		}
		event.CreatedAt = fromMillis(createdAt)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list training events: %w", err)
	}
	return events, nil
}
