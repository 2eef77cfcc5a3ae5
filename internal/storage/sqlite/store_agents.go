package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/persona-engine/internal/storage"
)

// PutAgentSnapshot inserts or replaces a policy snapshot. The original
// created_at survives an update.
func (s *Store) PutAgentSnapshot(ctx context.Context, record storage.AgentSnapshotRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.Key) == "" {
		return fmt.Errorf("agent key is required")
	}
	if record.StateDim <= 0 || record.ActionDim <= 0 {
		return fmt.Errorf("snapshot dimensions are required")
	}
	if len(record.Snapshot) == 0 {
		return fmt.Errorf("snapshot payload is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO agent_snapshots (
	key, state_dim, action_dim, snapshot, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
	state_dim = excluded.state_dim,
	action_dim = excluded.action_dim,
	snapshot = excluded.snapshot,
	updated_at = excluded.updated_at
`,
		record.Key,
		record.StateDim,
		record.ActionDim,
		record.Snapshot,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put agent snapshot: %w", err)
	}
	return nil
}

// GetAgentSnapshot fetches a policy snapshot by agent key.
func (s *Store) GetAgentSnapshot(ctx context.Context, key string) (storage.AgentSnapshotRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.AgentSnapshotRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.AgentSnapshotRecord{}, fmt.Errorf("storage is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return storage.AgentSnapshotRecord{}, fmt.Errorf("agent key is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT key, state_dim, action_dim, snapshot, created_at, updated_at
FROM agent_snapshots
WHERE key = ?
`, key)
	return scanAgentSnapshot(row.Scan)
}

// ListAgentSnapshots returns all stored snapshots ordered by key.
func (s *Store) ListAgentSnapshots(ctx context.Context) ([]storage.AgentSnapshotRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT key, state_dim, action_dim, snapshot, created_at, updated_at
FROM agent_snapshots
ORDER BY key
`)
	if err != nil {
		return nil, fmt.Errorf("list agent snapshots: %w", err)
	}
	defer rows.Close()

	var records []storage.AgentSnapshotRecord
	for rows.Next() {
		rec, err := scanAgentSnapshot(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list agent snapshots: %w", err)
	}
	return records, nil
}

// DeleteAgentSnapshot removes a snapshot by key.
func (s *Store) DeleteAgentSnapshot(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("agent key is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM agent_snapshots WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete agent snapshot: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete agent snapshot: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanAgentSnapshot(scan func(dest ...any) error) (storage.AgentSnapshotRecord, error) {
	var (
		rec       storage.AgentSnapshotRecord
		createdAt int64
		updatedAt int64
	)
	if err := scan(
		&rec.Key,
		&rec.StateDim,
		&rec.ActionDim,
		&rec.Snapshot,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.AgentSnapshotRecord{}, storage.ErrNotFound
		}
		return storage.AgentSnapshotRecord{}, fmt.Errorf("scan agent snapshot: %w", err)
	}
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	return rec, nil
}
