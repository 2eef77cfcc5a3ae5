package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// AgentSnapshotRecord is a persisted policy: the serialized model and
// optimizer plus the dimensions it was trained with, keyed by the agent's
// registry key.
type AgentSnapshotRecord struct {
	Key       string
	StateDim  int
	ActionDim int
	Snapshot  []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TrainingEvent records one training or simulation run for later inspection.
type TrainingEvent struct {
	ID            string
	AgentKey      string
	Kind          string
	Episodes      int
	TotalReward   float64
	PolicyLoss    float64
	ValueLoss     float64
	Entropy       float64
	ClipFraction  float64
	SkippedEpochs int
	CreatedAt     time.Time
}

// AgentStore persists trained policies.
type AgentStore interface {
	PutAgentSnapshot(ctx context.Context, record AgentSnapshotRecord) error
	GetAgentSnapshot(ctx context.Context, key string) (AgentSnapshotRecord, error)
	ListAgentSnapshots(ctx context.Context) ([]AgentSnapshotRecord, error)
	DeleteAgentSnapshot(ctx context.Context, key string) error
}

// TelemetryStore persists run telemetry.
type TelemetryStore interface {
	PutTrainingEvent(ctx context.Context, event TrainingEvent) error
	ListTrainingEvents(ctx context.Context, agentKey string, limit int) ([]TrainingEvent, error)
}
