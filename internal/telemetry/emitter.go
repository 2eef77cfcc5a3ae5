// Package telemetry records run-level training events for later inspection.
package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/louisbranch/persona-engine/internal/storage"
)

// Event kinds recorded by the engine.
const (
	KindSimulate = "simulate"
	KindTrain    = "train"
	KindInteract = "interact"
	KindDuel     = "duel"
)

// Emitter records training events. A nil store makes every emit a no-op,
// so callers never branch on whether telemetry is configured.
type Emitter struct {
	store storage.TelemetryStore
	clock func() time.Time
	newID func() string
}

// NewEmitter creates a telemetry emitter.
func NewEmitter(store storage.TelemetryStore) *Emitter {
	return &Emitter{
		store: store,
		clock: time.Now,
		newID: func() string { return uuid.NewString() },
	}
}

// Emit records one training event, filling in the ID and timestamp when
// the caller leaves them empty.
func (e *Emitter) Emit(ctx context.Context, event storage.TrainingEvent) error {
	if e == nil || e.store == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = e.newID()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = e.clock().UTC()
	}
	return e.store.PutTrainingEvent(ctx, event)
}
