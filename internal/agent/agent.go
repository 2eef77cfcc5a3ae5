// Package agent owns the concurrency boundary around trained policies: an
// Agent serializes parameter updates against concurrent readers, and the
// Registry hands out one Agent per key, loading persisted snapshots on
// first use.
package agent

import (
	"math/rand"
	"sync"

	"github.com/louisbranch/persona-engine/internal/policy"
)

// Agent is a keyed policy with its optimizer. Reads (action selection,
// value estimates, snapshots) run concurrently; updates take the write
// lock so a training pass never observes half-written parameters.
type Agent struct {
	key string

	mu      sync.RWMutex
	updater *policy.Updater
}

func newAgent(key string, updater *policy.Updater) *Agent {
	return &Agent{key: key, updater: updater}
}

// Key returns the registry key.
func (a *Agent) Key() string { return a.key }

// StateDim returns the policy's observation length.
func (a *Agent) StateDim() int { return a.updater.Model().StateDim() }

// ActionDim returns the policy's action count.
func (a *Agent) ActionDim() int { return a.updater.Model().ActionDim() }

// Decide selects an action under the current policy.
func (a *Agent) Decide(obs []float64, deterministic bool, rng *rand.Rand) (action int, logProb, value float64, probs []float64, err error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.updater.Model().Decide(obs, deterministic, rng)
}

// Value returns the critic's estimate for an observation.
func (a *Agent) Value(obs []float64) (float64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, value, err := a.updater.Model().Forward(obs)
	return value, err
}

// Update runs the clipped-objective passes over one batch.
func (a *Agent) Update(traj policy.Trajectory, returns, advantages []float64) (policy.Stats, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.updater.Update(traj, returns, advantages)
}

// Snapshot captures the model and optimizer for persistence.
func (a *Agent) Snapshot() policy.Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return policy.TakeSnapshot(a.updater)
}

// Restore loads a snapshot into the agent's policy.
func (a *Agent) Restore(snap policy.Snapshot) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return policy.Restore(a.updater, snap)
}
