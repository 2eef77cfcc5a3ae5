package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/louisbranch/persona-engine/internal/policy"
	"github.com/louisbranch/persona-engine/internal/random"
	"github.com/louisbranch/persona-engine/internal/storage"
)

// ErrDimensionMismatch indicates a cached or persisted agent was built with
// different dimensions than the caller expects. Agents for different action
// sets must use distinct keys.
var ErrDimensionMismatch = errors.New("agent dimensions do not match")

// Registry hands out agents by key, at most one per key for the process
// lifetime. When a store is configured, the first request for a key loads
// its persisted snapshot; a missing record means a freshly initialized
// policy.
type Registry struct {
	cfg    policy.Config
	store  storage.AgentStore
	logger *zap.Logger
	now    func() time.Time
	seed   func() (int64, error)

	mu     sync.Mutex
	agents map[string]*Agent
}

// NewRegistry builds a registry. The store is optional; without one, agents
// live only in memory.
func NewRegistry(cfg policy.Config, store storage.AgentStore, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		cfg:    cfg,
		store:  store,
		logger: logger,
		now:    time.Now,
		seed:   random.NewSeed,
		agents: make(map[string]*Agent),
	}
}

// GetOrCreate returns the agent for key, loading it from the store or
// initializing a fresh policy on first use. Every caller passing the same
// key gets the same *Agent. A dimension conflict with the cached or
// persisted agent returns ErrDimensionMismatch.
func (r *Registry) GetOrCreate(ctx context.Context, key string, stateDim, actionDim int) (*Agent, error) {
	if key == "" {
		return nil, fmt.Errorf("agent key is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if agent, ok := r.agents[key]; ok {
		if agent.StateDim() != stateDim || agent.ActionDim() != actionDim {
			return nil, fmt.Errorf("%w: key %q holds %d/%d, requested %d/%d",
				ErrDimensionMismatch, key, agent.StateDim(), agent.ActionDim(), stateDim, actionDim)
		}
		return agent, nil
	}

	agent, err := r.load(ctx, key, stateDim, actionDim)
	if err != nil {
		return nil, err
	}
	r.agents[key] = agent
	return agent, nil
}

func (r *Registry) load(ctx context.Context, key string, stateDim, actionDim int) (*Agent, error) {
	var record storage.AgentSnapshotRecord
	haveRecord := false
	if r.store != nil {
		var err error
		record, err = r.store.GetAgentSnapshot(ctx, key)
		switch {
		case err == nil:
			haveRecord = true
		case errors.Is(err, storage.ErrNotFound):
		default:
			return nil, fmt.Errorf("load agent %q: %w", key, err)
		}
	}

	if haveRecord && (record.StateDim != stateDim || record.ActionDim != actionDim) {
		return nil, fmt.Errorf("%w: stored %q is %d/%d, requested %d/%d",
			ErrDimensionMismatch, key, record.StateDim, record.ActionDim, stateDim, actionDim)
	}

	seed, err := r.seed()
	if err != nil {
		return nil, fmt.Errorf("seed agent %q: %w", key, err)
	}
	model, err := policy.NewPolicyValueModel(stateDim, actionDim, r.cfg.HiddenDim, seed)
	if err != nil {
		return nil, fmt.Errorf("build agent %q: %w", key, err)
	}
	updater := policy.NewUpdater(model, r.cfg, r.logger.Named("policy"))
	agent := newAgent(key, updater)

	if haveRecord {
		var snap policy.Snapshot
		if err := json.Unmarshal(record.Snapshot, &snap); err != nil {
			return nil, fmt.Errorf("decode agent %q snapshot: %w", key, err)
		}
		if err := agent.Restore(snap); err != nil {
			return nil, fmt.Errorf("restore agent %q: %w", key, err)
		}
		r.logger.Debug("agent restored from store",
			zap.String("key", key),
			zap.Int("state_dim", stateDim),
			zap.Int("action_dim", actionDim))
	} else {
		r.logger.Debug("agent initialized",
			zap.String("key", key),
			zap.Int("state_dim", stateDim),
			zap.Int("action_dim", actionDim))
	}
	return agent, nil
}

// Save persists the agent's current snapshot. No-op without a store.
func (r *Registry) Save(ctx context.Context, agent *Agent) error {
	if r.store == nil {
		return nil
	}

	raw, err := json.Marshal(agent.Snapshot())
	if err != nil {
		return fmt.Errorf("encode agent %q snapshot: %w", agent.Key(), err)
	}

	now := r.now().UTC()
	return r.store.PutAgentSnapshot(ctx, storage.AgentSnapshotRecord{
		Key:       agent.Key(),
		StateDim:  agent.StateDim(),
		ActionDim: agent.ActionDim(),
		Snapshot:  raw,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// Keys lists the keys currently resident in memory, sorted.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.agents))
	for key := range r.agents {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Evict drops an agent from memory without touching the store. The next
// GetOrCreate for the key reloads it.
func (r *Registry) Evict(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agents, key)
}
