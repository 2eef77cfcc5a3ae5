package agent

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/louisbranch/persona-engine/internal/policy"
	"github.com/louisbranch/persona-engine/internal/storage/sqlite"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig() policy.Config {
	cfg := policy.DefaultConfig()
	cfg.HiddenDim = 8
	cfg.Epochs = 1
	return cfg
}

func TestGetOrCreateReturnsSameAgent(t *testing.T) {
	registry := NewRegistry(testConfig(), nil, nil)
	ctx := context.Background()

	first, err := registry.GetOrCreate(ctx, "marlow", 20, 10)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	second, err := registry.GetOrCreate(ctx, "marlow", 20, 10)
	if err != nil {
		t.Fatalf("GetOrCreate again: %v", err)
	}
	if first != second {
		t.Error("same key returned distinct agents")
	}

	other, err := registry.GetOrCreate(ctx, "zora", 20, 10)
	if err != nil {
		t.Fatalf("GetOrCreate other: %v", err)
	}
	if other == first {
		t.Error("distinct keys share an agent")
	}
}

func TestGetOrCreateRejectsDimensionConflict(t *testing.T) {
	registry := NewRegistry(testConfig(), nil, nil)
	ctx := context.Background()

	if _, err := registry.GetOrCreate(ctx, "marlow", 20, 10); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if _, err := registry.GetOrCreate(ctx, "marlow", 20, 12); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("conflicting action dim: got %v, want ErrDimensionMismatch", err)
	}
	if _, err := registry.GetOrCreate(ctx, "marlow", 22, 10); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("conflicting state dim: got %v, want ErrDimensionMismatch", err)
	}

	if _, err := registry.GetOrCreate(ctx, "", 20, 10); err == nil {
		t.Error("empty key: expected error")
	}
}

func TestGetOrCreateConcurrent(t *testing.T) {
	registry := NewRegistry(testConfig(), nil, nil)
	ctx := context.Background()

	agents := make([]*Agent, 8)
	var group errgroup.Group
	for i := range agents {
		group.Go(func() error {
			got, err := registry.GetOrCreate(ctx, "marlow", 20, 10)
			if err != nil {
				return err
			}
			agents[i] = got
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		t.Fatalf("concurrent GetOrCreate: %v", err)
	}

	for i, got := range agents {
		if got != agents[0] {
			t.Fatalf("goroutine %d got a different agent", i)
		}
	}
}

func TestSaveAndReload(t *testing.T) {
	store, err := sqlite.Open(t.TempDir() + "/agents.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	registry := NewRegistry(testConfig(), store, nil)
	ctx := context.Background()

	agent, err := registry.GetOrCreate(ctx, "marlow", 4, 3)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	obs := []float64{0.1, 0.2, 0.3, 0.4}
	wantProbs, wantValue, err := probe(agent, obs)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}

	if err := registry.Save(ctx, agent); err != nil {
		t.Fatalf("Save: %v", err)
	}
	registry.Evict("marlow")

	reloaded, err := registry.GetOrCreate(ctx, "marlow", 4, 3)
	if err != nil {
		t.Fatalf("GetOrCreate after evict: %v", err)
	}
	if reloaded == agent {
		t.Fatal("evicted agent was not reloaded")
	}

	gotProbs, gotValue, err := probe(reloaded, obs)
	if err != nil {
		t.Fatalf("probe reloaded: %v", err)
	}
	if gotValue != wantValue {
		t.Errorf("value = %v, want %v", gotValue, wantValue)
	}
	for i := range wantProbs {
		if gotProbs[i] != wantProbs[i] {
			t.Errorf("probs[%d] = %v, want %v", i, gotProbs[i], wantProbs[i])
		}
	}
}

func TestReloadRejectsDimensionConflict(t *testing.T) {
	store, err := sqlite.Open(t.TempDir() + "/agents.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	registry := NewRegistry(testConfig(), store, nil)
	ctx := context.Background()

	agent, err := registry.GetOrCreate(ctx, "marlow", 4, 3)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if err := registry.Save(ctx, agent); err != nil {
		t.Fatalf("Save: %v", err)
	}
	registry.Evict("marlow")

	if _, err := registry.GetOrCreate(ctx, "marlow", 4, 5); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("stored dims conflict: got %v, want ErrDimensionMismatch", err)
	}
}

func probe(agent *Agent, obs []float64) ([]float64, float64, error) {
	_, _, value, probs, err := agent.Decide(obs, true, nil)
	return probs, value, err
}
