package policy

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestSnapshotRoundTrip(t *testing.T) {
	model, err := NewPolicyValueModel(4, 3, 8, 13)
	if err != nil {
		t.Fatalf("NewPolicyValueModel: %v", err)
	}
	cfg := DefaultConfig()
	cfg.Epochs = 2
	updater := NewUpdater(model, cfg, nil)

	// Run one real update so the optimizer carries non-zero moments.
	traj := recordTrajectory(t, model, 4)
	returns, advantages, err := ReturnsAdvantages(traj.Rewards(), traj.Values(), 0, traj.Dones(), cfg.Gamma, cfg.Lambda)
	if err != nil {
		t.Fatalf("ReturnsAdvantages: %v", err)
	}
	if _, err := updater.Update(traj, returns, advantages); err != nil {
		t.Fatalf("Update: %v", err)
	}

	raw, err := json.Marshal(TakeSnapshot(updater))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	restoredModel, err := NewPolicyValueModel(4, 3, 8, 99)
	if err != nil {
		t.Fatalf("NewPolicyValueModel: %v", err)
	}
	restored := NewUpdater(restoredModel, cfg, nil)
	if err := Restore(restored, snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	obs := testObs(4)
	wantProbs, wantValue, err := model.Forward(obs)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	gotProbs, gotValue, err := restoredModel.Forward(obs)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if gotValue != wantValue {
		t.Errorf("value = %v, want %v", gotValue, wantValue)
	}
	for i := range wantProbs {
		if gotProbs[i] != wantProbs[i] {
			t.Errorf("probs[%d] = %v, want %v", i, gotProbs[i], wantProbs[i])
		}
	}

	if restored.Optimizer().State().Step != updater.Optimizer().State().Step {
		t.Errorf("optimizer step = %d, want %d",
			restored.Optimizer().State().Step, updater.Optimizer().State().Step)
	}
}

func TestRestoreRejectsDimensionMismatch(t *testing.T) {
	model, err := NewPolicyValueModel(4, 3, 8, 13)
	if err != nil {
		t.Fatalf("NewPolicyValueModel: %v", err)
	}
	snap := TakeSnapshot(NewUpdater(model, DefaultConfig(), nil))

	otherModel, err := NewPolicyValueModel(4, 5, 8, 13)
	if err != nil {
		t.Fatalf("NewPolicyValueModel: %v", err)
	}
	other := NewUpdater(otherModel, DefaultConfig(), nil)

	if err := Restore(other, snap); !errors.Is(err, ErrBadDimension) {
		t.Errorf("Restore with mismatched action dim: got %v, want ErrBadDimension", err)
	}
}
