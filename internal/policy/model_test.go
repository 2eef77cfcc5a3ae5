package policy

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func testObs(dim int) []float64 {
	obs := make([]float64, dim)
	for i := range obs {
		obs[i] = 0.1 * float64(i+1)
	}
	return obs
}

func TestForwardDistribution(t *testing.T) {
	model, err := NewPolicyValueModel(4, 3, 8, 1)
	if err != nil {
		t.Fatalf("NewPolicyValueModel: %v", err)
	}

	probs, _, err := model.Forward(testObs(4))
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if len(probs) != 3 {
		t.Fatalf("got %d probabilities, want 3", len(probs))
	}

	var sum float64
	for i, p := range probs {
		if p <= 0 {
			t.Errorf("probs[%d] = %v, want > 0", i, p)
		}
		sum += p
	}
	if math.Abs(sum-1) > 1e-5 {
		t.Errorf("probabilities sum to %v, want 1", sum)
	}
}

func TestForwardDimensionMismatch(t *testing.T) {
	model, err := NewPolicyValueModel(4, 3, 8, 1)
	if err != nil {
		t.Fatalf("NewPolicyValueModel: %v", err)
	}

	if _, _, err := model.Forward(testObs(5)); !errors.Is(err, ErrBadDimension) {
		t.Errorf("Forward with wrong length: got %v, want ErrBadDimension", err)
	}
}

func TestNewPolicyValueModelValidation(t *testing.T) {
	tests := []struct {
		name    string
		state   int
		action  int
		hidden  int
		wantErr bool
	}{
		{"valid", 4, 3, 8, false},
		{"zero state", 0, 3, 8, true},
		{"negative action", 4, -1, 8, true},
		{"zero hidden", 4, 3, 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewPolicyValueModel(tc.state, tc.action, tc.hidden, 1)
			if tc.wantErr && !errors.Is(err, ErrBadDimension) {
				t.Errorf("got %v, want ErrBadDimension", err)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestDecideDeterministic(t *testing.T) {
	model, err := NewPolicyValueModel(4, 3, 8, 7)
	if err != nil {
		t.Fatalf("NewPolicyValueModel: %v", err)
	}
	obs := testObs(4)

	action, logProb, _, probs, err := model.Decide(obs, true, nil)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}

	for i, p := range probs {
		if p > probs[action] {
			t.Errorf("action %d has probability %v, but action %d has %v", action, probs[action], i, p)
		}
	}
	if math.Abs(logProb-math.Log(probs[action])) > 1e-12 {
		t.Errorf("logProb = %v, want log(%v)", logProb, probs[action])
	}

	again, _, _, _, err := model.Decide(obs, true, nil)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if again != action {
		t.Errorf("deterministic selection changed: %d then %d", action, again)
	}
}

func TestDecideStochastic(t *testing.T) {
	model, err := NewPolicyValueModel(4, 3, 8, 7)
	if err != nil {
		t.Fatalf("NewPolicyValueModel: %v", err)
	}
	obs := testObs(4)

	if _, _, _, _, err := model.Decide(obs, false, nil); !errors.Is(err, ErrMissingSampler) {
		t.Errorf("Decide without rng: got %v, want ErrMissingSampler", err)
	}

	first := rand.New(rand.NewSource(42))
	second := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		a, _, _, _, err := model.Decide(obs, false, first)
		if err != nil {
			t.Fatalf("Decide: %v", err)
		}
		b, _, _, _, err := model.Decide(obs, false, second)
		if err != nil {
			t.Fatalf("Decide: %v", err)
		}
		if a != b {
			t.Fatalf("draw %d diverged with identical seeds: %d vs %d", i, a, b)
		}
	}
}

func TestWeightsRoundTrip(t *testing.T) {
	source, err := NewPolicyValueModel(4, 3, 8, 11)
	if err != nil {
		t.Fatalf("NewPolicyValueModel: %v", err)
	}
	target, err := NewPolicyValueModel(4, 3, 8, 99)
	if err != nil {
		t.Fatalf("NewPolicyValueModel: %v", err)
	}

	obs := testObs(4)
	wantProbs, wantValue, err := source.Forward(obs)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}

	if err := target.SetWeights(source.Weights()); err != nil {
		t.Fatalf("SetWeights: %v", err)
	}

	gotProbs, gotValue, err := target.Forward(obs)
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
}

func TestWeightsReturnsCopies(t *testing.T) {
	model, err := NewPolicyValueModel(4, 3, 8, 11)
	if err != nil {
		t.Fatalf("NewPolicyValueModel: %v", err)
	}

	obs := testObs(4)
	before, _, err := model.Forward(obs)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}

	weights := model.Weights()
	weights[keyActorBias].Set(0, 0, 1e6)

	after, _, err := model.Forward(obs)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatal("mutating an exported weight copy changed the model")
		}
	}
}

func TestSetWeightsRejectsBadShape(t *testing.T) {
	model, err := NewPolicyValueModel(4, 3, 8, 11)
	if err != nil {
		t.Fatalf("NewPolicyValueModel: %v", err)
	}
	other, err := NewPolicyValueModel(4, 3, 16, 11)
	if err != nil {
		t.Fatalf("NewPolicyValueModel: %v", err)
	}

	if err := model.SetWeights(other.Weights()); !errors.Is(err, ErrBadDimension) {
		t.Errorf("SetWeights with mismatched hidden width: got %v, want ErrBadDimension", err)
	}

	weights := model.Weights()
	delete(weights, keyCriticBias)
	if err := model.SetWeights(weights); err == nil {
		t.Error("SetWeights with missing key: expected error")
	}
}
