package policy

import (
	"math"
	"testing"
)

func TestReturnsAdvantagesUndiscounted(t *testing.T) {
	rewards := []float64{1, 1, 1}
	values := []float64{0, 0, 0}
	dones := []bool{false, false, true}

	returns, advantages, err := ReturnsAdvantages(rewards, values, 0, dones, 1, 1)
	if err != nil {
		t.Fatalf("ReturnsAdvantages: %v", err)
	}

	want := []float64{3, 2, 1}
	for i := range want {
		if math.Abs(returns[i]-want[i]) > 1e-12 {
			t.Errorf("returns[%d] = %v, want %v", i, returns[i], want[i])
		}
		if math.Abs(advantages[i]-want[i]) > 1e-12 {
			t.Errorf("advantages[%d] = %v, want %v", i, advantages[i], want[i])
		}
	}
}

func TestReturnsAdvantagesDiscounted(t *testing.T) {
	// gamma = lambda = 0.5, worked by hand:
	//   t=1: delta = 2 + 0.5*2 - 1 = 2,   adv = 2,   ret = 3
	//   t=0: delta = 1 + 0.5*1 - 0.5 = 1, adv = 1.5, ret = 2
	rewards := []float64{1, 2}
	values := []float64{0.5, 1}
	dones := []bool{false, false}

	returns, advantages, err := ReturnsAdvantages(rewards, values, 2, dones, 0.5, 0.5)
	if err != nil {
		t.Fatalf("ReturnsAdvantages: %v", err)
	}

	wantAdv := []float64{1.5, 2}
	wantRet := []float64{2, 3}
	for i := range wantAdv {
		if math.Abs(advantages[i]-wantAdv[i]) > 1e-12 {
			t.Errorf("advantages[%d] = %v, want %v", i, advantages[i], wantAdv[i])
		}
		if math.Abs(returns[i]-wantRet[i]) > 1e-12 {
			t.Errorf("returns[%d] = %v, want %v", i, returns[i], wantRet[i])
		}
	}
}

func TestReturnsAdvantagesDoneCutsRecursion(t *testing.T) {
	rewards := []float64{1, 1}
	values := []float64{0, 0}
	dones := []bool{true, false}

	returns, _, err := ReturnsAdvantages(rewards, values, 5, dones, 1, 1)
	if err != nil {
		t.Fatalf("ReturnsAdvantages: %v", err)
	}

	// The terminal flag at t=0 blocks both the bootstrap and the later
	// step's advantage from flowing back.
	if returns[0] != 1 {
		t.Errorf("returns[0] = %v, want 1", returns[0])
	}
	if returns[1] != 6 {
		t.Errorf("returns[1] = %v, want 6", returns[1])
	}
}

func TestReturnsAdvantagesLengthMismatch(t *testing.T) {
	_, _, err := ReturnsAdvantages([]float64{1, 2}, []float64{1}, 0, []bool{false, false}, 0.99, 0.95)
	if err == nil {
		t.Fatal("expected error for mismatched lengths")
	}
}
