package policy

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// ErrBadDimension indicates a constructor or observation dimension is
// invalid for this model.
var ErrBadDimension = errors.New("dimension mismatch")

// ErrMissingSampler indicates a stochastic action selection was requested
// without a random source.
var ErrMissingSampler = errors.New("stochastic selection requires a random source")

// probFloor keeps every action probability strictly positive so log
// probabilities stay finite. Applied after the softmax, then renormalized.
const probFloor = 1e-8

// Parameter keys. Weights are out×in matrices; biases are out×1.
const (
	keyShared1Weight = "shared1.weight"
	keyShared1Bias   = "shared1.bias"
	keyShared2Weight = "shared2.weight"
	keyShared2Bias   = "shared2.bias"
	keyActorWeight   = "actor.weight"
	keyActorBias     = "actor.bias"
	keyCriticWeight  = "critic.weight"
	keyCriticBias    = "critic.bias"
)

// PolicyValueModel maps an encoded state to an action distribution and a
// value estimate. Two shared tanh layers feed an actor head (softmax over
// the action set) and a critic head (scalar value), so both outputs learn
// from the same features.
//
// The model itself carries no locking; the agent package serializes writers
// against readers.
type PolicyValueModel struct {
	stateDim  int
	actionDim int
	hiddenDim int
	params    map[string]*mat.Dense
}

// NewPolicyValueModel builds a model with seeded uniform initialization
// scaled by fan-in.
func NewPolicyValueModel(stateDim, actionDim, hiddenDim int, seed int64) (*PolicyValueModel, error) {
	if stateDim <= 0 || actionDim <= 0 || hiddenDim <= 0 {
		return nil, fmt.Errorf("%w: state %d, action %d, hidden %d", ErrBadDimension, stateDim, actionDim, hiddenDim)
	}

	rng := rand.New(rand.NewSource(seed))
	init := func(rows, cols, fanIn int) *mat.Dense {
		bound := 1.0 / math.Sqrt(float64(fanIn))
		data := make([]float64, rows*cols)
		for i := range data {
			data[i] = (rng.Float64()*2 - 1) * bound
		}
		return mat.NewDense(rows, cols, data)
	}

	return &PolicyValueModel{
		stateDim:  stateDim,
		actionDim: actionDim,
		hiddenDim: hiddenDim,
		params: map[string]*mat.Dense{
			keyShared1Weight: init(hiddenDim, stateDim, stateDim),
			keyShared1Bias:   init(hiddenDim, 1, stateDim),
			keyShared2Weight: init(hiddenDim, hiddenDim, hiddenDim),
			keyShared2Bias:   init(hiddenDim, 1, hiddenDim),
			keyActorWeight:   init(actionDim, hiddenDim, hiddenDim),
			keyActorBias:     init(actionDim, 1, hiddenDim),
			keyCriticWeight:  init(1, hiddenDim, hiddenDim),
			keyCriticBias:    init(1, 1, hiddenDim),
		},
	}, nil
}

// StateDim returns the expected observation length.
func (m *PolicyValueModel) StateDim() int { return m.stateDim }

// ActionDim returns the size of the action distribution.
func (m *PolicyValueModel) ActionDim() int { return m.actionDim }

// HiddenDim returns the shared layer width.
func (m *PolicyValueModel) HiddenDim() int { return m.hiddenDim }

// forwardPass caches intermediate activations for backpropagation.
type forwardPass struct {
	x     *mat.VecDense
	h1    *mat.VecDense
	h2    *mat.VecDense
	probs []float64
	value float64
}

func (m *PolicyValueModel) forward(obs []float64) (forwardPass, error) {
	if len(obs) != m.stateDim {
		return forwardPass{}, fmt.Errorf("%w: observation length %d, want %d", ErrBadDimension, len(obs), m.stateDim)
	}

	x := mat.NewVecDense(m.stateDim, append([]float64(nil), obs...))

	h1 := mat.NewVecDense(m.hiddenDim, nil)
	h1.MulVec(m.params[keyShared1Weight], x)
	h1.AddVec(h1, m.params[keyShared1Bias].ColView(0))
	tanhInPlace(h1)

	h2 := mat.NewVecDense(m.hiddenDim, nil)
	h2.MulVec(m.params[keyShared2Weight], h1)
	h2.AddVec(h2, m.params[keyShared2Bias].ColView(0))
	tanhInPlace(h2)

	logits := mat.NewVecDense(m.actionDim, nil)
	logits.MulVec(m.params[keyActorWeight], h2)
	logits.AddVec(logits, m.params[keyActorBias].ColView(0))

	value := mat.Dot(m.params[keyCriticWeight].RowView(0), h2) + m.params[keyCriticBias].At(0, 0)

	return forwardPass{
		x:     x,
		h1:    h1,
		h2:    h2,
		probs: softmax(logits.RawVector().Data),
		value: value,
	}, nil
}

// Forward evaluates the model: a categorical distribution over the action
// set (sums to one, every entry strictly positive) and a value estimate.
func (m *PolicyValueModel) Forward(obs []float64) (probs []float64, value float64, err error) {
	pass, err := m.forward(obs)
	if err != nil {
		return nil, 0, err
	}
	return pass.probs, pass.value, nil
}

// Decide selects an action: the argmax when deterministic, otherwise a
// categorical sample from the distribution. Returns the action, its log
// probability under the current policy, the value estimate, and the full
// distribution.
func (m *PolicyValueModel) Decide(obs []float64, deterministic bool, rng *rand.Rand) (action int, logProb, value float64, probs []float64, err error) {
	pass, err := m.forward(obs)
	if err != nil {
		return 0, 0, 0, nil, err
	}

	if deterministic {
		action = argmax(pass.probs)
	} else {
		if rng == nil {
			return 0, 0, 0, nil, ErrMissingSampler
		}
		action = sampleIndex(rng, pass.probs)
	}

	return action, math.Log(pass.probs[action]), pass.value, pass.probs, nil
}

// SelectAction is Decide without the value estimate.
func (m *PolicyValueModel) SelectAction(obs []float64, deterministic bool, rng *rand.Rand) (int, float64, []float64, error) {
	action, logProb, _, probs, err := m.Decide(obs, deterministic, rng)
	return action, logProb, probs, err
}

// Weights returns a deep copy of all parameters keyed by layer name.
func (m *PolicyValueModel) Weights() map[string]*mat.Dense {
	out := make(map[string]*mat.Dense, len(m.params))
	for key, param := range m.params {
		out[key] = mat.DenseCopyOf(param)
	}
	return out
}

// SetWeights replaces all parameters. Every expected key must be present
// with matching shape; any mismatch rejects the whole set, leaving the
// model unchanged.
func (m *PolicyValueModel) SetWeights(weights map[string]*mat.Dense) error {
	for _, key := range paramKeys() {
		src, ok := weights[key]
		if !ok {
			return fmt.Errorf("missing parameter %q", key)
		}
		dr, dc := m.params[key].Dims()
		sr, sc := src.Dims()
		if dr != sr || dc != sc {
			return fmt.Errorf("%w: parameter %q is %dx%d, want %dx%d", ErrBadDimension, key, sr, sc, dr, dc)
		}
	}
	for _, key := range paramKeys() {
		m.params[key].Copy(weights[key])
	}
	return nil
}

// paramKeys lists all parameter names in a stable order.
func paramKeys() []string {
	keys := []string{
		keyShared1Weight, keyShared1Bias,
		keyShared2Weight, keyShared2Bias,
		keyActorWeight, keyActorBias,
		keyCriticWeight, keyCriticBias,
	}
	sort.Strings(keys)
	return keys
}

func tanhInPlace(v *mat.VecDense) {
	data := v.RawVector().Data
	for i, x := range data {
		data[i] = math.Tanh(x)
	}
}

// softmax converts logits into a floored, renormalized simplex.
func softmax(logits []float64) []float64 {
	maxLogit := logits[0]
	for _, l := range logits[1:] {
		if l > maxLogit {
			maxLogit = l
		}
	}

	probs := make([]float64, len(logits))
	var sum float64
	for i, l := range logits {
		probs[i] = math.Exp(l - maxLogit)
		sum += probs[i]
	}

	var floored float64
	for i := range probs {
		probs[i] /= sum
		if probs[i] < probFloor {
			probs[i] = probFloor
		}
		floored += probs[i]
	}
	for i := range probs {
		probs[i] /= floored
	}
	return probs
}

func argmax(probs []float64) int {
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	return best
}

// sampleIndex draws an index proportionally to probs.
func sampleIndex(rng *rand.Rand, probs []float64) int {
	u := rng.Float64()
	var cum float64
	for i, p := range probs {
		cum += p
		if u < cum {
			return i
		}
	}
	return len(probs) - 1
}

// entropy computes the Shannon entropy of a distribution in nats.
func entropy(probs []float64) float64 {
	var h float64
	for _, p := range probs {
		h -= p * math.Log(p)
	}
	return h
}
