package policy

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Snapshot is the persistent form of a trained model and its optimizer,
// weights flattened row-major so the whole thing round-trips through JSON.
type Snapshot struct {
	StateDim  int                  `json:"state_dim"`
	ActionDim int                  `json:"action_dim"`
	HiddenDim int                  `json:"hidden_dim"`
	Weights   map[string][]float64 `json:"weights"`
	Shapes    map[string][2]int    `json:"shapes"`
	Optimizer AdamState            `json:"optimizer"`
}

// TakeSnapshot captures the updater's model and optimizer state.
func TakeSnapshot(u *Updater) Snapshot {
	model := u.Model()
	snap := Snapshot{
		StateDim:  model.stateDim,
		ActionDim: model.actionDim,
		HiddenDim: model.hiddenDim,
		Weights:   make(map[string][]float64, len(model.params)),
		Shapes:    make(map[string][2]int, len(model.params)),
		Optimizer: u.Optimizer().State(),
	}
	for key, param := range model.params {
		rows, cols := param.Dims()
		snap.Weights[key] = append([]float64(nil), param.RawMatrix().Data...)
		snap.Shapes[key] = [2]int{rows, cols}
	}
	return snap
}

// Restore loads a snapshot into the updater. The snapshot's dimensions must
// match the model's; a mismatch leaves the updater untouched.
func Restore(u *Updater, snap Snapshot) error {
	model := u.Model()
	if snap.StateDim != model.stateDim || snap.ActionDim != model.actionDim || snap.HiddenDim != model.hiddenDim {
		return fmt.Errorf("%w: snapshot is %d/%d/%d, model is %d/%d/%d",
			ErrBadDimension,
			snap.StateDim, snap.ActionDim, snap.HiddenDim,
			model.stateDim, model.actionDim, model.hiddenDim)
	}

	weights := make(map[string]*mat.Dense, len(snap.Weights))
	for key, data := range snap.Weights {
		shape, ok := snap.Shapes[key]
		if !ok {
			return fmt.Errorf("snapshot weight %q has no shape", key)
		}
		if shape[0]*shape[1] != len(data) {
			return fmt.Errorf("%w: snapshot weight %q has %d values for shape %dx%d", ErrBadDimension, key, len(data), shape[0], shape[1])
		}
		weights[key] = mat.NewDense(shape[0], shape[1], append([]float64(nil), data...))
	}

	if err := model.SetWeights(weights); err != nil {
		return err
	}
	return u.Optimizer().SetState(snap.Optimizer, model.params)
}
