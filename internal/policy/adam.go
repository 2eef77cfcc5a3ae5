package policy

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Adam applies bias-corrected adaptive moment updates to a parameter set.
// Moment buffers are allocated lazily on the first step and keyed the same
// way as the model parameters.
type Adam struct {
	lr    float64
	beta1 float64
	beta2 float64
	eps   float64

	step int
	m    map[string]*mat.Dense
	v    map[string]*mat.Dense
}

// NewAdam returns an optimizer with the usual moment decay rates.
func NewAdam(lr float64) *Adam {
	return &Adam{
		lr:    lr,
		beta1: 0.9,
		beta2: 0.999,
		eps:   1e-8,
		m:     make(map[string]*mat.Dense),
		v:     make(map[string]*mat.Dense),
	}
}

// Step updates params in place from grads. Both maps must share keys and
// shapes.
func (a *Adam) Step(params, grads map[string]*mat.Dense) error {
	a.step++
	correction1 := 1 - math.Pow(a.beta1, float64(a.step))
	correction2 := 1 - math.Pow(a.beta2, float64(a.step))

	for key, param := range params {
		grad, ok := grads[key]
		if !ok {
			return fmt.Errorf("missing gradient for %q", key)
		}
		rows, cols := param.Dims()
		gr, gc := grad.Dims()
		if rows != gr || cols != gc {
			return fmt.Errorf("%w: gradient %q is %dx%d, want %dx%d", ErrBadDimension, key, gr, gc, rows, cols)
		}

		mBuf, ok := a.m[key]
		if !ok {
			mBuf = mat.NewDense(rows, cols, nil)
			a.m[key] = mBuf
			a.v[key] = mat.NewDense(rows, cols, nil)
		}
		vBuf := a.v[key]

		pData := param.RawMatrix().Data
		gData := grad.RawMatrix().Data
		mData := mBuf.RawMatrix().Data
		vData := vBuf.RawMatrix().Data
		for i, g := range gData {
			mData[i] = a.beta1*mData[i] + (1-a.beta1)*g
			vData[i] = a.beta2*vData[i] + (1-a.beta2)*g*g

			mHat := mData[i] / correction1
			vHat := vData[i] / correction2
			pData[i] -= a.lr * mHat / (math.Sqrt(vHat) + a.eps)
		}
	}
	return nil
}

// AdamState is the serializable optimizer state, weights in row-major order.
type AdamState struct {
	Step int                  `json:"step"`
	M    map[string][]float64 `json:"m"`
	V    map[string][]float64 `json:"v"`
}

// State snapshots the optimizer for persistence.
func (a *Adam) State() AdamState {
	state := AdamState{
		Step: a.step,
		M:    make(map[string][]float64, len(a.m)),
		V:    make(map[string][]float64, len(a.v)),
	}
	for key, buf := range a.m {
		state.M[key] = append([]float64(nil), buf.RawMatrix().Data...)
	}
	for key, buf := range a.v {
		state.V[key] = append([]float64(nil), buf.RawMatrix().Data...)
	}
	return state
}

// SetState restores a snapshot taken by State. Shapes come from params so a
// snapshot can only be applied to a matching model.
func (a *Adam) SetState(state AdamState, params map[string]*mat.Dense) error {
	m := make(map[string]*mat.Dense, len(state.M))
	v := make(map[string]*mat.Dense, len(state.V))
	for key, data := range state.M {
		param, ok := params[key]
		if !ok {
			return fmt.Errorf("unknown optimizer parameter %q", key)
		}
		rows, cols := param.Dims()
		if len(data) != rows*cols {
			return fmt.Errorf("%w: optimizer moment %q has %d values, want %d", ErrBadDimension, key, len(data), rows*cols)
		}
		vData, ok := state.V[key]
		if !ok || len(vData) != rows*cols {
			return fmt.Errorf("%w: optimizer variance %q has %d values, want %d", ErrBadDimension, key, len(vData), rows*cols)
		}
		m[key] = mat.NewDense(rows, cols, append([]float64(nil), data...))
		v[key] = mat.NewDense(rows, cols, append([]float64(nil), vData...))
	}
	a.step = state.Step
	a.m = m
	a.v = v
	return nil
}
