package policy

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// ErrEmptyBatch indicates an update was requested with no transitions.
var ErrEmptyBatch = errors.New("empty trajectory")

// Stats summarizes one Update call, averaged over the epochs that ran.
// SkippedEpochs counts passes abandoned because a non-finite value surfaced;
// a fully skipped update leaves the model untouched.
type Stats struct {
	PolicyLoss    float64 `json:"policy_loss"`
	ValueLoss     float64 `json:"value_loss"`
	Entropy       float64 `json:"entropy"`
	ClipFraction  float64 `json:"clip_fraction"`
	GradNorm      float64 `json:"grad_norm"`
	Epochs        int     `json:"epochs"`
	SkippedEpochs int     `json:"skipped_epochs"`
}

// Updater fits a model to collected trajectories with the clipped surrogate
// objective. Not safe for concurrent use; the agent package serializes
// updates.
type Updater struct {
	model  *PolicyValueModel
	optim  *Adam
	cfg    Config
	logger *zap.Logger
}

// NewUpdater wires a model to a fresh optimizer.
func NewUpdater(model *PolicyValueModel, cfg Config, logger *zap.Logger) *Updater {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Updater{
		model:  model,
		optim:  NewAdam(cfg.LearningRate),
		cfg:    cfg,
		logger: logger,
	}
}

// Model returns the model being optimized.
func (u *Updater) Model() *PolicyValueModel { return u.model }

// Optimizer returns the optimizer, for state persistence.
func (u *Updater) Optimizer() *Adam { return u.optim }

// Update runs the configured number of epochs over one batch. Returns and
// advantages come from ReturnsAdvantages and must align with the trajectory.
// Each epoch re-evaluates the batch under the current parameters, so the
// probability ratios drift away from one as the passes accumulate.
func (u *Updater) Update(traj Trajectory, returns, advantages []float64) (Stats, error) {
	n := traj.Len()
	if n == 0 {
		return Stats{}, ErrEmptyBatch
	}
	if len(returns) != n || len(advantages) != n {
		return Stats{}, fmt.Errorf("%w: %d steps, %d returns, %d advantages", ErrBadDimension, n, len(returns), len(advantages))
	}

	if u.cfg.NormalizeAdvantages {
		advantages = normalize(advantages)
	}
	for _, adv := range advantages {
		if !isFinite(adv) {
			u.logger.Warn("non-finite advantage, skipping update",
				zap.Int("batch_size", n))
			return Stats{SkippedEpochs: u.cfg.Epochs}, nil
		}
	}

	var stats Stats
	for epoch := 0; epoch < u.cfg.Epochs; epoch++ {
		epochStats, err := u.epoch(traj, returns, advantages)
		if err != nil {
			return stats, err
		}
		if epochStats == nil {
			u.logger.Warn("non-finite epoch, skipping",
				zap.Int("epoch", epoch),
				zap.Int("batch_size", n))
			stats.SkippedEpochs++
			continue
		}
		stats.PolicyLoss += epochStats.PolicyLoss
		stats.ValueLoss += epochStats.ValueLoss
		stats.Entropy += epochStats.Entropy
		stats.ClipFraction += epochStats.ClipFraction
		stats.GradNorm += epochStats.GradNorm
		stats.Epochs++
	}

	if stats.Epochs > 0 {
		div := float64(stats.Epochs)
		stats.PolicyLoss /= div
		stats.ValueLoss /= div
		stats.Entropy /= div
		stats.ClipFraction /= div
		stats.GradNorm /= div
	}
	return stats, nil
}

// epoch runs one full-batch gradient step. A nil result with nil error means
// the pass hit a non-finite value and was abandoned before touching the
// parameters.
func (u *Updater) epoch(traj Trajectory, returns, advantages []float64) (*Stats, error) {
	n := traj.Len()
	invN := 1.0 / float64(n)

	grads := u.zeroGrads()
	var epochStats Stats

	dz := mat.NewVecDense(u.model.actionDim, nil)
	dh2 := mat.NewVecDense(u.model.hiddenDim, nil)
	dh1 := mat.NewVecDense(u.model.hiddenDim, nil)
	scratch := mat.NewVecDense(u.model.hiddenDim, nil)

	for i, step := range traj.Steps {
		pass, err := u.model.forward(step.Obs)
		if err != nil {
			return nil, err
		}
		if step.Action < 0 || step.Action >= u.model.actionDim {
			return nil, fmt.Errorf("%w: action %d, distribution size %d", ErrBadDimension, step.Action, u.model.actionDim)
		}

		adv := advantages[i]
		logProb := math.Log(pass.probs[step.Action])
		ratio := math.Exp(logProb - step.LogProb)
		surrogate, active := clippedSurrogate(ratio, adv, u.cfg.ClipRatio)
		h := entropy(pass.probs)
		valueErr := pass.value - returns[i]

		if !isFinite(ratio) || !isFinite(surrogate) || !isFinite(valueErr) || !isFinite(h) {
			return nil, nil
		}

		epochStats.PolicyLoss += -surrogate * invN
		epochStats.ValueLoss += valueErr * valueErr * invN
		epochStats.Entropy += h * invN
		if math.Abs(ratio-1) > u.cfg.ClipRatio {
			epochStats.ClipFraction += invN
		}

		// Gradient at the actor logits. The clipped branch contributes
		// no policy gradient; the entropy bonus always does.
		var gpol float64
		if active {
			gpol = ratio * adv
		}
		for k, p := range pass.probs {
			indicator := 0.0
			if k == step.Action {
				indicator = 1.0
			}
			policyTerm := gpol * (p - indicator)
			entropyTerm := u.cfg.EntropyCoef * p * (math.Log(p) + h)
			dz.SetVec(k, (policyTerm+entropyTerm)*invN)
		}

		// Gradient at the critic output.
		dv := u.cfg.ValueCoef * 2 * valueErr * invN

		grads[keyActorWeight].RankOne(grads[keyActorWeight], 1, dz, pass.h2)
		addVecInPlace(grads[keyActorBias], dz)
		grads[keyCriticWeight].RankOne(grads[keyCriticWeight], dv, ones(1), pass.h2)
		grads[keyCriticBias].Set(0, 0, grads[keyCriticBias].At(0, 0)+dv)

		dh2.MulVec(u.model.params[keyActorWeight].T(), dz)
		scratch.ScaleVec(dv, u.model.params[keyCriticWeight].RowView(0))
		dh2.AddVec(dh2, scratch)
		tanhBackward(dh2, pass.h2)

		grads[keyShared2Weight].RankOne(grads[keyShared2Weight], 1, dh2, pass.h1)
		addVecInPlace(grads[keyShared2Bias], dh2)

		dh1.MulVec(u.model.params[keyShared2Weight].T(), dh2)
		tanhBackward(dh1, pass.h1)

		grads[keyShared1Weight].RankOne(grads[keyShared1Weight], 1, dh1, pass.x)
		addVecInPlace(grads[keyShared1Bias], dh1)
	}

	norm := clipGradNorm(grads, u.cfg.MaxGradNorm)
	if !isFinite(norm) {
		return nil, nil
	}
	epochStats.GradNorm = norm

	if err := u.optim.Step(u.model.params, grads); err != nil {
		return nil, err
	}
	return &epochStats, nil
}

// clippedSurrogate evaluates min(ratio*adv, clip(ratio)*adv) and reports
// whether the unclipped branch carries the gradient.
func clippedSurrogate(ratio, adv, clip float64) (float64, bool) {
	clipped := ratio
	if clipped < 1-clip {
		clipped = 1 - clip
	} else if clipped > 1+clip {
		clipped = 1 + clip
	}

	surr1 := ratio * adv
	surr2 := clipped * adv
	if surr1 <= surr2 {
		return surr1, true
	}
	return surr2, false
}

func (u *Updater) zeroGrads() map[string]*mat.Dense {
	grads := make(map[string]*mat.Dense, len(u.model.params))
	for key, param := range u.model.params {
		rows, cols := param.Dims()
		grads[key] = mat.NewDense(rows, cols, nil)
	}
	return grads
}

// clipGradNorm rescales all gradients so their global L2 norm stays within
// maxNorm, returning the pre-clip norm.
func clipGradNorm(grads map[string]*mat.Dense, maxNorm float64) float64 {
	var sumSq float64
	for _, grad := range grads {
		for _, g := range grad.RawMatrix().Data {
			sumSq += g * g
		}
	}
	norm := math.Sqrt(sumSq)
	if maxNorm > 0 && norm > maxNorm {
		scale := maxNorm / norm
		for _, grad := range grads {
			data := grad.RawMatrix().Data
			for i := range data {
				data[i] *= scale
			}
		}
	}
	return norm
}

// tanhBackward multiplies an upstream gradient by the tanh derivative at the
// given activation, in place.
func tanhBackward(grad, activation *mat.VecDense) {
	gData := grad.RawVector().Data
	aData := activation.RawVector().Data
	for i := range gData {
		gData[i] *= 1 - aData[i]*aData[i]
	}
}

// addVecInPlace accumulates a column vector into an out×1 gradient.
func addVecInPlace(dst *mat.Dense, src *mat.VecDense) {
	data := dst.RawMatrix().Data
	sData := src.RawVector().Data
	for i := range data {
		data[i] += sData[i]
	}
}

func ones(n int) *mat.VecDense {
	data := make([]float64, n)
	for i := range data {
		data[i] = 1
	}
	return mat.NewVecDense(n, data)
}

func normalize(values []float64) []float64 {
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	std := math.Sqrt(variance)

	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = (v - mean) / (std + 1e-8)
	}
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
