package policy

// Config carries the training hyperparameters. DefaultConfig matches the
// values the engine was tuned with; callers override individual fields.
type Config struct {
	// Gamma is the reward discount factor.
	Gamma float64
	// Lambda is the GAE smoothing factor.
	Lambda float64
	// LearningRate is the Adam step size.
	LearningRate float64
	// ClipRatio bounds the policy probability ratio per update.
	ClipRatio float64
	// ValueCoef weights the value loss in the total loss.
	ValueCoef float64
	// EntropyCoef weights the entropy bonus in the total loss.
	EntropyCoef float64
	// MaxGradNorm caps the global gradient norm per step.
	MaxGradNorm float64
	// Epochs is the number of passes over one collected batch.
	Epochs int
	// HiddenDim is the width of the two shared layers.
	HiddenDim int
	// NormalizeAdvantages standardizes per-batch advantages before the
	// update passes. Off by default: raw advantages match the engine's
	// reference behavior, so normalization is an explicit opt-in.
	NormalizeAdvantages bool
}

// DefaultConfig returns the engine's reference hyperparameters.
func DefaultConfig() Config {
	return Config{
		Gamma:        0.99,
		Lambda:       0.95,
		LearningRate: 3e-4,
		ClipRatio:    0.2,
		ValueCoef:    0.5,
		EntropyCoef:  0.01,
		MaxGradNorm:  0.5,
		Epochs:       10,
		HiddenDim:    64,
	}
}
