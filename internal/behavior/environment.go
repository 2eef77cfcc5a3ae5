package behavior

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/louisbranch/persona-engine/internal/character"
)

// ErrNotActive indicates Step was called before Reset or after termination.
var ErrNotActive = errors.New("environment is not active; call Reset first")

// ErrActionOutOfRange indicates the action index is outside the action set.
// The environment state is unchanged when this is returned.
var ErrActionOutOfRange = errors.New("action index is outside the action set")

// DefaultMaxSteps is the episode horizon used when the config leaves it zero.
const DefaultMaxSteps = 100

// Success probabilities are clamped to this band so no action becomes a
// guaranteed outcome.
const (
	minSuccessProb = 0.1
	maxSuccessProb = 0.9
)

type envPhase int

const (
	phaseFresh envPhase = iota
	phaseActive
	phaseTerminated
)

// Preset overrides parts of the initial episode state. Scenario scripts
// produce presets; nil fields keep the profile baselines.
type Preset struct {
	Threat      *float64
	Opportunity *float64
	Social      *float64
	Time        *float64

	Joy     *float64
	Anger   *float64
	Sadness *float64
	Fear    *float64
}

func (p *Preset) apply(state *EpisodicState) {
	if p == nil {
		return
	}
	assign := func(dst *float64, src *float64) {
		if src != nil {
			*dst = clampUnit(*src)
		}
	}
	assign(&state.Pressures.Threat, p.Threat)
	assign(&state.Pressures.Opportunity, p.Opportunity)
	assign(&state.Pressures.Social, p.Social)
	assign(&state.Pressures.Time, p.Time)
	assign(&state.Emotions.Joy, p.Joy)
	assign(&state.Emotions.Anger, p.Anger)
	assign(&state.Emotions.Sadness, p.Sadness)
	assign(&state.Emotions.Fear, p.Fear)
}

// EnvConfig configures an environment instance.
type EnvConfig struct {
	// MaxSteps is the episode horizon. Zero means DefaultMaxSteps.
	MaxSteps int
	// Seed drives all stochastic outcome draws and pressure drift.
	Seed int64
	// Preset optionally overrides initial pressures and emotions at Reset.
	Preset *Preset
}

// StepInfo carries the qualitative result of one step.
type StepInfo struct {
	Action  string
	Outcome string
	Success bool
}

// StepResult bundles the observable consequences of one step.
type StepResult struct {
	Obs    []float64
	Reward float64
	Done   bool
	Info   StepInfo
}

// Environment is the single-character episodic state machine.
type Environment struct {
	profile  character.Profile
	actions  []ActionSpec
	encoder  StateEncoder
	maxSteps int
	preset   *Preset
	rng      *rand.Rand

	phase envPhase
	state *EpisodicState
}

// NewEnvironment builds a fresh environment over the base action set.
func NewEnvironment(profile character.Profile, cfg EnvConfig) *Environment {
	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	return &Environment{
		profile:  profile,
		actions:  BaseActions(),
		maxSteps: maxSteps,
		preset:   cfg.Preset,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		phase:    phaseFresh,
	}
}

// StateDim returns the encoded observation dimension.
func (e *Environment) StateDim() int { return e.encoder.Dim() }

// ActionDim returns the size of the action set.
func (e *Environment) ActionDim() int { return len(e.actions) }

// Actions exposes the action set for labeling purposes.
func (e *Environment) Actions() []ActionSpec { return e.actions }

// Profile returns the profile this environment was built for.
func (e *Environment) Profile() character.Profile { return e.profile }

// StateCopy returns a snapshot of the episode state, or a zero value before
// the first Reset.
func (e *Environment) StateCopy() EpisodicState {
	if e.state == nil {
		return EpisodicState{}
	}
	return e.state.Clone()
}

// Reset (re)initializes the episode from profile baselines and returns the
// initial observation. Valid from any phase.
func (e *Environment) Reset() []float64 {
	e.state = newEpisodicState(e.profile)
	e.preset.apply(e.state)
	e.phase = phaseActive
	return e.encoder.Encode(e.profile, e.state)
}

// Step applies one action. It fails with ErrNotActive outside the active
// phase and ErrActionOutOfRange for a bad index; the latter leaves the
// episode untouched.
func (e *Environment) Step(action int) (StepResult, error) {
	if e.phase != phaseActive {
		return StepResult{}, ErrNotActive
	}
	if action < 0 || action >= len(e.actions) {
		return StepResult{}, fmt.Errorf("%w: %d of %d", ErrActionOutOfRange, action, len(e.actions))
	}

	spec := e.actions[action]
	e.state.Step++

	success, reward, label := resolveAction(e.rng, spec, e.profile, e.state.Pressures)
	applyOutcome(e.state, spec, success)
	driftPressures(e.state, e.rng)

	e.state.History = append(e.state.History, ActionRecord{
		Step:    e.state.Step,
		Action:  spec.Name,
		Outcome: label,
		Reward:  reward,
	})

	done := e.state.Step >= e.maxSteps || e.state.Health <= 0
	if done {
		e.phase = phaseTerminated
	}

	return StepResult{
		Obs:    e.encoder.Encode(e.profile, e.state),
		Reward: reward,
		Done:   done,
		Info:   StepInfo{Action: spec.Name, Outcome: label, Success: success},
	}, nil
}

// resolveAction draws the outcome branch for one action: baseline success
// probability adjusted by the action's personality terms, clamped, then a
// stochastic draw picks the branch. The trait affinity adjustment applies to
// the reward of either branch.
func resolveAction(rng *rand.Rand, spec ActionSpec, profile character.Profile, pressures Pressures) (success bool, reward float64, label string) {
	prob := 0.5
	if spec.Chance != nil {
		prob += spec.Chance(profile, pressures)
	}
	if prob < minSuccessProb {
		prob = minSuccessProb
	}
	if prob > maxSuccessProb {
		prob = maxSuccessProb
	}

	success = rng.Float64() < prob
	if success {
		reward, label = spec.SuccessReward, spec.SuccessLabel
	} else {
		reward, label = spec.FailureReward, spec.FailureLabel
	}
	if spec.Affinity != nil {
		reward += spec.Affinity(profile)
	}
	return success, reward, label
}

// applyOutcome mutates the episode state for one resolved action: the common
// polarity adjustments first, then the action's targeted effects.
func applyOutcome(state *EpisodicState, spec ActionSpec, success bool) {
	if success {
		state.Happiness = clampUnit(state.Happiness + 0.1)
		state.Reputation = clampUnit(state.Reputation + 0.05)
		state.Stress = clampUnit(state.Stress - 0.05)
		state.Emotions.Joy = clampUnit(state.Emotions.Joy + 0.1)
		state.Emotions.Fear = clampUnit(state.Emotions.Fear - 0.05)
	} else {
		state.Energy = clampFloor(state.Energy-0.1, 0.1)
		state.Happiness = clampFloor(state.Happiness-0.1, 0.1)
		state.Stress = clampUnit(state.Stress + 0.1)
		state.Emotions.Sadness = clampUnit(state.Emotions.Sadness + 0.1)
		state.Emotions.Joy = clampUnit(state.Emotions.Joy - 0.05)
	}

	effects := spec.SuccessEffects
	if !success {
		effects = spec.FailureEffects
	}
	state.Trust = clampUnit(state.Trust + effects.Trust)
	state.Reputation = clampUnit(state.Reputation + effects.Reputation)
	state.Wealth = clampUnit(state.Wealth + effects.Wealth)
	if effects.Health != 0 {
		state.Health = clampUnit(state.Health + effects.Health)
	}
	state.Emotions.Joy = clampUnit(state.Emotions.Joy + effects.Joy)
	state.Emotions.Anger = clampUnit(state.Emotions.Anger + effects.Anger)
	state.Emotions.Sadness = clampUnit(state.Emotions.Sadness + effects.Sadness)
	state.Emotions.Fear = clampUnit(state.Emotions.Fear + effects.Fear)
}

// driftPressures performs the bounded random walk on the environment
// pressures. Time pressure never decreases.
func driftPressures(state *EpisodicState, rng *rand.Rand) {
	walk := func(v float64) float64 {
		return clampUnit(v + (rng.Float64()*0.2 - 0.1))
	}
	state.Pressures.Threat = walk(state.Pressures.Threat)
	state.Pressures.Opportunity = walk(state.Pressures.Opportunity)
	state.Pressures.Social = walk(state.Pressures.Social)
	state.Pressures.Time = clampUnit(state.Pressures.Time + 0.05)
}
