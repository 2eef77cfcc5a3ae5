package behavior

import (
	"fmt"
	"math/rand"

	"github.com/louisbranch/persona-engine/internal/character"
)

// Coupling applies the cross-character consequences of one resolved action.
// It receives copies of both episode states and returns updated copies plus
// a reward multiplier and an optional annotation appended to the outcome
// label. Couplings never reach into shared structures: all cross-influence
// is explicit in the returned values.
type Coupling func(action ActionSpec, success bool, actor, partner EpisodicState, partnerProfile character.Profile) (EpisodicState, EpisodicState, float64, string)

// PairEnvironment runs an episode over two profiles, alternating which one
// is active each step. The same fresh → active → terminated machine applies;
// Step resolves the action for the active side and couples its consequences
// into the passive side.
type PairEnvironment struct {
	profiles [2]character.Profile
	actions  []ActionSpec
	couple   Coupling
	encoder  StateEncoder
	maxSteps int
	preset   *Preset
	rng      *rand.Rand

	phase  envPhase
	states [2]*EpisodicState
	turn   int
	step   int
}

// NewInteractionEnvironment builds a pairwise social environment between an
// initiator and a partner over the interaction action set.
func NewInteractionEnvironment(initiator, partner character.Profile, cfg EnvConfig) *PairEnvironment {
	return newPairEnvironment(initiator, partner, InteractionActions(), interactionCoupling, cfg)
}

// NewDuelEnvironment builds an adversarial environment between two rivals
// over the duel action set. Duels run to the horizon; neither side's health
// rule terminates early.
func NewDuelEnvironment(left, right character.Profile, cfg EnvConfig) *PairEnvironment {
	return newPairEnvironment(left, right, DuelActions(), duelCoupling, cfg)
}

func newPairEnvironment(first, second character.Profile, actions []ActionSpec, couple Coupling, cfg EnvConfig) *PairEnvironment {
	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	return &PairEnvironment{
		profiles: [2]character.Profile{first, second},
		actions:  actions,
		couple:   couple,
		maxSteps: maxSteps,
		preset:   cfg.Preset,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		phase:    phaseFresh,
	}
}

// StateDim returns the encoded observation dimension.
func (e *PairEnvironment) StateDim() int { return e.encoder.Dim() }

// ActionDim returns the size of the action set.
func (e *PairEnvironment) ActionDim() int { return len(e.actions) }

// Actions exposes the action set for labeling purposes.
func (e *PairEnvironment) Actions() []ActionSpec { return e.actions }

// ActiveIndex reports which profile (0 or 1) acts on the next Step.
func (e *PairEnvironment) ActiveIndex() int { return e.turn }

// StateCopy returns a snapshot of one side's episode state.
func (e *PairEnvironment) StateCopy(side int) EpisodicState {
	if side < 0 || side > 1 || e.states[side] == nil {
		return EpisodicState{}
	}
	return e.states[side].Clone()
}

// Reset reinitializes both sides and returns the observation for side 0,
// which always opens the episode.
func (e *PairEnvironment) Reset() []float64 {
	e.states[0] = newEpisodicState(e.profiles[0])
	e.states[1] = newEpisodicState(e.profiles[1])
	e.preset.apply(e.states[0])
	e.preset.apply(e.states[1])
	e.turn = 0
	e.step = 0
	e.phase = phaseActive
	return e.encoder.Encode(e.profiles[0], e.states[0])
}

// Step resolves the action for the active side, couples its consequences
// into the passive side, flips the turn, and returns the observation the
// newly active side will decide on.
func (e *PairEnvironment) Step(action int) (StepResult, error) {
	if e.phase != phaseActive {
		return StepResult{}, ErrNotActive
	}
	if action < 0 || action >= len(e.actions) {
		return StepResult{}, fmt.Errorf("%w: %d of %d", ErrActionOutOfRange, action, len(e.actions))
	}

	actor := e.turn
	other := 1 - actor
	spec := e.actions[action]
	e.step++
	e.states[actor].Step++

	success, reward, label := resolveAction(e.rng, spec, e.profiles[actor], e.states[actor].Pressures)
	applyOutcome(e.states[actor], spec, success)

	actorState, partnerState, scale, note := e.couple(spec, success, *e.states[actor], *e.states[other], e.profiles[other])
	*e.states[actor] = actorState
	*e.states[other] = partnerState
	reward *= scale
	if note != "" {
		label = label + "; " + note
	}

	driftPressures(e.states[actor], e.rng)

	e.states[actor].History = append(e.states[actor].History, ActionRecord{
		Step:    e.states[actor].Step,
		Action:  spec.Name,
		Outcome: label,
		Reward:  reward,
	})

	done := e.step >= e.maxSteps
	if done {
		e.phase = phaseTerminated
	}

	e.turn = other
	return StepResult{
		Obs:    e.encoder.Encode(e.profiles[other], e.states[other]),
		Reward: reward,
		Done:   done,
		Info:   StepInfo{Action: spec.Name, Outcome: label, Success: success},
	}, nil
}

// Interaction action indices.
const (
	InteractCooperate = iota
	InteractCompete
	InteractCompromise
	InteractAvoid
	InteractShare
	InteractWithhold
	InteractAttack
	InteractDefend
	InteractPersuade
	InteractRefuse
	InteractHelp
	InteractIgnore
)

// InteractionActions is the pairwise social action set.
func InteractionActions() []ActionSpec {
	base := BaseActions()
	return []ActionSpec{
		base[ActionCooperate],
		base[ActionCompete],
		{
			Name: "compromise",
			Chance: func(p character.Profile, pr Pressures) float64 {
				return 0.2*p.Agreeableness + 0.1*p.Conscientiousness
			},
			SuccessLabel:  "found middle ground",
			SuccessReward: 0.8,
			FailureLabel:  "the compromise satisfied no one",
			FailureReward: -0.4,
		},
		{
			Name: "avoid",
			Chance: func(p character.Profile, pr Pressures) float64 {
				return 0.2*p.Neuroticism - 0.1*p.Extraversion
			},
			SuccessLabel:  "sidestepped the entanglement",
			SuccessReward: 0.3,
			FailureLabel:  "could not stay out of it",
			FailureReward: -0.5,
		},
		{
			Name: "share",
			Chance: func(p character.Profile, pr Pressures) float64 {
				return 0.3 * p.Agreeableness
			},
			Affinity:       func(p character.Profile) float64 { return (p.Agreeableness - 0.5) * 0.5 },
			SuccessLabel:   "generosity was well received",
			SuccessReward:  1.0,
			SuccessEffects: Effects{Trust: 0.05},
			FailureLabel:   "generosity went unacknowledged",
			FailureReward:  -0.5,
		},
		{
			Name: "withhold",
			Chance: func(p character.Profile, pr Pressures) float64 {
				return 0.2*p.Conscientiousness - 0.1*p.Agreeableness
			},
			SuccessLabel:  "kept resources in reserve",
			SuccessReward: 0.5,
			FailureLabel:  "the hoarding was noticed",
			FailureReward: -0.5,
		},
		{
			Name: "attack",
			Chance: func(p character.Profile, pr Pressures) float64 {
				return 0.2*(1-p.Agreeableness) + 0.1*p.Extraversion
			},
			Affinity:       func(p character.Profile) float64 { return ((1 - p.Agreeableness) - 0.5) * 0.5 },
			SuccessLabel:   "the attack landed",
			SuccessReward:  1.5,
			FailureLabel:   "the attack was turned aside",
			FailureReward:  -1.5,
			FailureEffects: Effects{Health: -0.1, Anger: 0.15},
		},
		{
			Name: "defend",
			Chance: func(p character.Profile, pr Pressures) float64 {
				return 0.2 * p.Conscientiousness
			},
			SuccessLabel:  "held the line",
			SuccessReward: 0.5,
			FailureLabel:  "the defense buckled",
			FailureReward: -0.8,
			FailureEffects: Effects{
				Health: -0.1, Fear: 0.1,
			},
		},
		base[ActionPersuade],
		{
			Name: "refuse",
			Chance: func(p character.Profile, pr Pressures) float64 {
				return 0.2*p.Conscientiousness - 0.1*p.Agreeableness
			},
			SuccessLabel:  "the refusal stood firm",
			SuccessReward: 0.5,
			FailureLabel:  "the refusal caused offense",
			FailureReward: -0.6,
		},
		{
			Name: "help",
			Chance: func(p character.Profile, pr Pressures) float64 {
				return 0.25*p.Agreeableness + 0.05*p.Conscientiousness
			},
			Affinity:       func(p character.Profile) float64 { return (p.Agreeableness - 0.5) * 0.5 },
			SuccessLabel:   "the help made a difference",
			SuccessReward:  1.0,
			SuccessEffects: Effects{Trust: 0.05, Reputation: 0.05},
			FailureLabel:   "the help was not wanted",
			FailureReward:  -0.3,
		},
		{
			Name: "ignore",
			Chance: func(p character.Profile, pr Pressures) float64 {
				return 0.1 * (1 - p.Extraversion)
			},
			SuccessLabel:  "the slight went unchallenged",
			SuccessReward: 0.2,
			FailureLabel:  "the cold shoulder escalated things",
			FailureReward: -0.3,
		},
	}
}

// cooperativeInteraction reports whether an interaction action invites the
// partner's goodwill, which modulates its reward by their agreeableness.
func cooperativeInteraction(name string) bool {
	switch name {
	case "cooperate", "share", "help":
		return true
	}
	return false
}

// interactionCoupling shifts the partner's disposition in response to the
// actor's move and scales cooperative rewards by the partner's
// agreeableness.
func interactionCoupling(spec ActionSpec, success bool, actor, partner EpisodicState, partnerProfile character.Profile) (EpisodicState, EpisodicState, float64, string) {
	scale := 1.0
	note := ""

	if cooperativeInteraction(spec.Name) {
		switch {
		case partnerProfile.Agreeableness > 0.6:
			scale = 1.2
			note = "they responded warmly"
		case partnerProfile.Agreeableness < 0.3:
			scale = 0.8
			note = "they stayed aloof"
		}
		if success {
			partner.Trust = clampUnit(partner.Trust + 0.05)
			partner.Emotions.Joy = clampUnit(partner.Emotions.Joy + 0.05)
		}
	}

	switch spec.Name {
	case "attack":
		partner.Emotions.Anger = clampUnit(partner.Emotions.Anger + 0.1)
		partner.Emotions.Fear = clampUnit(partner.Emotions.Fear + 0.05)
		if success {
			partner.Health = clampFloor(partner.Health-0.1, 0.1)
		}
	case "compete", "refuse", "withhold":
		partner.Trust = clampUnit(partner.Trust - 0.03)
	case "ignore":
		partner.Emotions.Sadness = clampUnit(partner.Emotions.Sadness + 0.05)
	}

	return actor, partner, scale, note
}

// Duel action indices.
const (
	DuelCompromise = iota
	DuelClash
	DuelWithdraw
	DuelThreaten
	DuelPlead
)

// DuelActions is the adversarial action set.
func DuelActions() []ActionSpec {
	return []ActionSpec{
		{
			Name: "compromise",
			Chance: func(p character.Profile, pr Pressures) float64 {
				return 0.25 * p.Agreeableness
			},
			SuccessLabel:  "offered terms that cooled the feud",
			SuccessReward: 0.5,
			FailureLabel:  "the offered terms were thrown back",
			FailureReward: -0.3,
		},
		{
			Name: "clash",
			Chance: func(p character.Profile, pr Pressures) float64 {
				return 0.2*(1-p.Agreeableness) + 0.1*p.Extraversion
			},
			Affinity:       func(p character.Profile) float64 { return ((1 - p.Agreeableness) - 0.5) * 0.5 },
			SuccessLabel:   "struck the decisive blow",
			SuccessReward:  1.5,
			FailureLabel:   "the clash went badly",
			FailureReward:  -1.5,
			FailureEffects: Effects{Health: -0.1, Anger: 0.15},
		},
		{
			Name: "withdraw",
			Chance: func(p character.Profile, pr Pressures) float64 {
				return 0.2 * p.Conscientiousness
			},
			SuccessLabel:  "gave no ground by giving no answer",
			SuccessReward: 0.2,
			FailureLabel:  "the silence read as retreat",
			FailureReward: -0.4,
		},
		{
			Name: "threaten",
			Chance: func(p character.Profile, pr Pressures) float64 {
				return 0.2*(1-p.Agreeableness) - 0.1*p.Extraversion
			},
			SuccessLabel:   "the ultimatum landed",
			SuccessReward:  1.0,
			FailureLabel:   "the ultimatum rang hollow",
			FailureReward:  -1.5,
			FailureEffects: Effects{Anger: 0.1},
		},
		{
			Name: "plead",
			Chance: func(p character.Profile, pr Pressures) float64 {
				return 0.2*p.Neuroticism + 0.1*p.Extraversion
			},
			SuccessLabel:  "the appeal softened them",
			SuccessReward: 0.8,
			FailureLabel:  "the appeal fell on deaf ears",
			FailureReward: -0.6,
		},
	}
}

// duelCoupling applies the documented cross-influence between rivals: a
// clash angers both sides, a compromise lifts the actor's mood and the
// opponent's trust, a threat stokes the opponent's fear.
func duelCoupling(spec ActionSpec, success bool, actor, partner EpisodicState, partnerProfile character.Profile) (EpisodicState, EpisodicState, float64, string) {
	switch spec.Name {
	case "clash":
		actor.Emotions.Anger = clampUnit(actor.Emotions.Anger + 0.1)
		partner.Emotions.Anger = clampUnit(partner.Emotions.Anger + 0.05)
		if success {
			partner.Health = clampFloor(partner.Health-0.1, 0.1)
		}
	case "compromise":
		actor.Emotions.Joy = clampUnit(actor.Emotions.Joy + 0.05)
		partner.Trust = clampUnit(partner.Trust + 0.03)
	case "threaten":
		partner.Emotions.Fear = clampUnit(partner.Emotions.Fear + 0.1)
	case "plead":
		if success {
			partner.Emotions.Sadness = clampUnit(partner.Emotions.Sadness + 0.05)
		}
	}
	return actor, partner, 1.0, ""
}
