package behavior

import "github.com/louisbranch/persona-engine/internal/character"

// Effects lists the targeted state deltas one outcome branch applies on top
// of the common success/failure adjustments. Zero fields leave the scalar
// untouched.
type Effects struct {
	Trust      float64
	Reputation float64
	Wealth     float64
	Health     float64

	Joy     float64
	Anger   float64
	Sadness float64
	Fear    float64
}

// ActionSpec describes how one action in an action set resolves.
type ActionSpec struct {
	Name string

	// Chance is the success-probability adjustment added to the 0.5
	// baseline before clamping to [0.1, 0.9].
	Chance func(p character.Profile, pr Pressures) float64

	// Affinity is a trait-based reward adjustment applied to both branches.
	Affinity func(p character.Profile) float64

	SuccessLabel   string
	SuccessReward  float64
	SuccessEffects Effects

	FailureLabel   string
	FailureReward  float64
	FailureEffects Effects
}

// Base action indices. The order is the wire contract for trained policies:
// reordering invalidates persisted snapshots.
const (
	ActionCooperate = iota
	ActionCompete
	ActionVenture
	ActionConserve
	ActionPersuade
	ActionThreaten
	ActionEvade
	ActionConfront
	ActionYield
	ActionHardline
)

// BaseActions is the default single-character action set.
func BaseActions() []ActionSpec {
	return []ActionSpec{
		{
			Name: "cooperate",
			Chance: func(p character.Profile, pr Pressures) float64 {
				adj := 0.2*p.Agreeableness - 0.1*p.Neuroticism
				if pr.Opportunity > 0.5 {
					return adj + 0.1
				}
				return adj - 0.1
			},
			Affinity:       func(p character.Profile) float64 { return (p.Agreeableness - 0.5) * 0.5 },
			SuccessLabel:   "forged a cooperative alliance",
			SuccessReward:  1.5,
			SuccessEffects: Effects{Trust: 0.1, Reputation: 0.1},
			FailureLabel:   "cooperative overture was rebuffed",
			FailureReward:  -0.5,
		},
		{
			Name: "compete",
			Chance: func(p character.Profile, pr Pressures) float64 {
				adj := 0.2*p.Conscientiousness - 0.1*p.Agreeableness
				if pr.Threat > 0.5 {
					adj -= 0.1
				}
				return adj
			},
			Affinity:      func(p character.Profile) float64 { return ((1 - p.Agreeableness) - 0.5) * 0.5 },
			SuccessLabel:  "won the contest",
			SuccessReward: 2.0,
			FailureLabel:  "lost the contest",
			FailureReward: -1.0,
		},
		{
			Name: "venture",
			Chance: func(p character.Profile, pr Pressures) float64 {
				adj := 0.3*p.Openness - 0.2*p.Conscientiousness
				if pr.Opportunity > 0.7 {
					return adj + 0.2
				}
				return adj - 0.1
			},
			Affinity:       func(p character.Profile) float64 { return (p.Openness - 0.5) * 0.5 },
			SuccessLabel:   "the gamble paid off handsomely",
			SuccessReward:  2.5,
			SuccessEffects: Effects{Wealth: 0.2},
			FailureLabel:   "the gamble failed at heavy cost",
			FailureReward:  -2.0,
			FailureEffects: Effects{Wealth: -0.15},
		},
		{
			Name: "conserve",
			Chance: func(p character.Profile, pr Pressures) float64 {
				adj := 0.2*p.Conscientiousness - 0.1*p.Openness
				if pr.Threat > 0.5 {
					return adj + 0.1
				}
				return adj - 0.1
			},
			SuccessLabel:  "caution kept the risk at bay",
			SuccessReward: 0.5,
			FailureLabel:  "caution cost a missed opening",
			FailureReward: -0.5,
		},
		{
			Name: "persuade",
			Chance: func(p character.Profile, pr Pressures) float64 {
				return 0.3*p.Extraversion + 0.1*p.Agreeableness
			},
			SuccessLabel:  "the argument won them over",
			SuccessReward: 1.0,
			FailureLabel:  "the argument fell flat",
			FailureReward: -0.5,
		},
		{
			Name: "threaten",
			Chance: func(p character.Profile, pr Pressures) float64 {
				return 0.2*(1-p.Agreeableness) - 0.1*p.Extraversion
			},
			SuccessLabel:   "the threat forced a concession",
			SuccessReward:  1.0,
			FailureLabel:   "the threat soured the relationship",
			FailureReward:  -1.5,
			FailureEffects: Effects{Anger: 0.1},
		},
		{
			Name: "evade",
			Chance: func(p character.Profile, pr Pressures) float64 {
				adj := 0.3*p.Neuroticism - 0.1*p.Conscientiousness
				if pr.Threat > 0.7 {
					adj += 0.2
				}
				return adj
			},
			SuccessLabel:   "slipped away from the danger",
			SuccessReward:  0.5,
			FailureLabel:   "cornered with no way out",
			FailureReward:  -1.0,
			FailureEffects: Effects{Fear: 0.15},
		},
		{
			Name: "confront",
			Chance: func(p character.Profile, pr Pressures) float64 {
				return 0.2*(1-p.Agreeableness) + 0.1*p.Conscientiousness
			},
			SuccessLabel:   "faced the rival down",
			SuccessReward:  1.5,
			FailureLabel:   "the confrontation drew a counterblow",
			FailureReward:  -1.5,
			FailureEffects: Effects{Health: -0.1, Anger: 0.15},
		},
		{
			Name: "yield",
			Chance: func(p character.Profile, pr Pressures) float64 {
				return 0.3 * p.Agreeableness
			},
			Affinity:      func(p character.Profile) float64 { return (p.Agreeableness - 0.5) * 0.5 },
			SuccessLabel:  "deference earned quiet respect",
			SuccessReward: 0.5,
			FailureLabel:  "deference was read as weakness",
			FailureReward: -0.5,
		},
		{
			Name: "hardline",
			Chance: func(p character.Profile, pr Pressures) float64 {
				return 0.2*(1-p.Agreeableness) + 0.1*p.Neuroticism
			},
			Affinity:       func(p character.Profile) float64 { return ((1 - p.Agreeableness) - 0.5) * 0.5 },
			SuccessLabel:   "the hard line carried the day",
			SuccessReward:  1.0,
			FailureLabel:   "the hard line sparked open conflict",
			FailureReward:  -1.0,
			FailureEffects: Effects{Health: -0.1, Anger: 0.15},
		},
	}
}
