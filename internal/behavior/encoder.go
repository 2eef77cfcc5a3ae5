package behavior

import "github.com/louisbranch/persona-engine/internal/character"

// StateDim is the fixed length of every encoded state vector: seven episode
// attributes, five personality traits, four emotions, four pressures.
const StateDim = 20

// StateEncoder derives the policy feature vector from a profile and an
// episode state. Encoding is pure: it never mutates either input and the
// same inputs always produce the same vector.
type StateEncoder struct{}

// Dim returns the constant vector dimension.
func (StateEncoder) Dim() int { return StateDim }

// Encode builds the feature vector for the given profile and episode state.
func (StateEncoder) Encode(profile character.Profile, state *EpisodicState) []float64 {
	return []float64{
		state.Health,
		state.Energy,
		state.Wealth,
		state.Reputation,
		state.Happiness,
		state.Stress,
		state.Trust,

		profile.Openness,
		profile.Conscientiousness,
		profile.Extraversion,
		profile.Agreeableness,
		profile.Neuroticism,

		state.Emotions.Joy,
		state.Emotions.Anger,
		state.Emotions.Sadness,
		state.Emotions.Fear,

		state.Pressures.Threat,
		state.Pressures.Opportunity,
		state.Pressures.Social,
		state.Pressures.Time,
	}
}
