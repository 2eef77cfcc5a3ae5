package behavior

import "github.com/louisbranch/persona-engine/internal/character"

// Emotions tracks the four transient emotion scalars of an episode.
type Emotions struct {
	Joy     float64 `json:"joy"`
	Anger   float64 `json:"anger"`
	Sadness float64 `json:"sadness"`
	Fear    float64 `json:"fear"`
}

// Pressures tracks the four environment pressure scalars. Threat,
// Opportunity, and Social random-walk each step; Time only increases.
type Pressures struct {
	Threat      float64 `json:"threat"`
	Opportunity float64 `json:"opportunity"`
	Social      float64 `json:"social"`
	Time        float64 `json:"time"`
}

// ActionRecord is one entry in an episode's append-only history.
type ActionRecord struct {
	Step    int     `json:"step"`
	Action  string  `json:"action"`
	Outcome string  `json:"outcome"`
	Reward  float64 `json:"reward"`
}

// EpisodicState is the mutable per-episode record owned by one environment.
type EpisodicState struct {
	Health     float64 `json:"health"`
	Energy     float64 `json:"energy"`
	Wealth     float64 `json:"wealth"`
	Reputation float64 `json:"reputation"`
	Happiness  float64 `json:"happiness"`
	Stress     float64 `json:"stress"`
	Trust      float64 `json:"trust"`

	Emotions  Emotions  `json:"emotions"`
	Pressures Pressures `json:"pressures"`

	Step    int            `json:"step"`
	History []ActionRecord `json:"history"`
}

// newEpisodicState initializes episode state from profile baselines.
func newEpisodicState(profile character.Profile) *EpisodicState {
	return &EpisodicState{
		Health:     1.0,
		Energy:     1.0,
		Wealth:     profile.Wealth,
		Reputation: profile.Reputation,
		Happiness:  0.5,
		Stress:     0.1,
		Trust:      profile.Trust,
		Emotions: Emotions{
			Joy:     profile.Joy,
			Anger:   profile.Anger,
			Sadness: profile.Sadness,
			Fear:    profile.Fear,
		},
		Pressures: Pressures{
			Threat:      0.1,
			Opportunity: 0.3,
			Social:      0.2,
			Time:        0.1,
		},
	}
}

// Clone returns a deep copy of the state, including history.
func (s *EpisodicState) Clone() EpisodicState {
	clone := *s
	clone.History = append([]ActionRecord(nil), s.History...)
	return clone
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampFloor(v, floor float64) float64 {
	if v < floor {
		return floor
	}
	if v > 1 {
		return 1
	}
	return v
}
