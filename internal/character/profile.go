// Package character defines the immutable character profile the behavior
// engine consumes. Profiles are validated once at construction; downstream
// packages read fields directly and never re-check ranges.
package character

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyKey indicates a profile was built without an identity key.
var ErrEmptyKey = errors.New("character key is required")

// ErrScalarOutOfRange indicates a profile scalar is outside [0, 1].
var ErrScalarOutOfRange = errors.New("profile scalar must be between 0 and 1")

// Default values applied to optional profile fields.
const (
	DefaultPersonality = 0.5
	DefaultAffinity    = 0.2
	DefaultEmotion     = 0.25
	DefaultSocial      = 0.5
)

// Profile captures the traits a character carries into an episode.
type Profile struct {
	Key string

	// Big Five personality traits.
	Openness          float64
	Conscientiousness float64
	Extraversion      float64
	Agreeableness     float64
	Neuroticism       float64

	// Elemental affinities.
	Metal float64
	Wood  float64
	Water float64
	Fire  float64
	Earth float64

	// Baseline emotions carried into a fresh episode.
	Joy     float64
	Anger   float64
	Sadness float64
	Fear    float64

	// Social standing.
	Reputation float64
	Trust      float64
	Wealth     float64
	Status     float64
}

// Input describes a profile to construct. Nil fields take the documented
// neutral defaults so partially specified characters remain usable.
type Input struct {
	Key string `json:"key"`

	Openness          *float64 `json:"openness"`
	Conscientiousness *float64 `json:"conscientiousness"`
	Extraversion      *float64 `json:"extraversion"`
	Agreeableness     *float64 `json:"agreeableness"`
	Neuroticism       *float64 `json:"neuroticism"`

	Metal *float64 `json:"metal"`
	Wood  *float64 `json:"wood"`
	Water *float64 `json:"water"`
	Fire  *float64 `json:"fire"`
	Earth *float64 `json:"earth"`

	Joy     *float64 `json:"joy"`
	Anger   *float64 `json:"anger"`
	Sadness *float64 `json:"sadness"`
	Fear    *float64 `json:"fear"`

	Reputation *float64 `json:"reputation"`
	Trust      *float64 `json:"trust"`
	Wealth     *float64 `json:"wealth"`
	Status     *float64 `json:"status"`
}

// New validates the input and returns a fully populated profile.
func New(input Input) (Profile, error) {
	key := strings.TrimSpace(input.Key)
	if key == "" {
		return Profile{}, ErrEmptyKey
	}

	profile := Profile{Key: key}

	fields := []struct {
		name string
		dst  *float64
		src  *float64
		def  float64
	}{
		{"openness", &profile.Openness, input.Openness, DefaultPersonality},
		{"conscientiousness", &profile.Conscientiousness, input.Conscientiousness, DefaultPersonality},
		{"extraversion", &profile.Extraversion, input.Extraversion, DefaultPersonality},
		{"agreeableness", &profile.Agreeableness, input.Agreeableness, DefaultPersonality},
		{"neuroticism", &profile.Neuroticism, input.Neuroticism, DefaultPersonality},
		{"metal", &profile.Metal, input.Metal, DefaultAffinity},
		{"wood", &profile.Wood, input.Wood, DefaultAffinity},
		{"water", &profile.Water, input.Water, DefaultAffinity},
		{"fire", &profile.Fire, input.Fire, DefaultAffinity},
		{"earth", &profile.Earth, input.Earth, DefaultAffinity},
		{"joy", &profile.Joy, input.Joy, DefaultEmotion},
		{"anger", &profile.Anger, input.Anger, DefaultEmotion},
		{"sadness", &profile.Sadness, input.Sadness, DefaultEmotion},
		{"fear", &profile.Fear, input.Fear, DefaultEmotion},
		{"reputation", &profile.Reputation, input.Reputation, DefaultSocial},
		{"trust", &profile.Trust, input.Trust, DefaultSocial},
		{"wealth", &profile.Wealth, input.Wealth, DefaultSocial},
		{"status", &profile.Status, input.Status, DefaultSocial},
	}

	for _, field := range fields {
		value := field.def
		if field.src != nil {
			value = *field.src
		}
		if value < 0 || value > 1 {
			return Profile{}, fmt.Errorf("%w: %s is %v", ErrScalarOutOfRange, field.name, value)
		}
		*field.dst = value
	}

	return profile, nil
}
