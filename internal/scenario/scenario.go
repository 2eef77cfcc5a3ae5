// Package scenario loads episode presets from Lua scripts. A script runs in
// a fresh interpreter and returns a table describing the opening pressures
// and emotions for an episode, which keeps scenario authoring out of the
// engine binary.
package scenario

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Shopify/go-lua"

	"github.com/louisbranch/persona-engine/internal/behavior"
)

// ErrBadScript indicates a scenario script did not return a valid table.
var ErrBadScript = errors.New("scenario script is invalid")

// Scenario is a named episode preset produced by a script.
type Scenario struct {
	Name     string
	MaxSteps int
	Preset   behavior.Preset
}

// LoadFile runs a scenario script from disk.
func LoadFile(path string) (*Scenario, error) {
	state := lua.NewState()
	lua.OpenLibraries(state)

	if err := lua.LoadFile(state, path, ""); err != nil {
		return nil, fmt.Errorf("load scenario %s: %w", path, err)
	}
	scn, err := run(state)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	if scn.Name == "" {
		scn.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return scn, nil
}

// LoadString runs an inline scenario script.
func LoadString(name, source string) (*Scenario, error) {
	state := lua.NewState()
	lua.OpenLibraries(state)

	if err := lua.LoadString(state, source); err != nil {
		return nil, fmt.Errorf("load scenario %s: %w", name, err)
	}
	scn, err := run(state)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", name, err)
	}
	if scn.Name == "" {
		scn.Name = name
	}
	return scn, nil
}

func run(state *lua.State) (*Scenario, error) {
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return nil, fmt.Errorf("run script: %w", err)
	}
	if !state.IsTable(-1) {
		state.Pop(1)
		return nil, fmt.Errorf("%w: script must return a table", ErrBadScript)
	}

	var scn Scenario

	name, ok, err := stringField(state, "name")
	if err != nil {
		return nil, err
	}
	if ok {
		scn.Name = name
	}

	steps, ok, err := numberField(state, "max_steps")
	if err != nil {
		return nil, err
	}
	if ok {
		if steps < 1 {
			return nil, fmt.Errorf("%w: max_steps must be at least 1, got %v", ErrBadScript, steps)
		}
		scn.MaxSteps = int(steps)
	}

	scn.Preset.Threat, err = unitField(state, "threat")
	if err != nil {
		return nil, err
	}
	scn.Preset.Opportunity, err = unitField(state, "opportunity")
	if err != nil {
		return nil, err
	}
	scn.Preset.Social, err = unitField(state, "social_pressure")
	if err != nil {
		return nil, err
	}
	scn.Preset.Time, err = unitField(state, "time_pressure")
	if err != nil {
		return nil, err
	}

	state.Field(-1, "emotions")
	if !state.IsNoneOrNil(-1) {
		if !state.IsTable(-1) {
			state.Pop(1)
			return nil, fmt.Errorf("%w: emotions must be a table", ErrBadScript)
		}
		scn.Preset.Joy, err = unitField(state, "joy")
		if err != nil {
			return nil, err
		}
		scn.Preset.Anger, err = unitField(state, "anger")
		if err != nil {
			return nil, err
		}
		scn.Preset.Sadness, err = unitField(state, "sadness")
		if err != nil {
			return nil, err
		}
		scn.Preset.Fear, err = unitField(state, "fear")
		if err != nil {
			return nil, err
		}
	}
	state.Pop(1)

	state.Pop(1)
	return &scn, nil
}

// unitField reads an optional [0, 1] number from the table at the top of
// the stack.
func unitField(state *lua.State, name string) (*float64, error) {
	value, ok, err := numberField(state, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	if value < 0 || value > 1 {
		return nil, fmt.Errorf("%w: %s must be within [0, 1], got %v", ErrBadScript, name, value)
	}
	return &value, nil
}

func numberField(state *lua.State, name string) (float64, bool, error) {
	state.Field(-1, name)
	defer state.Pop(1)

	if state.IsNoneOrNil(-1) {
		return 0, false, nil
	}
	value, ok := state.ToNumber(-1)
	if !ok {
		return 0, false, fmt.Errorf("%w: %s must be a number", ErrBadScript, name)
	}
	return value, true, nil
}

func stringField(state *lua.State, name string) (string, bool, error) {
	state.Field(-1, name)
	defer state.Pop(1)

	if state.IsNoneOrNil(-1) {
		return "", false, nil
	}
	value, ok := state.ToString(-1)
	if !ok {
		return "", false, fmt.Errorf("%w: %s must be a string", ErrBadScript, name)
	}
	return value, true, nil
}
