package simulation

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/louisbranch/persona-engine/internal/agent"
	"github.com/louisbranch/persona-engine/internal/behavior"
	"github.com/louisbranch/persona-engine/internal/policy"
)

// Env is the episodic state machine a collector rolls out against.
type Env interface {
	Reset() []float64
	Step(action int) (behavior.StepResult, error)
	StateDim() int
	ActionDim() int
}

// Rollout is one collected episode plus the observation that follows its
// last transition, which the trainer needs for the bootstrap value.
type Rollout struct {
	Trajectory policy.Trajectory
	FinalObs   []float64
	Done       bool
}

// Collect resets env and rolls one episode to termination or horizon,
// recording every transition. The agent is only read; a concurrent Update
// on another goroutine waits for each decision, never corrupts it. A nil
// rng forces deterministic (argmax) selection.
func Collect(ctx context.Context, actor *agent.Agent, env Env, horizon int, deterministic bool, rng *rand.Rand) (Rollout, error) {
	if actor.StateDim() != env.StateDim() || actor.ActionDim() != env.ActionDim() {
		return Rollout{}, fmt.Errorf("%w: agent is %d/%d, environment is %d/%d",
			agent.ErrDimensionMismatch, actor.StateDim(), actor.ActionDim(), env.StateDim(), env.ActionDim())
	}
	if horizon <= 0 {
		horizon = behavior.DefaultMaxSteps
	}

	obs := env.Reset()
	var rollout Rollout
	for step := 0; step < horizon; step++ {
		if err := ctx.Err(); err != nil {
			return Rollout{}, err
		}

		action, logProb, value, _, err := actor.Decide(obs, deterministic, rng)
		if err != nil {
			return Rollout{}, fmt.Errorf("decide step %d: %w", step, err)
		}

		result, err := env.Step(action)
		if err != nil {
			return Rollout{}, fmt.Errorf("step %d: %w", step, err)
		}

		rollout.Trajectory.Append(policy.Step{
			Obs:     obs,
			Action:  action,
			LogProb: logProb,
			Value:   value,
			Reward:  result.Reward,
			Done:    result.Done,
		})

		obs = result.Obs
		if result.Done {
			rollout.Done = true
			break
		}
	}

	rollout.FinalObs = obs
	return rollout, nil
}
