// Package simulation orchestrates episodes: single-character rollouts and
// training, and the paired interaction and duel variants. It owns run
// identity, telemetry, and tracing; the numeric work lives in the policy
// and behavior packages.
package simulation

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/louisbranch/persona-engine/internal/agent"
	"github.com/louisbranch/persona-engine/internal/behavior"
	"github.com/louisbranch/persona-engine/internal/character"
	"github.com/louisbranch/persona-engine/internal/policy"
	"github.com/louisbranch/persona-engine/internal/random"
	"github.com/louisbranch/persona-engine/internal/scenario"
	"github.com/louisbranch/persona-engine/internal/storage"
	"github.com/louisbranch/persona-engine/internal/telemetry"
)

// Registry key suffixes per environment variant. Each variant has its own
// action set, so sharing one key across variants would trip the registry's
// dimension check.
const (
	interactSuffix = ":interact"
	duelSuffix     = ":duel"
)

// fateDivisor converts an episode's total reward into a fate delta.
const fateDivisor = 10

// Service runs simulations and training over registered agents.
type Service struct {
	registry *agent.Registry
	emitter  *telemetry.Emitter
	logger   *zap.Logger
	tracer   trace.Tracer
	seed     func() (int64, error)
}

// New wires a simulation service. The emitter may be nil.
func New(registry *agent.Registry, emitter *telemetry.Emitter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if emitter == nil {
		emitter = telemetry.NewEmitter(nil)
	}
	return &Service{
		registry: registry,
		emitter:  emitter,
		logger:   logger,
		tracer:   otel.Tracer("persona-engine/simulation"),
		seed:     random.NewSeed,
	}
}

// resolveSeed returns the request seed, or a fresh crypto seed when nil.
func (s *Service) resolveSeed(seed *int64) (int64, error) {
	if seed != nil {
		return *seed, nil
	}
	return s.seed()
}

// SimulateRequest configures a single-character rollout.
type SimulateRequest struct {
	Profile       character.Profile  `json:"profile"`
	Steps         int                `json:"steps"`
	Deterministic bool               `json:"deterministic"`
	Seed          *int64             `json:"seed,omitempty"`
	Scenario      *scenario.Scenario `json:"scenario,omitempty"`
}

// SimulationResult is one finished rollout.
type SimulationResult struct {
	RunID       string                  `json:"run_id"`
	AgentKey    string                  `json:"agent_key"`
	Steps       int                     `json:"steps"`
	History     []behavior.ActionRecord `json:"history"`
	TotalReward float64                 `json:"total_reward"`
	FateDelta   float64                 `json:"fate_delta"`
	FinalState  behavior.EpisodicState  `json:"final_state"`
}

// Simulate rolls one episode under the character's current policy without
// updating it.
func (s *Service) Simulate(ctx context.Context, req SimulateRequest) (SimulationResult, error) {
	ctx, span := s.tracer.Start(ctx, "simulation.Simulate",
		trace.WithAttributes(attribute.String("agent.key", req.Profile.Key)))
	defer span.End()

	seed, err := s.resolveSeed(req.Seed)
	if err != nil {
		return SimulationResult{}, err
	}

	steps := resolveSteps(req.Steps, req.Scenario)
	env := behavior.NewEnvironment(req.Profile, behavior.EnvConfig{
		MaxSteps: steps,
		Seed:     seed,
		Preset:   scenarioPreset(req.Scenario),
	})

	actor, err := s.registry.GetOrCreate(ctx, req.Profile.Key, env.StateDim(), env.ActionDim())
	if err != nil {
		return SimulationResult{}, err
	}

	rng := random.NewRand(seed + 1)
	rollout, err := Collect(ctx, actor, env, steps, req.Deterministic, rng)
	if err != nil {
		return SimulationResult{}, err
	}

	final := env.StateCopy()
	total := rollout.Trajectory.TotalReward()
	result := SimulationResult{
		RunID:       uuid.NewString(),
		AgentKey:    req.Profile.Key,
		Steps:       rollout.Trajectory.Len(),
		History:     final.History,
		TotalReward: total,
		FateDelta:   total / fateDivisor,
		FinalState:  final,
	}

	if err := s.emitter.Emit(ctx, storage.TrainingEvent{
		ID:          result.RunID,
		AgentKey:    req.Profile.Key,
		Kind:        telemetry.KindSimulate,
		Episodes:    1,
		TotalReward: total,
	}); err != nil {
		s.logger.Warn("emit simulate event", zap.Error(err))
	}

	s.logger.Info("simulation finished",
		zap.String("run_id", result.RunID),
		zap.String("agent_key", req.Profile.Key),
		zap.Int("steps", result.Steps),
		zap.Float64("total_reward", total))
	return result, nil
}

// TrainRequest configures a training run for one character.
type TrainRequest struct {
	Profile         character.Profile  `json:"profile"`
	Episodes        int                `json:"episodes"`
	StepsPerEpisode int                `json:"steps_per_episode"`
	Persist         bool               `json:"persist"`
	PersistUnstable bool               `json:"persist_unstable"`
	Seed            *int64             `json:"seed,omitempty"`
	Scenario        *scenario.Scenario `json:"scenario,omitempty"`
}

// TrainingResult summarizes a training run.
type TrainingResult struct {
	RunID            string    `json:"run_id"`
	AgentKey         string    `json:"agent_key"`
	Episodes         int       `json:"episodes"`
	RewardHistory    []float64 `json:"reward_history"`
	AvgEpisodeLength float64   `json:"avg_episode_length"`
	PolicyLoss       float64   `json:"policy_loss"`
	ValueLoss        float64   `json:"value_loss"`
	Entropy          float64   `json:"entropy"`
	ClipFraction     float64   `json:"clip_fraction"`
	SkippedEpochs    int       `json:"skipped_epochs"`
	Persisted        bool      `json:"persisted"`
}

// Train runs collect-update cycles over fresh episodes. Cancellation is
// honored between episodes; an in-flight update always completes. The
// snapshot is persisted afterwards unless an epoch was skipped for numeric
// instability and PersistUnstable is false.
func (s *Service) Train(ctx context.Context, req TrainRequest) (TrainingResult, error) {
	ctx, span := s.tracer.Start(ctx, "simulation.Train",
		trace.WithAttributes(
			attribute.String("agent.key", req.Profile.Key),
			attribute.Int("episodes", req.Episodes)))
	defer span.End()

	if req.Episodes <= 0 {
		return TrainingResult{}, fmt.Errorf("episodes must be positive, got %d", req.Episodes)
	}

	seed, err := s.resolveSeed(req.Seed)
	if err != nil {
		return TrainingResult{}, err
	}

	steps := resolveSteps(req.StepsPerEpisode, req.Scenario)
	env := behavior.NewEnvironment(req.Profile, behavior.EnvConfig{
		MaxSteps: steps,
		Seed:     seed,
		Preset:   scenarioPreset(req.Scenario),
	})

	actor, err := s.registry.GetOrCreate(ctx, req.Profile.Key, env.StateDim(), env.ActionDim())
	if err != nil {
		return TrainingResult{}, err
	}

	cfg := policy.DefaultConfig()
	rng := random.NewRand(seed + 1)
	result := TrainingResult{
		RunID:    uuid.NewString(),
		AgentKey: req.Profile.Key,
	}

	var totalSteps int
	for episode := 0; episode < req.Episodes; episode++ {
		if err := ctx.Err(); err != nil {
			return TrainingResult{}, err
		}

		stats, length, reward, err := s.trainEpisode(ctx, actor, env, steps, rng, cfg, episode)
		if err != nil {
			return TrainingResult{}, err
		}

		totalSteps += length
		result.Episodes++
		result.RewardHistory = append(result.RewardHistory, reward)
		result.PolicyLoss += stats.PolicyLoss
		result.ValueLoss += stats.ValueLoss
		result.Entropy += stats.Entropy
		result.ClipFraction += stats.ClipFraction
		result.SkippedEpochs += stats.SkippedEpochs
	}

	episodes := float64(result.Episodes)
	result.AvgEpisodeLength = float64(totalSteps) / episodes
	result.PolicyLoss /= episodes
	result.ValueLoss /= episodes
	result.Entropy /= episodes
	result.ClipFraction /= episodes

	if req.Persist && (result.SkippedEpochs == 0 || req.PersistUnstable) {
		if err := s.registry.Save(ctx, actor); err != nil {
			return TrainingResult{}, fmt.Errorf("persist agent %q: %w", req.Profile.Key, err)
		}
		result.Persisted = true
	} else if req.Persist {
		s.logger.Warn("snapshot not persisted after unstable training",
			zap.String("agent_key", req.Profile.Key),
			zap.Int("skipped_epochs", result.SkippedEpochs))
	}

	if err := s.emitter.Emit(ctx, storage.TrainingEvent{
		ID:            result.RunID,
		AgentKey:      req.Profile.Key,
		Kind:          telemetry.KindTrain,
		Episodes:      result.Episodes,
		TotalReward:   sum(result.RewardHistory),
		PolicyLoss:    result.PolicyLoss,
		ValueLoss:     result.ValueLoss,
		Entropy:       result.Entropy,
		ClipFraction:  result.ClipFraction,
		SkippedEpochs: result.SkippedEpochs,
	}); err != nil {
		s.logger.Warn("emit train event", zap.Error(err))
	}

	s.logger.Info("training finished",
		zap.String("run_id", result.RunID),
		zap.String("agent_key", req.Profile.Key),
		zap.Int("episodes", result.Episodes),
		zap.Float64("policy_loss", result.PolicyLoss),
		zap.Int("skipped_epochs", result.SkippedEpochs),
		zap.Bool("persisted", result.Persisted))
	return result, nil
}

// trainEpisode collects one episode and fits the policy to it.
func (s *Service) trainEpisode(ctx context.Context, actor *agent.Agent, env Env, horizon int, rng *rand.Rand, cfg policy.Config, episode int) (policy.Stats, int, float64, error) {
	ctx, span := s.tracer.Start(ctx, "simulation.episode",
		trace.WithAttributes(attribute.Int("episode", episode)))
	defer span.End()

	rollout, err := Collect(ctx, actor, env, horizon, false, rng)
	if err != nil {
		return policy.Stats{}, 0, 0, err
	}

	// A true terminal state contributes no value past the horizon; a
	// truncated episode bootstraps from the critic's estimate of the
	// state it stopped in.
	var bootstrap float64
	if !rollout.Done {
		bootstrap, err = actor.Value(rollout.FinalObs)
		if err != nil {
			return policy.Stats{}, 0, 0, err
		}
	}

	traj := rollout.Trajectory
	returns, advantages, err := policy.ReturnsAdvantages(
		traj.Rewards(), traj.Values(), bootstrap, traj.Dones(), cfg.Gamma, cfg.Lambda)
	if err != nil {
		return policy.Stats{}, 0, 0, err
	}

	stats, err := actor.Update(traj, returns, advantages)
	if err != nil {
		return policy.Stats{}, 0, 0, err
	}
	return stats, traj.Len(), traj.TotalReward(), nil
}

// TrainMany trains several characters concurrently. Requests must name
// distinct characters: parallel updates to one agent would serialize on its
// lock anyway, so a duplicate key is treated as a caller mistake.
func (s *Service) TrainMany(ctx context.Context, reqs []TrainRequest) ([]TrainingResult, error) {
	ctx, span := s.tracer.Start(ctx, "simulation.TrainMany",
		trace.WithAttributes(attribute.Int("requests", len(reqs))))
	defer span.End()

	seen := make(map[string]bool, len(reqs))
	for _, req := range reqs {
		if seen[req.Profile.Key] {
			return nil, fmt.Errorf("duplicate character %q in training batch", req.Profile.Key)
		}
		seen[req.Profile.Key] = true
	}

	results := make([]TrainingResult, len(reqs))
	group, ctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		group.Go(func() error {
			result, err := s.Train(ctx, req)
			if err != nil {
				return fmt.Errorf("train %q: %w", req.Profile.Key, err)
			}
			results[i] = result
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

func scenarioPreset(scn *scenario.Scenario) *behavior.Preset {
	if scn == nil {
		return nil
	}
	preset := scn.Preset
	return &preset
}

// resolveSteps prefers an explicit step count, then the scenario's horizon.
// Zero falls through to the environment default.
func resolveSteps(steps int, scn *scenario.Scenario) int {
	if steps > 0 {
		return steps
	}
	if scn != nil && scn.MaxSteps > 0 {
		return scn.MaxSteps
	}
	return 0
}
