package simulation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/louisbranch/persona-engine/internal/agent"
	"github.com/louisbranch/persona-engine/internal/behavior"
	"github.com/louisbranch/persona-engine/internal/character"
	"github.com/louisbranch/persona-engine/internal/random"
	"github.com/louisbranch/persona-engine/internal/scenario"
	"github.com/louisbranch/persona-engine/internal/storage"
	"github.com/louisbranch/persona-engine/internal/telemetry"
)

// Interaction outcome labels.
const (
	OutcomeMutualBenefit = "mutual benefit"
	OutcomeMutualLoss    = "mutual loss"
	OutcomeDominance     = "dominance"
	OutcomeStandoff      = "standoff"
)

// SideResult is one participant's view of a paired run.
type SideResult struct {
	Key         string                  `json:"key"`
	History     []behavior.ActionRecord `json:"history"`
	TotalReward float64                 `json:"total_reward"`
	FinalState  behavior.EpisodicState  `json:"final_state"`
}

// InteractRequest configures a social interaction between two characters.
type InteractRequest struct {
	Initiator character.Profile  `json:"initiator"`
	Partner   character.Profile  `json:"partner"`
	Rounds    int                `json:"rounds"`
	Seed      *int64             `json:"seed,omitempty"`
	Scenario  *scenario.Scenario `json:"scenario,omitempty"`
}

// InteractionResult is one finished interaction.
type InteractionResult struct {
	RunID             string     `json:"run_id"`
	Initiator         SideResult `json:"initiator"`
	Partner           SideResult `json:"partner"`
	Outcome           string     `json:"outcome"`
	Dominant          string     `json:"dominant,omitempty"`
	RelationshipDelta float64    `json:"relationship_delta"`
}

// Interact runs two characters through alternating turns of the interaction
// action set. Policies are read, not trained. Agents for interactions live
// under their own key namespace since the action set differs from the base
// environment's.
func (s *Service) Interact(ctx context.Context, req InteractRequest) (InteractionResult, error) {
	ctx, span := s.tracer.Start(ctx, "simulation.Interact",
		trace.WithAttributes(
			attribute.String("initiator.key", req.Initiator.Key),
			attribute.String("partner.key", req.Partner.Key)))
	defer span.End()

	seed, err := s.resolveSeed(req.Seed)
	if err != nil {
		return InteractionResult{}, err
	}

	env := behavior.NewInteractionEnvironment(req.Initiator, req.Partner, behavior.EnvConfig{
		MaxSteps: pairHorizon(req.Rounds),
		Seed:     seed,
		Preset:   scenarioPreset(req.Scenario),
	})

	sides, err := s.runPair(ctx, env,
		req.Initiator.Key+interactSuffix,
		req.Partner.Key+interactSuffix,
		seed)
	if err != nil {
		return InteractionResult{}, err
	}

	initiatorTrust := sides[0].FinalState.Trust - req.Initiator.Trust
	partnerTrust := sides[1].FinalState.Trust - req.Partner.Trust

	result := InteractionResult{
		RunID:             uuid.NewString(),
		Initiator:         sides[0],
		Partner:           sides[1],
		RelationshipDelta: (initiatorTrust + partnerTrust) / 2,
	}
	result.Initiator.Key = req.Initiator.Key
	result.Partner.Key = req.Partner.Key
	result.Outcome, result.Dominant = classifyOutcome(result.Initiator, result.Partner)

	if err := s.emitter.Emit(ctx, storage.TrainingEvent{
		ID:          result.RunID,
		AgentKey:    req.Initiator.Key,
		Kind:        telemetry.KindInteract,
		Episodes:    1,
		TotalReward: result.Initiator.TotalReward,
	}); err != nil {
		s.logger.Warn("emit interact event", zap.Error(err))
	}

	s.logger.Info("interaction finished",
		zap.String("run_id", result.RunID),
		zap.String("initiator", req.Initiator.Key),
		zap.String("partner", req.Partner.Key),
		zap.String("outcome", result.Outcome),
		zap.Float64("relationship_delta", result.RelationshipDelta))
	return result, nil
}

// DuelRequest configures a confrontation between two characters.
type DuelRequest struct {
	Left   character.Profile `json:"left"`
	Right  character.Profile `json:"right"`
	Rounds int               `json:"rounds"`
	Seed   *int64            `json:"seed,omitempty"`
}

// DuelTurn is one resolved turn of a duel.
type DuelTurn struct {
	Turn     int     `json:"turn"`
	Actor    string  `json:"actor"`
	Action   string  `json:"action"`
	Success  bool    `json:"success"`
	Reward   float64 `json:"reward"`
	Dialogue string  `json:"dialogue"`
}

// DuelResult is one finished duel.
type DuelResult struct {
	RunID  string     `json:"run_id"`
	Left   SideResult `json:"left"`
	Right  SideResult `json:"right"`
	Winner string     `json:"winner,omitempty"`
	Turns  []DuelTurn `json:"turns"`
}

// Duel runs two characters through alternating turns of the duel action
// set, producing a narrated turn log. The higher total reward wins; a tie
// leaves Winner empty.
func (s *Service) Duel(ctx context.Context, req DuelRequest) (DuelResult, error) {
	ctx, span := s.tracer.Start(ctx, "simulation.Duel",
		trace.WithAttributes(
			attribute.String("left.key", req.Left.Key),
			attribute.String("right.key", req.Right.Key)))
	defer span.End()

	seed, err := s.resolveSeed(req.Seed)
	if err != nil {
		return DuelResult{}, err
	}

	env := behavior.NewDuelEnvironment(req.Left, req.Right, behavior.EnvConfig{
		MaxSteps: pairHorizon(req.Rounds),
		Seed:     seed,
	})

	names := [2]string{req.Left.Key, req.Right.Key}
	var turns []DuelTurn
	onTurn := func(side int, turn int, info behavior.StepInfo, reward float64) {
		turns = append(turns, DuelTurn{
			Turn:     turn,
			Actor:    names[side],
			Action:   info.Action,
			Success:  info.Success,
			Reward:   reward,
			Dialogue: duelDialogue(names[side], names[1-side], info),
		})
	}

	sides, err := s.runPairObserved(ctx, env,
		req.Left.Key+duelSuffix,
		req.Right.Key+duelSuffix,
		seed, onTurn)
	if err != nil {
		return DuelResult{}, err
	}

	result := DuelResult{
		RunID: uuid.NewString(),
		Left:  sides[0],
		Right: sides[1],
		Turns: turns,
	}
	result.Left.Key = req.Left.Key
	result.Right.Key = req.Right.Key
	switch {
	case result.Left.TotalReward > result.Right.TotalReward:
		result.Winner = req.Left.Key
	case result.Right.TotalReward > result.Left.TotalReward:
		result.Winner = req.Right.Key
	}

	if err := s.emitter.Emit(ctx, storage.TrainingEvent{
		ID:          result.RunID,
		AgentKey:    req.Left.Key,
		Kind:        telemetry.KindDuel,
		Episodes:    1,
		TotalReward: result.Left.TotalReward,
	}); err != nil {
		s.logger.Warn("emit duel event", zap.Error(err))
	}

	s.logger.Info("duel finished",
		zap.String("run_id", result.RunID),
		zap.String("left", req.Left.Key),
		zap.String("right", req.Right.Key),
		zap.String("winner", result.Winner))
	return result, nil
}

// runPair alternates two agents through a paired environment to its horizon.
func (s *Service) runPair(ctx context.Context, env *behavior.PairEnvironment, firstKey, secondKey string, seed int64) ([2]SideResult, error) {
	return s.runPairObserved(ctx, env, firstKey, secondKey, seed, nil)
}

func (s *Service) runPairObserved(ctx context.Context, env *behavior.PairEnvironment, firstKey, secondKey string, seed int64, onTurn func(side, turn int, info behavior.StepInfo, reward float64)) ([2]SideResult, error) {
	var sides [2]SideResult

	first, err := s.registry.GetOrCreate(ctx, firstKey, env.StateDim(), env.ActionDim())
	if err != nil {
		return sides, err
	}
	second, err := s.registry.GetOrCreate(ctx, secondKey, env.StateDim(), env.ActionDim())
	if err != nil {
		return sides, err
	}
	actors := [2]*agent.Agent{first, second}

	rng := random.NewRand(seed + 1)
	obs := env.Reset()
	turn := 0
	for {
		if err := ctx.Err(); err != nil {
			return sides, err
		}

		side := env.ActiveIndex()
		action, _, _, _, err := actors[side].Decide(obs, false, rng)
		if err != nil {
			return sides, fmt.Errorf("decide turn %d: %w", turn, err)
		}

		result, err := env.Step(action)
		if err != nil {
			return sides, fmt.Errorf("turn %d: %w", turn, err)
		}

		turn++
		sides[side].TotalReward += result.Reward
		if onTurn != nil {
			onTurn(side, turn, result.Info, result.Reward)
		}

		obs = result.Obs
		if result.Done {
			break
		}
	}

	for side := range sides {
		state := env.StateCopy(side)
		sides[side].History = state.History
		sides[side].FinalState = state
	}
	return sides, nil
}

// classifyOutcome labels an interaction from the two totals.
func classifyOutcome(a, b SideResult) (outcome, dominant string) {
	switch {
	case a.TotalReward > 0 && b.TotalReward > 0:
		return OutcomeMutualBenefit, ""
	case a.TotalReward < 0 && b.TotalReward < 0:
		return OutcomeMutualLoss, ""
	case a.TotalReward > b.TotalReward:
		return OutcomeDominance, a.Key
	case b.TotalReward > a.TotalReward:
		return OutcomeDominance, b.Key
	default:
		return OutcomeStandoff, ""
	}
}

// pairHorizon converts rounds (one action per side) into environment steps.
func pairHorizon(rounds int) int {
	if rounds <= 0 {
		return 0
	}
	return rounds * 2
}

func duelDialogue(actor, opponent string, info behavior.StepInfo) string {
	switch info.Action {
	case "clash":
		if info.Success {
			return fmt.Sprintf("%s strikes hard and %s staggers back", actor, opponent)
		}
		return fmt.Sprintf("%s lunges but %s holds the line", actor, opponent)
	case "compromise":
		if info.Success {
			return fmt.Sprintf("%s offers terms and %s listens", actor, opponent)
		}
		return fmt.Sprintf("%s offers terms but %s scoffs", actor, opponent)
	case "withdraw":
		if info.Success {
			return fmt.Sprintf("%s slips out of %s's reach", actor, opponent)
		}
		return fmt.Sprintf("%s tries to retreat but %s presses on", actor, opponent)
	case "threaten":
		if info.Success {
			return fmt.Sprintf("%s's threat makes %s hesitate", actor, opponent)
		}
		return fmt.Sprintf("%s's threat leaves %s unmoved", actor, opponent)
	case "plead":
		if info.Success {
			return fmt.Sprintf("%s's plea softens %s", actor, opponent)
		}
		return fmt.Sprintf("%s pleads but %s turns away", actor, opponent)
	default:
		return fmt.Sprintf("%s acts against %s", actor, opponent)
	}
}
