// Package main provides the persona engine CLI: train a character's policy,
// roll simulations, or run paired interactions and duels, printing results
// as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/louisbranch/persona-engine/internal/agent"
	"github.com/louisbranch/persona-engine/internal/character"
	"github.com/louisbranch/persona-engine/internal/platform/config"
	"github.com/louisbranch/persona-engine/internal/platform/logging"
	platformotel "github.com/louisbranch/persona-engine/internal/platform/otel"
	"github.com/louisbranch/persona-engine/internal/policy"
	"github.com/louisbranch/persona-engine/internal/scenario"
	"github.com/louisbranch/persona-engine/internal/simulation"
	"github.com/louisbranch/persona-engine/internal/storage"
	storagesqlite "github.com/louisbranch/persona-engine/internal/storage/sqlite"
	"github.com/louisbranch/persona-engine/internal/telemetry"
)

type envConfig struct {
	DBPath string `env:"PERSONA_ENGINE_DB_PATH"`
}

func main() {
	var (
		mode          string
		profilePath   string
		partnerPath   string
		scenarioPath  string
		dbPath        string
		steps         int
		episodes      int
		rounds        int
		seedVal       int64
		deterministic bool
		persist       bool
		verbose       bool
	)

	flag.StringVar(&mode, "mode", "simulate", "run mode: simulate, train, interact, duel")
	flag.StringVar(&profilePath, "profile", "", "path to the character profile JSON")
	flag.StringVar(&partnerPath, "partner", "", "path to the partner profile JSON (interact, duel)")
	flag.StringVar(&scenarioPath, "scenario", "", "path to a Lua scenario script")
	flag.StringVar(&dbPath, "db", "", "SQLite path for snapshots and telemetry (default $PERSONA_ENGINE_DB_PATH)")
	flag.IntVar(&steps, "steps", 0, "steps per episode (0 = environment default)")
	flag.IntVar(&episodes, "episodes", 10, "training episodes")
	flag.IntVar(&rounds, "rounds", 5, "rounds per interaction or duel")
	flag.Int64Var(&seedVal, "seed", 0, "seed for reproducible runs (unset = random)")
	flag.BoolVar(&deterministic, "deterministic", false, "pick the most likely action instead of sampling")
	flag.BoolVar(&persist, "persist", true, "persist the trained snapshot (train mode)")
	flag.BoolVar(&verbose, "v", false, "verbose logging")
	flag.Parse()

	var seed *int64
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			seed = &seedVal
		}
	})

	var envCfg envConfig
	if err := config.ParseEnv(&envCfg); err != nil {
		config.Exitf("Error: %v", err)
	}
	if dbPath == "" {
		dbPath = envCfg.DBPath
	}

	logger, err := logging.New(verbose)
	if err != nil {
		config.Exitf("Error: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := platformotel.Setup(ctx, "persona-engine")
	if err != nil {
		config.Exitf("Error: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("otel shutdown", zap.Error(err))
		}
	}()

	var agentStore storage.AgentStore
	var eventStore storage.TelemetryStore
	if dbPath != "" {
		store, err := storagesqlite.Open(dbPath)
		if err != nil {
			config.Exitf("Error: %v", err)
		}
		defer store.Close()
		agentStore = store
		eventStore = store
	}

	registry := agent.NewRegistry(policy.DefaultConfig(), agentStore, logger)
	svc := simulation.New(registry, telemetry.NewEmitter(eventStore), logger)

	profile, err := loadProfile(profilePath)
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	var scn *scenario.Scenario
	if scenarioPath != "" {
		scn, err = scenario.LoadFile(scenarioPath)
		if err != nil {
			config.Exitf("Error: %v", err)
		}
	}

	var result any
	switch mode {
	case "simulate":
		result, err = svc.Simulate(ctx, simulation.SimulateRequest{
			Profile:       profile,
			Steps:         steps,
			Deterministic: deterministic,
			Seed:          seed,
			Scenario:      scn,
		})
	case "train":
		result, err = svc.Train(ctx, simulation.TrainRequest{
			Profile:         profile,
			Episodes:        episodes,
			StepsPerEpisode: steps,
			Persist:         persist,
			Seed:            seed,
			Scenario:        scn,
		})
	case "interact":
		var partner character.Profile
		partner, err = loadProfile(partnerPath)
		if err != nil {
			config.Exitf("Error: %v", err)
		}
		result, err = svc.Interact(ctx, simulation.InteractRequest{
			Initiator: profile,
			Partner:   partner,
			Rounds:    rounds,
			Seed:      seed,
			Scenario:  scn,
		})
	case "duel":
		var opponent character.Profile
		opponent, err = loadProfile(partnerPath)
		if err != nil {
			config.Exitf("Error: %v", err)
		}
		result, err = svc.Duel(ctx, simulation.DuelRequest{
			Left:   profile,
			Right:  opponent,
			Rounds: rounds,
			Seed:   seed,
		})
	default:
		config.Exitf("Error: unknown mode %q (simulate, train, interact, duel)", mode)
	}
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		config.Exitf("Error: %v", err)
	}
	fmt.Println(string(out))
}

func loadProfile(path string) (character.Profile, error) {
	if path == "" {
		return character.Profile{}, fmt.Errorf("a -profile file is required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return character.Profile{}, fmt.Errorf("read profile: %w", err)
	}

	var input character.Input
	if err := json.Unmarshal(raw, &input); err != nil {
		return character.Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	return character.New(input)
}
