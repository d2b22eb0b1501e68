package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"strategy_arena/pkg/core/agent"
	"strategy_arena/pkg/core/arena"
	"strategy_arena/pkg/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// One-shot CLI runner: creates a simulation arena, runs it to completion, and
// prints the final leaderboard. Useful for exercising the full lifecycle
// without the HTTP server or any external service.
func main() {
	symbols := flag.String("symbols", "AAPL,MSFT,GOOG", "comma-separated instrument list")
	days := flag.Int("days", 30, "simulated trading days")
	mode := flag.String("mode", "debate", "discussion mode: debate, collaboration, review")
	simulation := flag.Bool("simulation", true, "use deterministic mock agents")
	flag.Parse()

	godotenv.Load()

	configData, _ := os.ReadFile("config/models.yaml")
	var agentCfg agent.Config
	yaml.Unmarshal(configData, &agentCfg)
	agentMgr := agent.NewManager(agentCfg)

	cfg := models.ArenaConfig{
		Agents: []models.AgentConfig{
			{ID: "gen-1", Role: models.RoleGenerator},
			{ID: "gen-2", Role: models.RoleGenerator},
			{ID: "rev-1", Role: models.RoleReviewer},
			{ID: "risk-1", Role: models.RoleRisk},
			{ID: "quant-1", Role: models.RoleQuant},
		},
		Symbols:         strings.Split(*symbols, ","),
		DiscussionModes: []models.DiscussionMode{models.DiscussionMode(*mode)},
		SimulatedDays:   *days,
		Simulation:      *simulation,
	}

	manager := arena.NewManager(agentMgr, nil, nil, 0)

	ctx := context.Background()
	orch, err := manager.CreateArena(ctx, "cli", cfg)
	if err != nil {
		fmt.Printf("[FATAL] Failed to create arena: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Arena %s created\n", orch.ID())

	if err := orch.Start(ctx); err != nil {
		fmt.Printf("[FATAL] Failed to start arena: %v\n", err)
		os.Exit(1)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()
	if err := orch.AwaitCompletion(waitCtx); err != nil {
		fmt.Printf("[FATAL] Arena did not finish: %v\n", err)
		os.Exit(1)
	}

	status := orch.Status()
	fmt.Printf("\nArena finished in state %s after %.1fs\n", status.State, status.DurationSeconds)
	fmt.Printf("Strategies: %d active, %d eliminated, %d rounds\n",
		status.ActiveStrategies, status.Eliminated, status.Rounds)
	if status.LastError != "" {
		fmt.Printf("Last error: %s\n", status.LastError)
	}

	fmt.Println("\nLeaderboard:")
	for i, s := range orch.Leaderboard() {
		fmt.Printf("  %2d. %-40s score %6.2f  stage %s\n", i+1, s.Name, s.CurrentScore, s.Stage)
	}
}
