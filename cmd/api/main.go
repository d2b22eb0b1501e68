package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	apiArena "strategy_arena/pkg/api/arena"
	apiConfig "strategy_arena/pkg/api/config"
	"strategy_arena/pkg/core/agent"
	"strategy_arena/pkg/core/arena"
	"strategy_arena/pkg/core/backtest"
	"strategy_arena/pkg/core/store"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize manager from config
	configData, _ := os.ReadFile("config/models.yaml")
	var agentCfg agent.Config
	yaml.Unmarshal(configData, &agentCfg)
	agentMgr := agent.NewManager(agentCfg)

	// Database is optional: without it arenas run in-memory only.
	var repo arena.Repository
	if err := store.InitDB(context.Background()); err != nil {
		fmt.Printf("[WARNING] Database unavailable, running without persistence: %v\n", err)
	} else {
		repo = arena.NewArenaRepo()
		defer store.Close()
	}

	// Backtest service is external; fall back to the synthetic engine when
	// no URL is configured.
	var backtester backtest.Engine
	if url := os.Getenv("BACKTEST_SERVICE_URL"); url != "" {
		backtester = backtest.NewHTTPClient(url)
	} else {
		fmt.Println("[WARNING] BACKTEST_SERVICE_URL not set, using synthetic backtests")
		backtester = backtest.NewSynthetic()
	}

	manager := arena.NewManager(agentMgr, repo, backtester, 2*time.Second)
	handlers := apiArena.NewHandlers(manager)

	// Provider switching endpoints
	configHandler := apiConfig.NewHandler(agentMgr)
	http.HandleFunc("/api/config", configHandler.HandleConfig)
	http.HandleFunc("/api/config/switch", configHandler.HandleSwitch)

	fmt.Println("Registering Arena Endpoints...")
	http.HandleFunc("/api/arena/create", handlers.HandleCreate)
	http.HandleFunc("/api/arena/start", handlers.HandleStart)
	http.HandleFunc("/api/arena/pause", handlers.HandlePause)
	http.HandleFunc("/api/arena/resume", handlers.HandleResume)
	http.HandleFunc("/api/arena/stop", handlers.HandleStop)
	http.HandleFunc("/api/arena/status", handlers.HandleStatus)
	http.HandleFunc("/api/arena/strategies", handlers.HandleStrategies)
	http.HandleFunc("/api/arena/leaderboard", handlers.HandleLeaderboard)
	http.HandleFunc("/api/arena/history", handlers.HandleHistory)
	http.HandleFunc("/api/arena/list", handlers.HandleList)
	http.HandleFunc("/api/arena/stream", handlers.HandleStream)

	fmt.Println("API server starting on :8080...")
	fmt.Println("  - POST /api/arena/create")
	fmt.Println("  - POST /api/arena/start")
	fmt.Println("  - POST /api/arena/pause")
	fmt.Println("  - POST /api/arena/resume")
	fmt.Println("  - POST /api/arena/stop")
	fmt.Println("  - GET  /api/arena/status")
	fmt.Println("  - GET  /api/arena/strategies")
	fmt.Println("  - GET  /api/arena/leaderboard")
	fmt.Println("  - GET  /api/arena/history")
	fmt.Println("  - GET  /api/arena/list")
	fmt.Println("  - GET  /api/arena/stream  (SSE streaming)")

	if err := http.ListenAndServe(":8080", nil); err != nil {
		fmt.Printf("[FATAL] Server failed to start: %v\n", err)
		os.Exit(1)
	}
}
