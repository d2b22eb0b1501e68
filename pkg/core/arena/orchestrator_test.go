package arena

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"strategy_arena/pkg/core/stream"
	"strategy_arena/pkg/models"
)

func simulationConfig(days int) models.ArenaConfig {
	return models.ArenaConfig{
		Agents: []models.AgentConfig{
			{ID: "gen-1", Role: models.RoleGenerator},
			{ID: "gen-2", Role: models.RoleGenerator},
			{ID: "rev-1", Role: models.RoleReviewer},
			{ID: "risk-1", Role: models.RoleRisk},
			{ID: "quant-1", Role: models.RoleQuant},
		},
		Symbols:       []string{"AAPL", "MSFT"},
		SimulatedDays: days,
		Simulation:    true,
	}
}

func newTestManager() *Manager {
	return NewManager(nil, nil, nil, 0)
}

func TestCreateArenaValidation(t *testing.T) {
	manager := newTestManager()
	ctx := context.Background()

	var configErr *ConfigError

	_, err := manager.CreateArena(ctx, "u-1", models.ArenaConfig{Symbols: []string{"AAPL"}})
	if !errors.As(err, &configErr) {
		t.Errorf("Expected ConfigError for empty agent roster, got %v", err)
	}

	cfg := simulationConfig(5)
	cfg.Symbols = nil
	_, err = manager.CreateArena(ctx, "u-1", cfg)
	if !errors.As(err, &configErr) {
		t.Errorf("Expected ConfigError for empty symbols, got %v", err)
	}

	cfg = simulationConfig(5)
	cfg.Agents[1].ID = "gen-1"
	_, err = manager.CreateArena(ctx, "u-1", cfg)
	if !errors.As(err, &configErr) {
		t.Errorf("Expected ConfigError for duplicate agent id, got %v", err)
	}
}

func TestPauseOnCreatedFails(t *testing.T) {
	manager := newTestManager()
	ctx := context.Background()

	orch, err := manager.CreateArena(ctx, "u-1", simulationConfig(5))
	if err != nil {
		t.Fatalf("CreateArena failed: %v", err)
	}
	if orch.State() != models.StateCreated {
		t.Fatalf("Expected created state, got %s", orch.State())
	}

	err = orch.Pause(ctx)
	var stateErr *StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("Expected StateError, got %v", err)
	}
	if stateErr.Operation != "pause" || stateErr.Current != models.StateCreated {
		t.Errorf("StateError should carry operation and current state, got %+v", stateErr)
	}
	if orch.State() != models.StateCreated {
		t.Errorf("Failed pause must leave state unchanged, got %s", orch.State())
	}
}

func TestResumeOnCreatedFails(t *testing.T) {
	manager := newTestManager()
	ctx := context.Background()

	orch, err := manager.CreateArena(ctx, "u-1", simulationConfig(5))
	if err != nil {
		t.Fatalf("CreateArena failed: %v", err)
	}

	var stateErr *StateError
	if err := orch.Resume(ctx); !errors.As(err, &stateErr) {
		t.Errorf("Expected StateError resuming a created arena, got %v", err)
	}
}

func TestFullSimulationRun(t *testing.T) {
	manager := newTestManager()
	ctx := context.Background()

	// 35 days covers daily, weekly (7, 14, ...) and one monthly cycle (30).
	orch, err := manager.CreateArena(ctx, "u-1", simulationConfig(35))
	if err != nil {
		t.Fatalf("CreateArena failed: %v", err)
	}
	if err := orch.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := orch.AwaitCompletion(waitCtx); err != nil {
		t.Fatalf("Run did not finish: %v", err)
	}

	status := orch.Status()
	if status.State != models.StateCompleted {
		t.Fatalf("Expected completed, got %s (last error: %s)", status.State, status.LastError)
	}
	if status.Rounds == 0 {
		t.Error("Expected at least one discussion round")
	}
	if status.ActiveStrategies == 0 {
		t.Error("Expected surviving strategies")
	}
	if status.ActiveStrategies+status.Eliminated != status.TotalStrategies {
		t.Errorf("Strategy accounting mismatch: %d active + %d eliminated != %d total",
			status.ActiveStrategies, status.Eliminated, status.TotalStrategies)
	}

	// The monthly cycle at day 30 must have eliminated at least one strategy.
	if status.Eliminated == 0 {
		t.Error("Expected monthly elimination to remove at least one strategy")
	}

	leaderboard := orch.Leaderboard()
	for i := 1; i < len(leaderboard); i++ {
		if leaderboard[i-1].CurrentScore < leaderboard[i].CurrentScore {
			t.Errorf("Leaderboard not sorted at %d: %f < %f",
				i, leaderboard[i-1].CurrentScore, leaderboard[i].CurrentScore)
		}
	}

	// Starting a completed arena is illegal.
	var stateErr *StateError
	if err := orch.Start(ctx); !errors.As(err, &stateErr) {
		t.Errorf("Expected StateError starting a completed arena, got %v", err)
	}
}

func waitForState(t *testing.T, orch *Orchestrator, want func(models.ArenaState) bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if want(orch.State()) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for state, current %s", orch.State())
}

func TestPauseResumeStop(t *testing.T) {
	manager := NewManager(nil, nil, nil, 20*time.Millisecond)
	ctx := context.Background()

	orch, err := manager.CreateArena(ctx, "u-1", simulationConfig(100000))
	if err != nil {
		t.Fatalf("CreateArena failed: %v", err)
	}
	if err := orch.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitForState(t, orch, func(s models.ArenaState) bool {
		return s == models.StateSimulating || s == models.StateEvaluating
	})

	if err := orch.Pause(ctx); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if orch.State() != models.StatePaused {
		t.Fatalf("Expected paused, got %s", orch.State())
	}

	// The run goroutine must actually halt.
	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := orch.AwaitCompletion(waitCtx); err != nil {
		cancel()
		t.Fatalf("Run goroutine did not halt on pause: %v", err)
	}
	cancel()

	if err := orch.Resume(ctx); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	waitForState(t, orch, func(s models.ArenaState) bool {
		return s == models.StateSimulating || s == models.StateEvaluating
	})

	if err := orch.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if orch.State() != models.StateCompleted {
		t.Errorf("Expected completed after stop, got %s", orch.State())
	}
	if orch.CompletedAt() == nil {
		t.Error("Stopped arena must carry a completion timestamp")
	}

	// Stop is idempotent only until terminal; a second call is a state error.
	var stateErr *StateError
	if err := orch.Stop(ctx); !errors.As(err, &stateErr) {
		t.Errorf("Expected StateError stopping a completed arena, got %v", err)
	}
}

func TestRapidPauseResume(t *testing.T) {
	manager := NewManager(nil, nil, nil, 5*time.Millisecond)
	ctx := context.Background()

	orch, err := manager.CreateArena(ctx, "u-1", simulationConfig(100000))
	if err != nil {
		t.Fatalf("CreateArena failed: %v", err)
	}
	if err := orch.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitForState(t, orch, func(s models.ArenaState) bool {
		return s == models.StateSimulating || s == models.StateEvaluating
	})

	// Pause and resume back to back without waiting for the run goroutine to
	// drain. Resume must serialize on the previous run; at no point may two
	// run loops drive the same arena.
	pauses := 0
	for i := 0; i < 60 && pauses < 10; i++ {
		if err := orch.Pause(ctx); err != nil {
			// Right after a resume the arena may still be flipping out of
			// paused; only a StateError is acceptable here.
			var stateErr *StateError
			if !errors.As(err, &stateErr) {
				t.Fatalf("Pause %d: %v", i, err)
			}
			time.Sleep(2 * time.Millisecond)
			continue
		}
		pauses++
		if err := orch.Resume(ctx); err != nil {
			t.Fatalf("Resume after pause %d failed: %v", pauses, err)
		}
	}
	if pauses == 0 {
		t.Fatal("Never managed to pause the running arena")
	}

	if err := orch.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if orch.State() != models.StateCompleted {
		t.Errorf("Expected completed after stop, got %s", orch.State())
	}

	// After stop every run goroutine must have exited.
	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := orch.AwaitCompletion(waitCtx); err != nil {
		t.Fatalf("Run goroutine still alive after stop: %v", err)
	}
}

func TestQueriesDuringRun(t *testing.T) {
	manager := newTestManager()
	ctx := context.Background()

	orch, err := manager.CreateArena(ctx, "u-1", simulationConfig(35))
	if err != nil {
		t.Fatalf("CreateArena failed: %v", err)
	}
	if err := orch.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Hammer the read API for the whole run; with the race detector on this
	// fails if the run loop mutates the aggregate outside the lock.
	stopPolling := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stopPolling:
					return
				default:
				}
				orch.Status()
				orch.Leaderboard()
				orch.Strategies(false)
				orch.History()
			}
		}()
	}

	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	err = orch.AwaitCompletion(waitCtx)
	close(stopPolling)
	wg.Wait()
	if err != nil {
		t.Fatalf("Run did not finish: %v", err)
	}
	if got := orch.State(); got != models.StateCompleted {
		t.Fatalf("Expected completed, got %s", got)
	}

	// Query results are copies; mutating one must not leak back.
	lb := orch.Leaderboard()
	if len(lb) == 0 {
		t.Fatal("Expected a non-empty leaderboard")
	}
	lb[0].CurrentScore = -1
	if orch.Leaderboard()[0].CurrentScore == -1 {
		t.Error("Leaderboard must return copies, not the live records")
	}
}

func TestLeaderboardStableTies(t *testing.T) {
	hub := stream.NewHub("arena-x", nil)
	a := &models.Arena{
		ID:    "arena-x",
		State: models.StateCompleted,
		Strategies: []*models.ArenaStrategy{
			{ID: "s-0", Name: "First", CurrentScore: 50, IsActive: true},
			{ID: "s-1", Name: "Second", CurrentScore: 50, IsActive: true},
			{ID: "s-2", Name: "Third", CurrentScore: 80, IsActive: true},
		},
	}
	orch := NewOrchestrator(a, nil, nil, hub, nil, nil, 0)

	lb := orch.Leaderboard()
	if lb[0].ID != "s-2" {
		t.Errorf("Expected s-2 first, got %s", lb[0].ID)
	}
	// Tied scores preserve insertion order.
	if lb[1].ID != "s-0" || lb[2].ID != "s-1" {
		t.Errorf("Tie order not preserved: got %s, %s", lb[1].ID, lb[2].ID)
	}
}

func TestDeleteArenaStopsRun(t *testing.T) {
	manager := NewManager(nil, nil, nil, 20*time.Millisecond)
	ctx := context.Background()

	orch, err := manager.CreateArena(ctx, "u-1", simulationConfig(100000))
	if err != nil {
		t.Fatalf("CreateArena failed: %v", err)
	}
	if err := orch.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitForState(t, orch, func(s models.ArenaState) bool {
		return s == models.StateSimulating || s == models.StateEvaluating
	})

	if err := manager.DeleteArena(ctx, orch.ID()); err != nil {
		t.Fatalf("DeleteArena failed: %v", err)
	}
	if _, exists := manager.GetArena(orch.ID()); exists {
		t.Error("Deleted arena should not be retrievable")
	}
	if orch.State() != models.StateCompleted {
		t.Errorf("Deleted arena should be stopped, got %s", orch.State())
	}

	if err := manager.DeleteArena(ctx, "missing"); err == nil {
		t.Error("Expected error deleting unknown arena")
	}
}
