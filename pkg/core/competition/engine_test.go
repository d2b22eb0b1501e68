package competition

import (
	"context"
	"fmt"
	"testing"
	"time"

	"strategy_arena/pkg/core/backtest"
	"strategy_arena/pkg/models"
)

// failingBacktester fails for a chosen strategy ID and succeeds for the rest.
type failingBacktester struct {
	failID string
}

func (b *failingBacktester) Run(ctx context.Context, strategyID string, symbols []string, from, to time.Time, initialCapital float64) (*models.BacktestResult, error) {
	if strategyID == b.failID {
		return nil, fmt.Errorf("simulator unreachable")
	}
	return &models.BacktestResult{
		StrategyID:       strategyID,
		AnnualizedReturn: 0.10,
		MaxDrawdown:      -0.08,
		SharpeRatio:      1.0,
		Volatility:       0.15,
		WinRate:          0.55,
		ProfitFactor:     1.4,
	}, nil
}

func testConfig() models.ArenaConfig {
	cfg := models.ArenaConfig{
		Agents:  []models.AgentConfig{{ID: "a1", Role: models.RoleGenerator}},
		Symbols: []string{"AAPL"},
	}
	cfg.Normalize()
	return cfg
}

func makeStrategies(n int) []*models.ArenaStrategy {
	out := make([]*models.ArenaStrategy, n)
	for i := range out {
		out[i] = &models.ArenaStrategy{
			ID:       fmt.Sprintf("s-%d", i),
			Name:     fmt.Sprintf("Strategy %d", i),
			IsActive: true,
			Stage:    models.StageBacktest,
		}
	}
	return out
}

func newTestEngine(cfg models.ArenaConfig, bt backtest.Engine) *Engine {
	if bt == nil {
		bt = backtest.NewSynthetic()
	}
	return NewEngine(bt, NewScorer(cfg.ScoreWeights), nil, cfg)
}

func TestRunBacktestStageSubstitutesWorstCase(t *testing.T) {
	engine := newTestEngine(testConfig(), &failingBacktester{failID: "s-1"})
	strategies := makeStrategies(3)

	results := engine.RunBacktestStage(context.Background(), strategies)

	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	failed := results["s-1"]
	if failed == nil {
		t.Fatal("Failed strategy should still have a result")
	}
	if failed.AnnualizedReturn >= 0 {
		t.Errorf("Expected worst-case negative return, got %f", failed.AnnualizedReturn)
	}
	if results["s-0"].AnnualizedReturn != 0.10 {
		t.Errorf("Healthy strategy result should pass through, got %f", results["s-0"].AnnualizedReturn)
	}
}

func TestPromoteToSimulated(t *testing.T) {
	engine := newTestEngine(testConfig(), nil)
	strategies := makeStrategies(2)

	results := map[string]*models.BacktestResult{
		"s-0": {StrategyID: "s-0", AnnualizedReturn: 0.12, MaxDrawdown: -0.05, SharpeRatio: 1.5, Volatility: 0.1, WinRate: 0.6, ProfitFactor: 1.8},
		"s-1": {StrategyID: "s-1", AnnualizedReturn: -0.40, MaxDrawdown: -0.45, SharpeRatio: -2, Volatility: 0.6, WinRate: 0.2, ProfitFactor: 0.3},
	}

	promoted := engine.PromoteToSimulated(strategies, results)

	if len(promoted) != 1 || promoted[0].ID != "s-0" {
		t.Fatalf("Expected only s-0 promoted, got %v", promoted)
	}
	if promoted[0].Stage != models.StageSimulated {
		t.Errorf("Expected stage simulated, got %s", promoted[0].Stage)
	}
	p, ok := engine.Portfolio("s-0")
	if !ok {
		t.Fatal("Promoted strategy should have a portfolio")
	}
	if p.CurrentValue != p.InitialCapital {
		t.Errorf("Fresh portfolio should start at initial capital, got %f", p.CurrentValue)
	}
	if _, ok := engine.Portfolio("s-1"); ok {
		t.Error("Unpromoted strategy should not have a portfolio")
	}
}

func TestEvaluateRanksAndWritesBack(t *testing.T) {
	engine := newTestEngine(testConfig(), nil)
	strategies := makeStrategies(3)

	results := map[string]*models.BacktestResult{
		"s-0": {AnnualizedReturn: 0.05, MaxDrawdown: -0.10, SharpeRatio: 0.5, Volatility: 0.2, WinRate: 0.5, ProfitFactor: 1.1},
		"s-1": {AnnualizedReturn: 0.20, MaxDrawdown: -0.05, SharpeRatio: 2.0, Volatility: 0.12, WinRate: 0.65, ProfitFactor: 2.0},
		// s-2 has no backtest record and must fall back to worst-case.
	}

	evaluations := engine.EvaluateStrategies(strategies, results, nil, models.PeriodDaily)

	if len(evaluations) != 3 {
		t.Fatalf("Expected 3 evaluations, got %d", len(evaluations))
	}
	if evaluations[0].StrategyID != "s-1" {
		t.Errorf("Expected s-1 ranked first, got %s", evaluations[0].StrategyID)
	}
	if evaluations[2].StrategyID != "s-2" {
		t.Errorf("Expected record-less s-2 ranked last, got %s", evaluations[2].StrategyID)
	}
	for _, s := range strategies {
		if s.CurrentRank == 0 {
			t.Errorf("Strategy %s should have rank written back", s.ID)
		}
	}
	if strategies[1].CurrentRank != 1 {
		t.Errorf("Expected s-1 rank 1, got %d", strategies[1].CurrentRank)
	}
}

func TestEliminateClampsToFloor(t *testing.T) {
	cfg := testConfig()
	cfg.WeeklyEliminationRate = 0.2
	cfg.MinStrategies = 4
	engine := newTestEngine(cfg, nil)

	strategies := makeStrategies(5)
	evaluations := make([]models.StrategyEvaluation, len(strategies))
	for i, s := range strategies {
		evaluations[i] = models.StrategyEvaluation{
			StrategyID: s.ID,
			Score:      models.ComprehensiveScore{TotalScore: float64(10 * (i + 1))},
		}
	}

	eliminated := engine.EliminateStrategies(strategies, evaluations, models.PeriodWeekly)

	// ceil(5*0.2) = 1, and 5-1=4 is exactly the floor.
	if len(eliminated) != 1 {
		t.Fatalf("Expected exactly 1 elimination, got %d", len(eliminated))
	}
	if eliminated[0].ID != "s-0" {
		t.Errorf("Expected lowest-scoring s-0 eliminated, got %s", eliminated[0].ID)
	}
	if eliminated[0].IsActive {
		t.Error("Eliminated strategy must be inactive")
	}
	if eliminated[0].EliminatedAt == nil {
		t.Error("Eliminated strategy must carry an elimination timestamp")
	}

	survivors := 0
	for _, s := range strategies {
		if s.IsActive {
			survivors++
		}
	}
	if survivors != 4 {
		t.Errorf("Expected 4 survivors, got %d", survivors)
	}
}

func TestEliminateAtFloorDoesNothing(t *testing.T) {
	cfg := testConfig()
	cfg.WeeklyEliminationRate = 0.2
	cfg.MinStrategies = 4
	engine := newTestEngine(cfg, nil)

	strategies := makeStrategies(4)
	eliminated := engine.EliminateStrategies(strategies, nil, models.PeriodWeekly)
	if len(eliminated) != 0 {
		t.Errorf("Expected no eliminations at the floor, got %d", len(eliminated))
	}
}

func TestEliminateDailyIsNoop(t *testing.T) {
	engine := newTestEngine(testConfig(), nil)
	strategies := makeStrategies(10)
	if eliminated := engine.EliminateStrategies(strategies, nil, models.PeriodDaily); len(eliminated) != 0 {
		t.Errorf("Daily period must never eliminate, got %d", len(eliminated))
	}
}

func TestReplenishRevivesBestEliminated(t *testing.T) {
	cfg := testConfig()
	cfg.NewStrategyRatio = 0.7
	engine := newTestEngine(cfg, nil)

	now := time.Now()
	history := make([]*models.ArenaStrategy, 5)
	for i := range history {
		history[i] = &models.ArenaStrategy{
			ID:           fmt.Sprintf("dead-%d", i),
			Name:         fmt.Sprintf("Dead %d", i),
			CurrentScore: float64(10 * (i + 1)),
			EliminatedAt: &now,
		}
	}

	// needed = 10, revive share = int(10 * 0.3) = 3
	revived := engine.ReplenishStrategies(0, 10, history)

	if len(revived) != 3 {
		t.Fatalf("Expected 3 revived strategies, got %d", len(revived))
	}
	if revived[0].Name != "Dead 4" {
		t.Errorf("Expected highest-scoring strategy revived first, got %s", revived[0].Name)
	}
	for _, s := range revived {
		if !s.IsActive {
			t.Errorf("Revived strategy %s must be active", s.ID)
		}
		if s.Stage != models.StageBacktest {
			t.Errorf("Revived strategy %s must restart at the backtest stage", s.ID)
		}
		if s.EliminatedAt != nil {
			t.Errorf("Revived strategy %s must clear its elimination timestamp", s.ID)
		}

		last := s.RefinementHistory[len(s.RefinementHistory)-1]
		if last.Action != models.ActionRevive {
			t.Errorf("Expected revive lineage record, got %s", last.Action)
		}
		if last.ParentID == s.ID || last.ParentID == "" {
			t.Errorf("Revived strategy must reference its parent, got %q", last.ParentID)
		}
	}

	// The eliminated records themselves are untouched.
	for _, s := range history {
		if s.IsActive {
			t.Errorf("History entry %s must stay inactive", s.ID)
		}
	}
}

func TestReplenishNothingNeeded(t *testing.T) {
	engine := newTestEngine(testConfig(), nil)
	if revived := engine.ReplenishStrategies(10, 10, nil); len(revived) != 0 {
		t.Errorf("Expected no revival when pool is full, got %d", len(revived))
	}
}
