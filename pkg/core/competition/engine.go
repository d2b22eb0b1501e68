package competition

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"strategy_arena/pkg/core/backtest"
	"strategy_arena/pkg/core/stream"
	"strategy_arena/pkg/models"

	"github.com/google/uuid"
)

// Engine owns the competitive half of an arena: running backtests, promoting
// strategies into simulated trading, periodic evaluation, elimination, and
// revival-based replenishment. Fresh-generation replenishment is the arena
// orchestrator's responsibility.
type Engine struct {
	backtester backtest.Engine
	scorer     *Scorer
	publisher  stream.Publisher
	config     models.ArenaConfig

	portfolios map[string]*models.SimulatedPortfolio
}

func NewEngine(backtester backtest.Engine, scorer *Scorer, publisher stream.Publisher, config models.ArenaConfig) *Engine {
	return &Engine{
		backtester: backtester,
		scorer:     scorer,
		publisher:  publisher,
		config:     config,
		portfolios: make(map[string]*models.SimulatedPortfolio),
	}
}

func (e *Engine) publishSystem(content string, metadata map[string]interface{}) {
	if e.publisher != nil {
		e.publisher.PublishSystem(content, metadata)
	}
}

func (e *Engine) publishError(content string, metadata map[string]interface{}) {
	if e.publisher != nil {
		e.publisher.PublishError(content, metadata)
	}
}

// Portfolio returns the simulated portfolio record for a strategy, if any.
func (e *Engine) Portfolio(strategyID string) (*models.SimulatedPortfolio, bool) {
	p, ok := e.portfolios[strategyID]
	return p, ok
}

// RunBacktestStage backtests every strategy. A failing backtest substitutes
// the documented worst-case synthetic result; it never aborts the stage.
func (e *Engine) RunBacktestStage(ctx context.Context, strategies []*models.ArenaStrategy) map[string]*models.BacktestResult {
	results := make(map[string]*models.BacktestResult, len(strategies))

	to := time.Now()
	from := to.AddDate(0, 0, -e.config.BacktestDays)

	for _, s := range strategies {
		result, err := e.backtester.Run(ctx, s.ID, s.Symbols, from, to, e.config.InitialCapital)
		if err != nil {
			e.publishError(fmt.Sprintf("Backtest failed for %s, substituting worst-case result: %v", s.Name, err),
				map[string]interface{}{"target_strategy_id": s.ID})
			result = backtest.WorstCaseResult(s.ID)
		}
		results[s.ID] = result
		e.publishSystem(fmt.Sprintf("Backtest complete for %s: annualized return %.2f%%, sharpe %.2f",
			s.Name, result.AnnualizedReturn*100, result.SharpeRatio),
			map[string]interface{}{"target_strategy_id": s.ID})
	}

	return results
}

// PromoteToSimulated scores strategies on backtest-only results, ranks them,
// and promotes every strategy with positive annualized return or a total
// score above 40. Promoted strategies receive a synthetic portfolio record.
func (e *Engine) PromoteToSimulated(strategies []*models.ArenaStrategy, results map[string]*models.BacktestResult) []*models.ArenaStrategy {
	type scored struct {
		strategy *models.ArenaStrategy
		score    models.ComprehensiveScore
	}

	ranked := make([]scored, 0, len(strategies))
	for _, s := range strategies {
		result, ok := results[s.ID]
		if !ok {
			continue
		}
		ranked = append(ranked, scored{strategy: s, score: e.scorer.Calculate(result, nil)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score.TotalScore > ranked[j].score.TotalScore
	})

	var promoted []*models.ArenaStrategy
	for rank, entry := range ranked {
		entry.strategy.CurrentScore = entry.score.TotalScore
		entry.strategy.CurrentRank = rank + 1

		result := results[entry.strategy.ID]
		if result.AnnualizedReturn > 0 || entry.score.TotalScore > 40 {
			entry.strategy.Stage = models.StageSimulated
			e.portfolios[entry.strategy.ID] = &models.SimulatedPortfolio{
				StrategyID:     entry.strategy.ID,
				InitialCapital: e.config.InitialCapital,
				CurrentValue:   e.config.InitialCapital,
				StartedAt:      time.Now(),
			}
			promoted = append(promoted, entry.strategy)
		}
	}

	e.publishSystem(fmt.Sprintf("Promoted %d of %d strategies to simulated trading", len(promoted), len(ranked)), nil)
	return promoted
}

// EvaluateStrategies scores every active strategy for the given period,
// writes rank and score back onto each strategy, and returns the immutable
// evaluation records. Ties preserve insertion order.
func (e *Engine) EvaluateStrategies(strategies []*models.ArenaStrategy, btResults map[string]*models.BacktestResult, simResults map[string]*models.SimulatedResult, period models.EvaluationPeriod) []models.StrategyEvaluation {
	type scored struct {
		strategy *models.ArenaStrategy
		score    models.ComprehensiveScore
	}

	ranked := make([]scored, 0, len(strategies))
	for _, s := range strategies {
		if !s.IsActive {
			continue
		}
		bt, ok := btResults[s.ID]
		if !ok {
			// Conservative default: a strategy without any backtest record
			// scores as worst-case rather than being skipped.
			bt = backtest.WorstCaseResult(s.ID)
		}
		ranked = append(ranked, scored{strategy: s, score: e.scorer.Calculate(bt, simResults[s.ID])})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score.TotalScore > ranked[j].score.TotalScore
	})

	now := time.Now()
	evaluations := make([]models.StrategyEvaluation, 0, len(ranked))
	for rank, entry := range ranked {
		entry.strategy.CurrentScore = entry.score.TotalScore
		entry.strategy.CurrentRank = rank + 1
		evaluations = append(evaluations, models.StrategyEvaluation{
			StrategyID: entry.strategy.ID,
			ArenaID:    entry.strategy.ArenaID,
			Period:     period,
			Score:      entry.score,
			Rank:       rank + 1,
			CreatedAt:  now,
		})
	}

	return evaluations
}

// eliminationRate returns the configured rate for the period; daily periods
// never eliminate.
func (e *Engine) eliminationRate(period models.EvaluationPeriod) float64 {
	switch period {
	case models.PeriodWeekly:
		return e.config.WeeklyEliminationRate
	case models.PeriodMonthly:
		return e.config.MonthlyEliminationRate
	default:
		return 0
	}
}

// EliminateStrategies flags the lowest-scoring ceil(active*rate) strategies
// inactive, clamped so survivors never drop below the configured floor.
// Eliminated strategies are returned for the caller to move into history;
// they are never deleted.
func (e *Engine) EliminateStrategies(strategies []*models.ArenaStrategy, evaluations []models.StrategyEvaluation, period models.EvaluationPeriod) []*models.ArenaStrategy {
	rate := e.eliminationRate(period)
	if rate <= 0 {
		return nil
	}

	active := make([]*models.ArenaStrategy, 0, len(strategies))
	for _, s := range strategies {
		if s.IsActive {
			active = append(active, s)
		}
	}

	count := int(math.Ceil(float64(len(active)) * rate))
	if len(active)-count < e.config.MinStrategies {
		count = len(active) - e.config.MinStrategies
	}
	if count <= 0 {
		return nil
	}

	// Rank by latest evaluation score ascending; worst first.
	scoreFor := make(map[string]float64, len(evaluations))
	for _, ev := range evaluations {
		scoreFor[ev.StrategyID] = ev.Score.TotalScore
	}
	sort.SliceStable(active, func(i, j int) bool {
		return scoreFor[active[i].ID] < scoreFor[active[j].ID]
	})

	now := time.Now()
	eliminated := make([]*models.ArenaStrategy, 0, count)
	for _, s := range active[:count] {
		s.IsActive = false
		s.EliminatedAt = &now
		eliminated = append(eliminated, s)
		e.publishSystem(fmt.Sprintf("Strategy %s eliminated in %s evaluation (score %.1f)", s.Name, period, s.CurrentScore),
			map[string]interface{}{"target_strategy_id": s.ID})
	}

	return eliminated
}

// ReplenishStrategies revives the highest-scoring eliminated strategies to
// help refill the pool toward targetCount. The revive share is
// needed*(1-newRatio); the remaining "new" share is left for fresh generation
// by the orchestration layer.
func (e *Engine) ReplenishStrategies(currentCount, targetCount int, eliminatedHistory []*models.ArenaStrategy) []*models.ArenaStrategy {
	needed := targetCount - currentCount
	if needed <= 0 {
		return nil
	}

	reviveShare := int(float64(needed) * (1 - e.config.NewStrategyRatio))
	if reviveShare <= 0 {
		return nil
	}

	candidates := make([]*models.ArenaStrategy, 0, len(eliminatedHistory))
	for _, s := range eliminatedHistory {
		if !s.IsActive {
			candidates = append(candidates, s)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].CurrentScore > candidates[j].CurrentScore
	})

	if reviveShare > len(candidates) {
		reviveShare = len(candidates)
	}

	now := time.Now()
	revived := make([]*models.ArenaStrategy, 0, reviveShare)
	for _, parent := range candidates[:reviveShare] {
		// The eliminated record stays in history untouched; revival creates a
		// new strategy value whose lineage points back at it.
		s := parent.Clone()
		s.ID = uuid.New().String()
		s.IsActive = true
		s.Stage = models.StageBacktest
		s.EliminatedAt = nil
		s.RefinementHistory = append(s.RefinementHistory, models.RefinementRecord{
			Action:    models.ActionRevive,
			ParentID:  parent.ID,
			Summary:   "revived from eliminated pool during replenishment",
			Timestamp: now,
		})
		revived = append(revived, s)
		e.publishSystem(fmt.Sprintf("Revived strategy %s (score %.1f)", s.Name, s.CurrentScore),
			map[string]interface{}{"target_strategy_id": s.ID})
	}

	return revived
}
