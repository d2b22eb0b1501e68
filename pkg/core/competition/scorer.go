package competition

import (
	"math"

	"strategy_arena/pkg/models"
)

// Scorer maps backtest/simulation results to the four-dimension weighted
// comprehensive score. Calculate is a pure function: identical inputs yield
// identical scores.
type Scorer struct {
	weights models.ScoreWeights
}

func NewScorer(weights models.ScoreWeights) *Scorer {
	if weights.IsZero() {
		weights = models.DefaultScoreWeights()
	}
	return &Scorer{weights: weights}
}

func clamp(lo, hi, v float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Calculate scores one strategy. sim may be nil when the strategy has not
// entered the simulated stage yet; the adaptability dimension then falls back
// to a backtest-robustness estimate.
func (s *Scorer) Calculate(bt *models.BacktestResult, sim *models.SimulatedResult) models.ComprehensiveScore {
	ret := s.returnScore(bt)
	risk := s.riskScore(bt)
	stability := s.stabilityScore(bt)
	adaptability := s.adaptabilityScore(bt, sim)

	total := ret.Score*ret.Weight +
		risk.Score*risk.Weight +
		stability.Score*stability.Weight +
		adaptability.Score*adaptability.Weight

	return models.ComprehensiveScore{
		Return:       ret,
		Risk:         risk,
		Stability:    stability,
		Adaptability: adaptability,
		TotalScore:   total,
	}
}

func (s *Scorer) returnScore(bt *models.BacktestResult) models.DimensionScore {
	base := clamp(0, 100, 50+bt.AnnualizedReturn*250)
	bonus := clamp(0, 20, bt.ExcessReturn*100)
	score := math.Min(100, base+bonus)

	return models.DimensionScore{
		Score:  score,
		Weight: s.weights.Return,
		Metrics: map[string]float64{
			"annualized_return": bt.AnnualizedReturn,
			"excess_return":     bt.ExcessReturn,
			"base_score":        base,
			"excess_bonus":      bonus,
		},
	}
}

func (s *Scorer) riskScore(bt *models.BacktestResult) models.DimensionScore {
	ddScore := math.Max(0, 100-math.Abs(bt.MaxDrawdown)*200)
	sharpeScore := clamp(0, 100, 25+bt.SharpeRatio*37.5)
	score := 0.5*ddScore + 0.5*sharpeScore

	return models.DimensionScore{
		Score:  score,
		Weight: s.weights.Risk,
		Metrics: map[string]float64{
			"max_drawdown":   bt.MaxDrawdown,
			"sharpe_ratio":   bt.SharpeRatio,
			"drawdown_score": ddScore,
			"sharpe_score":   sharpeScore,
		},
	}
}

func (s *Scorer) stabilityScore(bt *models.BacktestResult) models.DimensionScore {
	volScore := math.Max(0, 100-bt.Volatility*200)
	winScore := clamp(0, 100, (bt.WinRate-0.4)*500)
	pfScore := clamp(0, 100, bt.ProfitFactor*50)
	score := (volScore + winScore + pfScore) / 3

	return models.DimensionScore{
		Score:  score,
		Weight: s.weights.Stability,
		Metrics: map[string]float64{
			"volatility":          bt.Volatility,
			"win_rate":            bt.WinRate,
			"profit_factor":       bt.ProfitFactor,
			"volatility_score":    volScore,
			"win_rate_score":      winScore,
			"profit_factor_score": pfScore,
		},
	}
}

func (s *Scorer) adaptabilityScore(bt *models.BacktestResult, sim *models.SimulatedResult) models.DimensionScore {
	if sim != nil {
		consistency := 0.5
		if bt.AnnualizedReturn != 0 {
			consistency = 1 - math.Abs(sim.AnnualizedReturn-bt.AnnualizedReturn)/math.Abs(bt.AnnualizedReturn)
		}
		score := clamp(0, 100, consistency*100)
		return models.DimensionScore{
			Score:  score,
			Weight: s.weights.Adaptability,
			Metrics: map[string]float64{
				"backtest_return":  bt.AnnualizedReturn,
				"simulated_return": sim.AnnualizedReturn,
				"consistency":      consistency,
			},
		}
	}

	// No simulated record yet: estimate robustness from the backtest alone.
	score := clamp(0, 100, (bt.SharpeRatio*25+bt.WinRate*100)/2)
	return models.DimensionScore{
		Score:  score,
		Weight: s.weights.Adaptability,
		Metrics: map[string]float64{
			"sharpe_ratio": bt.SharpeRatio,
			"win_rate":     bt.WinRate,
		},
	}
}
