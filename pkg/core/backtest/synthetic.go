package backtest

import (
	"context"
	"hash/fnv"
	"math/rand"
	"time"

	"strategy_arena/pkg/models"
)

// Synthetic is a deterministic in-process stand-in for the external backtest
// service. Results are derived from a hash of the strategy ID, so the same
// strategy always backtests to the same numbers. Used in simulation mode and
// in tests.
type Synthetic struct {
	// Latency, when set, is slept before returning to mimic a remote call.
	Latency time.Duration
}

var _ Engine = (*Synthetic)(nil)

func NewSynthetic() *Synthetic {
	return &Synthetic{}
}

func (s *Synthetic) Run(ctx context.Context, strategyID string, symbols []string, from, to time.Time, initialCapital float64) (*models.BacktestResult, error) {
	if s.Latency > 0 {
		select {
		case <-time.After(s.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	h := fnv.New64a()
	h.Write([]byte(strategyID))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	annualized := -0.10 + rng.Float64()*0.40 // -10% .. +30%
	volatility := 0.10 + rng.Float64()*0.25
	winRate := 0.35 + rng.Float64()*0.30
	sharpe := annualized / volatility

	years := to.Sub(from).Hours() / (24 * 365)
	if years <= 0 {
		years = 1
	}

	return &models.BacktestResult{
		StrategyID:       strategyID,
		AnnualizedReturn: annualized,
		TotalReturn:      annualized * years,
		ExcessReturn:     annualized - 0.05,
		MaxDrawdown:      -(0.05 + rng.Float64()*0.25),
		SharpeRatio:      sharpe,
		SortinoRatio:     sharpe * 1.2,
		Volatility:       volatility,
		WinRate:          winRate,
		ProfitFactor:     0.8 + rng.Float64()*1.2,
		TradeCount:       20 + rng.Intn(180),
		StartDate:        from,
		EndDate:          to,
	}, nil
}
