package models

import "time"

// BacktestResult is the performance summary returned by the external
// backtest simulator. The simulator's matching and P&L algorithms are a
// black box to this module.
type BacktestResult struct {
	StrategyID       string    `json:"strategy_id"`
	AnnualizedReturn float64   `json:"annualized_return"`
	TotalReturn      float64   `json:"total_return"`
	ExcessReturn     float64   `json:"excess_return"`
	MaxDrawdown      float64   `json:"max_drawdown"` // negative fraction, e.g. -0.10
	SharpeRatio      float64   `json:"sharpe_ratio"`
	SortinoRatio     float64   `json:"sortino_ratio"`
	Volatility       float64   `json:"volatility"`
	WinRate          float64   `json:"win_rate"`
	ProfitFactor     float64   `json:"profit_factor"`
	TradeCount       int       `json:"trade_count"`
	StartDate        time.Time `json:"start_date"`
	EndDate          time.Time `json:"end_date"`
}

// SimulatedResult summarizes a strategy's simulated-trading performance.
type SimulatedResult struct {
	StrategyID       string  `json:"strategy_id"`
	InitialCapital   float64 `json:"initial_capital"`
	CurrentValue     float64 `json:"current_value"`
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	DaysRunning      int     `json:"days_running"`
}

// SimulatedPortfolio is the synthetic portfolio record initialized when a
// strategy is promoted past the backtest stage.
type SimulatedPortfolio struct {
	StrategyID     string    `json:"strategy_id"`
	InitialCapital float64   `json:"initial_capital"`
	CurrentValue   float64   `json:"current_value"`
	StartedAt      time.Time `json:"started_at"`
}
