package backtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"strategy_arena/pkg/models"
)

// Engine is the external backtest simulator boundary. Its trade matching and
// P&L algorithms are outside this module.
type Engine interface {
	Run(ctx context.Context, strategyID string, symbols []string, from, to time.Time, initialCapital float64) (*models.BacktestResult, error)
}

// runRequest is the wire body sent to the simulator service.
type runRequest struct {
	StrategyID     string    `json:"strategy_id"`
	Symbols        []string  `json:"symbols"`
	From           time.Time `json:"from"`
	To             time.Time `json:"to"`
	InitialCapital float64   `json:"initial_capital"`
}

// HTTPClient calls a backtest simulator exposed over HTTP.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

var _ Engine = (*HTTPClient)(nil)

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (c *HTTPClient) Run(ctx context.Context, strategyID string, symbols []string, from, to time.Time, initialCapital float64) (*models.BacktestResult, error) {
	body, err := json.Marshal(runRequest{
		StrategyID:     strategyID,
		Symbols:        symbols,
		From:           from,
		To:             to,
		InitialCapital: initialCapital,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal backtest request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/run", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create backtest request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backtest call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("backtest returned status %d: %s", resp.StatusCode, string(raw))
	}

	var result models.BacktestResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode backtest result: %w", err)
	}
	result.StrategyID = strategyID
	return &result, nil
}

// WorstCaseResult is the documented synthetic substitute used when a
// strategy's backtest fails: strongly negative so the strategy ranks last
// instead of aborting the stage.
func WorstCaseResult(strategyID string) *models.BacktestResult {
	return &models.BacktestResult{
		StrategyID:       strategyID,
		AnnualizedReturn: -0.99,
		TotalReturn:      -0.99,
		ExcessReturn:     -1.0,
		MaxDrawdown:      -0.99,
		SharpeRatio:      -5,
		SortinoRatio:     -5,
		Volatility:       1.0,
		WinRate:          0,
		ProfitFactor:     0,
	}
}
