package discussion

import (
	"testing"

	"strategy_arena/pkg/models"
)

func refineParent() *models.ArenaStrategy {
	return &models.ArenaStrategy{
		ID:          "s-parent",
		Name:        "Momentum",
		Description: "Trend following on large caps",
		Logic:       "Buy strength, sell weakness",
		Rules: models.StrategyRules{
			EntryConditions: []string{"close > sma20"},
			ExitConditions:  []string{"close < sma50"},
			PositionSizing:  "equal weight",
			StopLoss:        0.05,
		},
	}
}

func TestMergeDraftKeepsRulesWhenOmitted(t *testing.T) {
	refined := refineParent().Clone()

	// A parseable reply that only updates the narrative fields.
	mergeDraft(refined, strategyDraft{
		Name:  "Momentum v2",
		Logic: "Buy strength with a volatility filter",
	})

	if refined.Name != "Momentum v2" {
		t.Errorf("Expected updated name, got %q", refined.Name)
	}
	if refined.Description != "Trend following on large caps" {
		t.Errorf("Empty description must keep the parent's, got %q", refined.Description)
	}
	if len(refined.Rules.EntryConditions) != 1 || refined.Rules.StopLoss != 0.05 {
		t.Errorf("Draft without rules must keep the parent's rules, got %+v", refined.Rules)
	}
}

func TestMergeDraftReplacesRulesWhenPresent(t *testing.T) {
	refined := refineParent().Clone()

	mergeDraft(refined, strategyDraft{
		Rules: models.StrategyRules{
			EntryConditions: []string{"close > sma20", "rsi < 70"},
			ExitConditions:  []string{"trailing stop 2%"},
			StopLoss:        0.03,
		},
	})

	if len(refined.Rules.EntryConditions) != 2 {
		t.Errorf("Expected replaced entry conditions, got %v", refined.Rules.EntryConditions)
	}
	if refined.Rules.StopLoss != 0.03 {
		t.Errorf("Expected stop loss 0.03, got %f", refined.Rules.StopLoss)
	}
	// The rules block replaces wholesale.
	if refined.Rules.PositionSizing != "" {
		t.Errorf("Expected sizing cleared by the new rules block, got %q", refined.Rules.PositionSizing)
	}
}
