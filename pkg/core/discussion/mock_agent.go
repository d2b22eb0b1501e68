package discussion

import (
	"context"
	"fmt"
	"time"

	"strategy_arena/pkg/core/stream"
	"strategy_arena/pkg/models"

	"github.com/google/uuid"
)

// MockAgent provides deterministic responses for simulation mode and tests.
// The Fail* switches let tests exercise the degradation paths.
type MockAgent struct {
	AgentID   string
	AgentRole models.AgentRole
	Publisher stream.Publisher

	FailGenerate bool
	FailCritique bool
	FailRefine   bool
	Latency      time.Duration

	// Score returned in critiques; defaults to 60.
	CritiqueScore float64
}

var _ Agent = (*MockAgent)(nil)

func NewMockAgent(id string, role models.AgentRole, publisher stream.Publisher) *MockAgent {
	return &MockAgent{AgentID: id, AgentRole: role, Publisher: publisher, CritiqueScore: 60}
}

func (a *MockAgent) ID() string             { return a.AgentID }
func (a *MockAgent) Role() models.AgentRole { return a.AgentRole }
func (a *MockAgent) Name() string           { return fmt.Sprintf("Mock %s", a.AgentRole) }

func (a *MockAgent) wait(ctx context.Context) error {
	if a.Latency <= 0 {
		return nil
	}
	select {
	case <-time.After(a.Latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *MockAgent) GenerateStrategy(ctx context.Context, symbols []string, marketContext, roundID string) (*models.ArenaStrategy, error) {
	if a.FailGenerate {
		return nil, fmt.Errorf("mock generate failure for %s", a.AgentID)
	}
	if err := a.wait(ctx); err != nil {
		return nil, err
	}

	s := &models.ArenaStrategy{
		ID:          uuid.New().String(),
		AgentID:     a.AgentID,
		AgentRole:   a.AgentRole,
		Name:        fmt.Sprintf("%s momentum play", a.AgentRole),
		Description: "Deterministic simulation strategy.",
		Logic:       "Buy on 20-day breakout, exit on 10-day low.",
		Rules: models.StrategyRules{
			EntryConditions: []string{"close > 20d high"},
			ExitConditions:  []string{"close < 10d low"},
			PositionSizing:  "equal weight",
			StopLoss:        0.05,
			TakeProfit:      0.15,
		},
		Symbols:   append([]string(nil), symbols...),
		Stage:     models.StageBacktest,
		IsActive:  true,
		CreatedAt: time.Now(),
	}
	if a.Publisher != nil {
		a.Publisher.Publish(a.AgentID, a.AgentRole, "Proposed strategy: "+s.Name,
			models.MessageConclusion, roundID, map[string]interface{}{"target_strategy_id": s.ID})
	}
	return s, nil
}

func (a *MockAgent) CritiqueStrategy(ctx context.Context, strategy *models.ArenaStrategy, marketContext, roundID string) (models.Critique, error) {
	if a.FailCritique {
		return models.Critique{}, fmt.Errorf("mock critique failure for %s", a.AgentID)
	}
	if err := a.wait(ctx); err != nil {
		return models.Critique{}, err
	}

	critique := models.Critique{
		AgentID:          a.AgentID,
		AgentRole:        a.AgentRole,
		TargetStrategyID: strategy.ID,
		RoundID:          roundID,
		Strengths:        []string{"clear entry rule"},
		Weaknesses:       []string{"no regime filter"},
		Suggestions:      []string{fmt.Sprintf("add a volatility filter (%s)", a.AgentRole)},
		OverallScore:     a.CritiqueScore,
	}
	if a.Publisher != nil {
		a.Publisher.Publish(a.AgentID, a.AgentRole,
			fmt.Sprintf("Critique of %s: score %.0f", strategy.Name, critique.OverallScore),
			models.MessageArgument, roundID,
			map[string]interface{}{"target_strategy_id": strategy.ID, "critique": critique})
	}
	return critique, nil
}

func (a *MockAgent) RefineStrategy(ctx context.Context, strategy *models.ArenaStrategy, critiques []models.Critique, roundID string) (*models.ArenaStrategy, error) {
	if a.FailRefine {
		return nil, fmt.Errorf("mock refine failure for %s", a.AgentID)
	}
	if err := a.wait(ctx); err != nil {
		return nil, err
	}

	refined := strategy.Clone()
	refined.ID = uuid.New().String()
	refined.Name = strategy.Name + " v2"
	refined.CreatedAt = time.Now()
	refined.RefinementHistory = append(refined.RefinementHistory, models.RefinementRecord{
		Action:        models.ActionRefine,
		ParentID:      strategy.ID,
		RoundID:       roundID,
		Summary:       fmt.Sprintf("mock refinement from %d critiques", len(critiques)),
		CritiqueCount: len(critiques),
		Timestamp:     time.Now(),
	})
	refined.DiscussionRounds = append(refined.DiscussionRounds, roundID)
	return refined, nil
}
