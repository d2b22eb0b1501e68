package models

import "time"

// StrategyStage is a strategy's position in the competition pipeline.
type StrategyStage string

const (
	StageBacktest  StrategyStage = "backtest"
	StageSimulated StrategyStage = "simulated"
	// StageLive is reserved; no live-trading path is implemented.
	StageLive StrategyStage = "live"
)

// StrategyRules holds the structured trading rules produced by an agent.
// Algorithm-specific knobs that do not fit the named fields go in Parameters.
type StrategyRules struct {
	EntryConditions []string           `json:"entry_conditions,omitempty"`
	ExitConditions  []string           `json:"exit_conditions,omitempty"`
	PositionSizing  string             `json:"position_sizing,omitempty"`
	StopLoss        float64            `json:"stop_loss,omitempty"`
	TakeProfit      float64            `json:"take_profit,omitempty"`
	Parameters      map[string]float64 `json:"parameters,omitempty"`
}

// RefinementAction distinguishes how a lineage entry was produced.
type RefinementAction string

const (
	ActionRefine RefinementAction = "refine"
	ActionRevive RefinementAction = "revive"
)

// RefinementRecord is one entry in a strategy's lineage. A refinement always
// produces a new strategy value; the parent is referenced here, never edited.
type RefinementRecord struct {
	Action        RefinementAction `json:"action"`
	ParentID      string           `json:"parent_id,omitempty"`
	RoundID       string           `json:"round_id,omitempty"`
	Summary       string           `json:"summary,omitempty"`
	CritiqueCount int              `json:"critique_count,omitempty"`
	Timestamp     time.Time        `json:"timestamp"`
}

// ArenaStrategy is one competing trading strategy.
type ArenaStrategy struct {
	ID          string        `json:"id"`
	ArenaID     string        `json:"arena_id"`
	AgentID     string        `json:"agent_id"`
	AgentRole   AgentRole     `json:"agent_role"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Logic       string        `json:"logic"`
	Rules       StrategyRules `json:"rules"`
	Symbols     []string      `json:"symbols"`

	Stage    StrategyStage `json:"stage"`
	IsActive bool          `json:"is_active"`

	CurrentScore float64 `json:"current_score"`
	CurrentRank  int     `json:"current_rank"`

	RefinementHistory []RefinementRecord `json:"refinement_history,omitempty"`
	DiscussionRounds  []string           `json:"discussion_rounds,omitempty"`

	CreatedAt    time.Time  `json:"created_at"`
	EliminatedAt *time.Time `json:"eliminated_at,omitempty"`
}

// Clone returns a deep-enough copy for producing a refined successor: slices
// are copied so the parent's lineage is never shared with the child.
func (s *ArenaStrategy) Clone() *ArenaStrategy {
	c := *s
	c.Symbols = append([]string(nil), s.Symbols...)
	c.RefinementHistory = append([]RefinementRecord(nil), s.RefinementHistory...)
	c.DiscussionRounds = append([]string(nil), s.DiscussionRounds...)
	c.Rules.EntryConditions = append([]string(nil), s.Rules.EntryConditions...)
	c.Rules.ExitConditions = append([]string(nil), s.Rules.ExitConditions...)
	if s.Rules.Parameters != nil {
		c.Rules.Parameters = make(map[string]float64, len(s.Rules.Parameters))
		for k, v := range s.Rules.Parameters {
			c.Rules.Parameters[k] = v
		}
	}
	return &c
}

// Critique is the structured output of one agent reviewing one strategy.
// The role-specific fields are populated only by the matching agent variant.
type Critique struct {
	AgentID          string    `json:"agent_id"`
	AgentRole        AgentRole `json:"agent_role"`
	TargetStrategyID string    `json:"target_strategy_id"`
	RoundID          string    `json:"round_id"`

	Strengths    []string `json:"strengths"`
	Weaknesses   []string `json:"weaknesses"`
	Suggestions  []string `json:"suggestions"`
	OverallScore float64  `json:"overall_score"` // 0-100

	RiskWarnings        []string `json:"risk_warnings,omitempty"`        // risk analyst
	SentimentBias       string   `json:"sentiment_bias,omitempty"`       // sentiment analyst
	StatisticalConcerns []string `json:"statistical_concerns,omitempty"` // quant researcher
}

// NeutralCritique is the documented degradation default when an agent's
// critique call fails or its output cannot be parsed.
func NeutralCritique(agentID string, role AgentRole, strategyID, roundID string) Critique {
	return Critique{
		AgentID:          agentID,
		AgentRole:        role,
		TargetStrategyID: strategyID,
		RoundID:          roundID,
		Strengths:        []string{},
		Weaknesses:       []string{},
		Suggestions:      []string{},
		OverallScore:     50,
	}
}
