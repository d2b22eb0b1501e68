package models

import "time"

// ArenaState enumerates the lifecycle states of a competition arena.
type ArenaState string

const (
	StateInitializing ArenaState = "initializing"
	StateCreated      ArenaState = "created"
	StateDiscussing   ArenaState = "discussing"
	StateBacktesting  ArenaState = "backtesting"
	StateSimulating   ArenaState = "simulating"
	StateEvaluating   ArenaState = "evaluating"
	StatePaused       ArenaState = "paused"
	StateCompleted    ArenaState = "completed"
	StateFailed       ArenaState = "failed"
)

// AgentRole defines the specific persona of a competing agent.
type AgentRole string

const (
	RoleGenerator AgentRole = "generator"
	RoleReviewer  AgentRole = "reviewer"
	RoleRisk      AgentRole = "risk_analyst"
	RoleSentiment AgentRole = "sentiment_analyst"
	RoleQuant     AgentRole = "quant_researcher"
)

// AllRoles lists every supported agent role; the registry in the discussion
// package is keyed by these values.
var AllRoles = []AgentRole{RoleGenerator, RoleReviewer, RoleRisk, RoleSentiment, RoleQuant}

// DiscussionMode defines how one round of multi-agent interaction is executed.
type DiscussionMode string

const (
	ModeDebate        DiscussionMode = "debate"
	ModeCollaboration DiscussionMode = "collaboration"
	ModeReview        DiscussionMode = "review"
)

// EvaluationPeriod is the cadence at which strategies are re-scored.
type EvaluationPeriod string

const (
	PeriodDaily   EvaluationPeriod = "daily"
	PeriodWeekly  EvaluationPeriod = "weekly"
	PeriodMonthly EvaluationPeriod = "monthly"
)

// AgentConfig describes one agent participating in an arena.
// Immutable after arena creation.
type AgentConfig struct {
	ID          string    `json:"id"`
	Role        AgentRole `json:"role"`
	Model       string    `json:"model,omitempty"`
	Provider    string    `json:"provider,omitempty"` // optional per-agent provider override
	Temperature float64   `json:"temperature,omitempty"`
	Personality string    `json:"personality,omitempty"`
	FocusArea   string    `json:"focus_area,omitempty"`
}

// ArenaConfig carries all competition parameters for one arena.
type ArenaConfig struct {
	Agents          []AgentConfig    `json:"agents"`
	Symbols         []string         `json:"symbols"`
	DiscussionModes []DiscussionMode `json:"discussion_modes"`

	InitialCapital float64 `json:"initial_capital"`
	BacktestDays   int     `json:"backtest_days"`
	SimulatedDays  int     `json:"simulated_days"`

	WeeklyEliminationRate  float64 `json:"weekly_elimination_rate"`
	MonthlyEliminationRate float64 `json:"monthly_elimination_rate"`
	MinStrategies          int     `json:"min_strategies"`
	TargetStrategies       int     `json:"target_strategies"`
	NewStrategyRatio       float64 `json:"new_strategy_ratio"`

	ScoreWeights ScoreWeights `json:"score_weights"`

	// Simulation mode uses deterministic mock agents and skips DB writes.
	Simulation bool `json:"simulation,omitempty"`
}

// Normalize fills unset parameters with the documented defaults.
func (c *ArenaConfig) Normalize() {
	if c.InitialCapital <= 0 {
		c.InitialCapital = 100000
	}
	if c.BacktestDays <= 0 {
		c.BacktestDays = 365
	}
	if c.SimulatedDays <= 0 {
		c.SimulatedDays = 30
	}
	if c.WeeklyEliminationRate <= 0 {
		c.WeeklyEliminationRate = 0.2
	}
	if c.MonthlyEliminationRate <= 0 {
		c.MonthlyEliminationRate = 0.3
	}
	if c.MinStrategies <= 0 {
		c.MinStrategies = 3
	}
	if c.TargetStrategies <= 0 {
		c.TargetStrategies = len(c.Agents)
	}
	if c.NewStrategyRatio <= 0 {
		c.NewStrategyRatio = 0.7
	}
	if c.ScoreWeights.IsZero() {
		c.ScoreWeights = DefaultScoreWeights()
	}
	if len(c.DiscussionModes) == 0 {
		c.DiscussionModes = []DiscussionMode{ModeDebate}
	}
}

// Arena is the aggregate root for one running competition.
// Mutated only under the lock of the orchestrator that owns it.
type Arena struct {
	ID     string      `json:"id"`
	UserID string      `json:"user_id"`
	Config ArenaConfig `json:"config"`
	State  ArenaState  `json:"state"`

	Strategies  []*ArenaStrategy     `json:"strategies"`
	Rounds      []*DiscussionRound   `json:"rounds"`
	Evaluations []StrategyEvaluation `json:"evaluations"`
	Eliminated  []*ArenaStrategy     `json:"eliminated"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	ErrorCount int    `json:"error_count"`
	LastError  string `json:"last_error,omitempty"`
}

// ActiveStrategies returns the currently competing subset.
func (a *Arena) ActiveStrategies() []*ArenaStrategy {
	out := make([]*ArenaStrategy, 0, len(a.Strategies))
	for _, s := range a.Strategies {
		if s.IsActive {
			out = append(out, s)
		}
	}
	return out
}

// ArenaStatus is the read-only view returned to API callers.
type ArenaStatus struct {
	ID               string     `json:"id"`
	State            ArenaState `json:"state"`
	ActiveStrategies int        `json:"active_strategies"`
	TotalStrategies  int        `json:"total_strategies"`
	Eliminated       int        `json:"eliminated"`
	Rounds           int        `json:"rounds"`
	DurationSeconds  float64    `json:"duration_seconds"`
	ErrorCount       int        `json:"error_count"`
	LastError        string     `json:"last_error,omitempty"`
}
