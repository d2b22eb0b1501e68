package arena

import (
	"context"
	"fmt"
	"sync"
	"time"

	"strategy_arena/pkg/core/agent"
	"strategy_arena/pkg/core/backtest"
	"strategy_arena/pkg/core/competition"
	"strategy_arena/pkg/core/discussion"
	"strategy_arena/pkg/core/marketdata"
	"strategy_arena/pkg/core/stream"
	"strategy_arena/pkg/models"

	"github.com/google/uuid"
)

// Repository is the persistence surface the manager wires into every arena:
// lifecycle records plus the message sink for the event stream.
type Repository interface {
	Persister
	stream.MessageSink
}

// Manager owns all live arenas in the process.
type Manager struct {
	arenas       map[string]*Orchestrator
	repo         Repository
	agentManager *agent.Manager
	backtester   backtest.Engine
	dayDelay     time.Duration
	mu           sync.RWMutex
}

// NewManager wires a manager. repo may be nil to disable persistence,
// backtester may be nil to fall back to the synthetic engine. dayDelay is
// the wall-clock length of one simulated trading day; zero means no delay.
func NewManager(agentMgr *agent.Manager, repo Repository, backtester backtest.Engine, dayDelay time.Duration) *Manager {
	if backtester == nil {
		backtester = backtest.NewSynthetic()
	}
	m := &Manager{
		arenas:       make(map[string]*Orchestrator),
		repo:         repo,
		agentManager: agentMgr,
		backtester:   backtester,
		dayDelay:     dayDelay,
	}
	go m.cleanup()
	return m
}

// validateConfig rejects unusable parameters before any state transition.
func validateConfig(cfg *models.ArenaConfig) error {
	if len(cfg.Agents) == 0 {
		return &ConfigError{Field: "agents", Reason: "at least one agent is required"}
	}
	seen := make(map[string]bool, len(cfg.Agents))
	for _, a := range cfg.Agents {
		if a.ID == "" {
			return &ConfigError{Field: "agents", Reason: "agent id must not be empty"}
		}
		if seen[a.ID] {
			return &ConfigError{Field: "agents", Reason: fmt.Sprintf("duplicate agent id %q", a.ID)}
		}
		seen[a.ID] = true
	}
	if len(cfg.Symbols) == 0 {
		return &ConfigError{Field: "symbols", Reason: "at least one instrument is required"}
	}
	if cfg.WeeklyEliminationRate < 0 || cfg.WeeklyEliminationRate > 1 {
		return &ConfigError{Field: "weekly_elimination_rate", Reason: "must be within [0, 1]"}
	}
	if cfg.MonthlyEliminationRate < 0 || cfg.MonthlyEliminationRate > 1 {
		return &ConfigError{Field: "monthly_elimination_rate", Reason: "must be within [0, 1]"}
	}
	if cfg.NewStrategyRatio < 0 || cfg.NewStrategyRatio > 1 {
		return &ConfigError{Field: "new_strategy_ratio", Reason: "must be within [0, 1]"}
	}
	if cfg.MinStrategies > cfg.TargetStrategies {
		return &ConfigError{Field: "min_strategies", Reason: "must not exceed target_strategies"}
	}
	return nil
}

// CreateArena validates the configuration, builds the component graph for one
// arena, and moves it to the created state. The arena does not run until
// Start is called on it.
func (m *Manager) CreateArena(ctx context.Context, userID string, cfg models.ArenaConfig) (*Orchestrator, error) {
	cfg.Normalize()
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	a := &models.Arena{
		ID:        uuid.New().String(),
		UserID:    userID,
		Config:    cfg,
		State:     models.StateInitializing,
		CreatedAt: time.Now(),
	}

	var sink stream.MessageSink
	repo := Persister(nil)
	if m.repo != nil && !cfg.Simulation {
		sink = m.repo
		repo = m.repo
	}
	hub := stream.NewHub(a.ID, sink)

	disc, err := discussion.NewOrchestrator(a.ID, cfg.Agents, m.agentManager, hub, cfg.Simulation)
	if err != nil {
		return nil, err
	}

	scorer := competition.NewScorer(cfg.ScoreWeights)
	engine := competition.NewEngine(m.backtester, scorer, hub, cfg)

	var market *marketdata.Fetcher
	if !cfg.Simulation {
		market = marketdata.NewFetcher()
	}

	orch := NewOrchestrator(a, disc, engine, hub, market, repo, m.dayDelay)
	if err := orch.Initialize(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.arenas[a.ID] = orch
	m.mu.Unlock()

	return orch, nil
}

// GetArena retrieves a live arena by ID.
func (m *Manager) GetArena(id string) (*Orchestrator, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	orch, exists := m.arenas[id]
	return orch, exists
}

// ListArenas returns the status of every live arena.
func (m *Manager) ListArenas() []models.ArenaStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.ArenaStatus, 0, len(m.arenas))
	for _, orch := range m.arenas {
		out = append(out, orch.Status())
	}
	return out
}

// DeleteArena stops a running arena and removes it from the registry.
func (m *Manager) DeleteArena(ctx context.Context, id string) error {
	m.mu.Lock()
	orch, exists := m.arenas[id]
	if exists {
		delete(m.arenas, id)
	}
	m.mu.Unlock()

	if !exists {
		return fmt.Errorf("arena %s not found", id)
	}
	switch orch.State() {
	case models.StateCompleted, models.StateFailed:
		return nil
	}
	return orch.Stop(ctx)
}

// cleanup removes terminal arenas older than 24 hours.
func (m *Manager) cleanup() {
	ticker := time.NewTicker(1 * time.Hour)
	for range ticker.C {
		m.mu.Lock()
		for id, orch := range m.arenas {
			state := orch.State()
			terminal := state == models.StateCompleted || state == models.StateFailed
			completedAt := orch.CompletedAt()
			if terminal && completedAt != nil && time.Since(*completedAt) > 24*time.Hour {
				delete(m.arenas, id)
			}
		}
		m.mu.Unlock()
	}
}
