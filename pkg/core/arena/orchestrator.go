package arena

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"strategy_arena/pkg/core/competition"
	"strategy_arena/pkg/core/discussion"
	"strategy_arena/pkg/core/marketdata"
	"strategy_arena/pkg/core/stream"
	"strategy_arena/pkg/models"
)

// Persister records arena lifecycle transitions and snapshots. A nil
// Persister (simulation mode) disables persistence entirely.
type Persister interface {
	CreateArena(ctx context.Context, a *models.Arena) error
	UpdateState(ctx context.Context, id string, state models.ArenaState) error
	SaveSnapshot(ctx context.Context, a *models.Arena) error
}

// generateConcurrency bounds simultaneous strategy-generation calls.
const generateConcurrency = 3

var (
	startStates = []models.ArenaState{models.StateCreated, models.StatePaused}
	pauseStates = []models.ArenaState{models.StateDiscussing, models.StateBacktesting, models.StateSimulating}
)

func stateIn(state models.ArenaState, set []models.ArenaState) bool {
	for _, s := range set {
		if s == state {
			return true
		}
	}
	return false
}

// Orchestrator owns the lifecycle of exactly one arena. All mutation of the
// Arena aggregate happens on the single run goroutine or under o.mu from the
// control methods; reads go through the query methods.
type Orchestrator struct {
	mu    sync.Mutex
	arena *models.Arena

	hub        *stream.Hub
	discussion *discussion.Orchestrator
	engine     *competition.Engine
	market     *marketdata.Fetcher
	repo       Persister

	// dayDelay is the wall-clock length of one simulated trading day.
	dayDelay time.Duration

	pauseRequested bool
	stopRequested  bool
	currentDay     int

	btResults  map[string]*models.BacktestResult
	simResults map[string]*models.SimulatedResult
	rng        *rand.Rand

	cancelRun context.CancelFunc
	runDone   chan struct{}
}

// NewOrchestrator wires the components for one arena. The arena must be in
// the initializing state; call Initialize to move it to created.
func NewOrchestrator(a *models.Arena, disc *discussion.Orchestrator, engine *competition.Engine, hub *stream.Hub, market *marketdata.Fetcher, repo Persister, dayDelay time.Duration) *Orchestrator {
	return &Orchestrator{
		arena:      a,
		hub:        hub,
		discussion: disc,
		engine:     engine,
		market:     market,
		repo:       repo,
		dayDelay:   dayDelay,
		btResults:  make(map[string]*models.BacktestResult),
		simResults: make(map[string]*models.SimulatedResult),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ID returns the arena identifier.
func (o *Orchestrator) ID() string {
	return o.arena.ID
}

// Hub exposes the arena's event stream for API subscribers.
func (o *Orchestrator) Hub() *stream.Hub {
	return o.hub
}

// persistState writes the transition record. Persistence failures are logged,
// not fatal; the run continues on the in-memory aggregate.
func (o *Orchestrator) persistState(ctx context.Context, state models.ArenaState) {
	if o.repo == nil {
		return
	}
	if err := o.repo.UpdateState(ctx, o.arena.ID, state); err != nil {
		fmt.Printf("[ARENA] Failed to persist state %s for %s: %v\n", state, o.arena.ID, err)
	}
}

func (o *Orchestrator) persistSnapshot(ctx context.Context) {
	if o.repo == nil {
		return
	}
	o.mu.Lock()
	snapshot := *o.arena
	o.mu.Unlock()
	if err := o.repo.SaveSnapshot(ctx, &snapshot); err != nil {
		fmt.Printf("[ARENA] Failed to persist snapshot for %s: %v\n", o.arena.ID, err)
	}
}

// transition moves to the given state and persists the transition before the
// caller proceeds with further work. Once a pause or stop has been requested
// the control methods own the state; run-loop transitions become no-ops so
// they cannot overwrite a just-set paused state.
func (o *Orchestrator) transition(ctx context.Context, to models.ArenaState) {
	o.mu.Lock()
	if o.pauseRequested || o.stopRequested {
		o.mu.Unlock()
		return
	}
	o.arena.State = to
	o.mu.Unlock()
	o.persistState(ctx, to)
}

// Initialize validates nothing further (config validation happened at
// construction) and moves the arena from initializing to created, persisting
// the initial record.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	o.mu.Lock()
	if o.arena.State != models.StateInitializing {
		defer o.mu.Unlock()
		return &StateError{Operation: "initialize", Current: o.arena.State, Expected: []models.ArenaState{models.StateInitializing}}
	}
	o.arena.State = models.StateCreated
	o.mu.Unlock()

	if o.repo != nil {
		if err := o.repo.CreateArena(ctx, o.arena); err != nil {
			return fmt.Errorf("failed to persist new arena: %w", err)
		}
	}
	o.hub.PublishSystem(fmt.Sprintf("Arena %s created with %d agents", o.arena.ID, len(o.arena.Config.Agents)), nil)
	return nil
}

// Start launches the run loop. Legal from created (fresh start) or paused
// (resume). The run executes on its own goroutine with its own context so it
// outlives the caller's request.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if !stateIn(o.arena.State, startStates) {
		defer o.mu.Unlock()
		return &StateError{Operation: "start", Current: o.arena.State, Expected: startStates}
	}
	prev := o.runDone
	o.mu.Unlock()

	// A paused run may still be draining. Wait it out before clearing the
	// control flags; two run loops on one arena would break the
	// single-writer model.
	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	o.mu.Lock()
	if !stateIn(o.arena.State, startStates) {
		defer o.mu.Unlock()
		return &StateError{Operation: "start", Current: o.arena.State, Expected: startStates}
	}
	o.pauseRequested = false
	o.stopRequested = false
	if o.arena.StartedAt == nil {
		now := time.Now()
		o.arena.StartedAt = &now
	}

	runCtx, cancel := context.WithCancel(context.Background())
	o.cancelRun = cancel
	o.runDone = make(chan struct{})
	done := o.runDone
	o.mu.Unlock()

	go o.run(runCtx, done)
	return nil
}

// Pause requests suspension. Legal only from the three active-run states. The
// run context is cancelled so in-flight work unwinds promptly instead of
// waiting for the next checkpoint.
func (o *Orchestrator) Pause(ctx context.Context) error {
	o.mu.Lock()
	if !stateIn(o.arena.State, pauseStates) {
		defer o.mu.Unlock()
		return &StateError{Operation: "pause", Current: o.arena.State, Expected: pauseStates}
	}
	o.pauseRequested = true
	o.arena.State = models.StatePaused
	cancel := o.cancelRun
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	o.persistState(ctx, models.StatePaused)
	o.hub.PublishSystem("Arena paused", nil)
	return nil
}

// Resume continues a paused arena.
func (o *Orchestrator) Resume(ctx context.Context) error {
	o.mu.Lock()
	if o.arena.State != models.StatePaused {
		defer o.mu.Unlock()
		return &StateError{Operation: "resume", Current: o.arena.State, Expected: []models.ArenaState{models.StatePaused}}
	}
	o.mu.Unlock()
	return o.Start(ctx)
}

// Stop cancels any in-flight run, awaits its completion, and marks the arena
// completed.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	switch o.arena.State {
	case models.StateCompleted, models.StateFailed:
		defer o.mu.Unlock()
		return &StateError{Operation: "stop", Current: o.arena.State,
			Expected: append(append([]models.ArenaState{}, pauseStates...), models.StateCreated, models.StatePaused, models.StateEvaluating)}
	}
	o.stopRequested = true
	cancel := o.cancelRun
	done := o.runDone
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	o.complete(ctx, "Arena stopped")
	return nil
}

// complete marks the terminal completed state.
func (o *Orchestrator) complete(ctx context.Context, reason string) {
	o.mu.Lock()
	if o.arena.State == models.StateCompleted {
		o.mu.Unlock()
		return
	}
	o.arena.State = models.StateCompleted
	now := time.Now()
	o.arena.CompletedAt = &now
	o.mu.Unlock()

	o.persistState(ctx, models.StateCompleted)
	o.persistSnapshot(ctx)
	o.hub.PublishSystem(reason, nil)
}

func (o *Orchestrator) fail(ctx context.Context, err error) {
	o.mu.Lock()
	o.arena.ErrorCount++
	o.arena.LastError = err.Error()
	o.arena.State = models.StateFailed
	now := time.Now()
	o.arena.CompletedAt = &now
	o.mu.Unlock()

	o.persistState(ctx, models.StateFailed)
	o.persistSnapshot(ctx)
	o.hub.PublishError(fmt.Sprintf("Arena run failed: %v", err), nil)
}

// halted reports whether the run goroutine should return at the next
// checkpoint.
func (o *Orchestrator) halted(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pauseRequested || o.stopRequested
}

func (o *Orchestrator) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	if err := o.runLoop(ctx); err != nil {
		if o.halted(ctx) {
			// A pause or stop interrupted in-flight work; not a failure.
			return
		}
		o.fail(context.Background(), err)
	}
}

// runLoop is one pass of the lifecycle. It returns nil both on normal
// completion and when halted by pause/stop; any other error means the whole
// run failed.
func (o *Orchestrator) runLoop(ctx context.Context) error {
	cfg := o.arena.Config

	if o.currentDay == 0 {
		o.transition(ctx, models.StateDiscussing)

		marketContext := ""
		if o.market != nil {
			marketContext = o.market.MarketContext(ctx, cfg.Symbols)
		}

		if o.strategyCount() == 0 {
			o.generateInitial(ctx, marketContext)
			if o.strategyCount() == 0 {
				return fmt.Errorf("no agent produced an initial strategy")
			}
		}
		if o.halted(ctx) {
			return nil
		}

		for _, mode := range cfg.DiscussionModes {
			if o.halted(ctx) {
				return nil
			}
			active := o.activeStrategies()
			round, err := o.discussion.RunRound(ctx, mode, active, marketContext)
			if err != nil {
				return fmt.Errorf("%s round failed: %w", mode, err)
			}
			refined := o.discussion.RefineStrategies(ctx, active, round)

			o.mu.Lock()
			o.arena.Rounds = append(o.arena.Rounds, round)
			o.replaceActiveLocked(refined)
			o.mu.Unlock()
			o.persistSnapshot(ctx)
		}

		if o.halted(ctx) {
			return nil
		}
		o.transition(ctx, models.StateBacktesting)
		o.backtestAndPromote(ctx, o.activeStrategies())
		o.evaluate(ctx, models.PeriodDaily, false)
		o.persistSnapshot(ctx)

		o.transition(ctx, models.StateSimulating)
	} else {
		// Resuming mid simulation.
		o.transition(ctx, models.StateSimulating)
	}

	for day := o.currentDay + 1; day <= cfg.SimulatedDays; day++ {
		if o.halted(ctx) {
			o.currentDay = day - 1
			return nil
		}
		if err := o.sleepDay(ctx); err != nil {
			o.currentDay = day - 1
			return nil
		}

		o.advanceDay(day)

		if day > 1 {
			o.evaluate(ctx, models.PeriodDaily, true)
		}
		if day%7 == 0 {
			// Weekly cadence re-scores only; elimination waits for month end.
			o.evaluate(ctx, models.PeriodWeekly, true)
		}
		if day%30 == 0 {
			o.monthlyCycle(ctx, day)
		}
		o.currentDay = day
	}

	o.currentDay = cfg.SimulatedDays
	o.complete(context.Background(), "Arena run completed")
	return nil
}

func (o *Orchestrator) sleepDay(ctx context.Context) error {
	if o.dayDelay <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(o.dayDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// generateInitial has every configured agent attempt one strategy, with a
// bounded fan-out. Individual failures are logged and skipped. Workers append
// under o.mu so status polls never observe a torn aggregate.
func (o *Orchestrator) generateInitial(ctx context.Context, marketContext string) {
	var (
		wg  sync.WaitGroup
		sem = make(chan struct{}, generateConcurrency)
	)

	for _, a := range o.discussion.Agents() {
		wg.Add(1)
		go func(a discussion.Agent) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			s, err := a.GenerateStrategy(ctx, o.arena.Config.Symbols, marketContext, "")
			if err != nil {
				fmt.Printf("[ARENA] Initial generation by %s failed: %v\n", a.Name(), err)
				return
			}
			s.ArenaID = o.arena.ID
			o.mu.Lock()
			o.arena.Strategies = append(o.arena.Strategies, s)
			o.mu.Unlock()
		}(a)
	}
	wg.Wait()

	o.hub.PublishSystem(fmt.Sprintf("Initial generation produced %d strategies", o.strategyCount()), nil)
}

// generateFresh produces count brand-new strategies during replenishment,
// using generator-role agents round-robin (any agent when none are
// generators).
func (o *Orchestrator) generateFresh(ctx context.Context, count int, marketContext string) []*models.ArenaStrategy {
	if count <= 0 {
		return nil
	}

	var generators []discussion.Agent
	for _, a := range o.discussion.Agents() {
		if a.Role() == models.RoleGenerator {
			generators = append(generators, a)
		}
	}
	if len(generators) == 0 {
		generators = o.discussion.Agents()
	}

	var out []*models.ArenaStrategy
	for i := 0; i < count; i++ {
		a := generators[i%len(generators)]
		s, err := a.GenerateStrategy(ctx, o.arena.Config.Symbols, marketContext, "")
		if err != nil {
			fmt.Printf("[ARENA] Replenishment generation by %s failed: %v\n", a.Name(), err)
			continue
		}
		s.ArenaID = o.arena.ID
		out = append(out, s)
	}
	return out
}

// activeStrategies snapshots the active subset under the lock.
func (o *Orchestrator) activeStrategies() []*models.ArenaStrategy {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.arena.ActiveStrategies()
}

func (o *Orchestrator) strategyCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.arena.Strategies)
}

// replaceActiveLocked swaps the active strategies for their refined
// successors while keeping inactive entries in place. Caller holds o.mu.
func (o *Orchestrator) replaceActiveLocked(refined []*models.ArenaStrategy) {
	kept := make([]*models.ArenaStrategy, 0, len(o.arena.Strategies))
	for _, s := range o.arena.Strategies {
		if !s.IsActive {
			kept = append(kept, s)
		}
	}
	for _, s := range refined {
		s.ArenaID = o.arena.ID
		kept = append(kept, s)
	}
	o.arena.Strategies = kept
}

// backtestAndPromote runs the backtest stage for the given strategies and
// promotes survivors into simulated trading. The backtests themselves run
// outside the lock; the promotion write-back of stage, score and rank happens
// under it.
func (o *Orchestrator) backtestAndPromote(ctx context.Context, strategies []*models.ArenaStrategy) {
	results := o.engine.RunBacktestStage(ctx, strategies)

	o.mu.Lock()
	defer o.mu.Unlock()
	for id, r := range results {
		o.btResults[id] = r
	}
	o.engine.PromoteToSimulated(strategies, results)
}

// evaluate runs one scoring pass for the period. When inSimulation is true
// the arena flips to evaluating and back, matching the documented state
// oscillation during the simulated-trading phase.
func (o *Orchestrator) evaluate(ctx context.Context, period models.EvaluationPeriod, inSimulation bool) []models.StrategyEvaluation {
	if inSimulation {
		o.transition(ctx, models.StateEvaluating)
		defer o.transition(ctx, models.StateSimulating)
	}

	// Scoring is pure computation, so the whole pass including the score and
	// rank write-back runs under the lock.
	o.mu.Lock()
	active := o.arena.ActiveStrategies()
	evaluations := o.engine.EvaluateStrategies(active, o.btResults, o.simResults, period)
	o.arena.Evaluations = append(o.arena.Evaluations, evaluations...)
	o.mu.Unlock()

	return evaluations
}

// monthlyCycle is the month-end pass: score, eliminate, replenish with a mix
// of revived and freshly generated strategies, and backtest the newcomers.
func (o *Orchestrator) monthlyCycle(ctx context.Context, day int) {
	evaluations := o.evaluate(ctx, models.PeriodMonthly, true)

	// Elimination flips IsActive on the shared records, so it and the move
	// into history happen in one critical section.
	o.mu.Lock()
	eliminated := o.engine.EliminateStrategies(o.arena.Strategies, evaluations, models.PeriodMonthly)
	if len(eliminated) > 0 {
		removed := make(map[string]bool, len(eliminated))
		for _, s := range eliminated {
			removed[s.ID] = true
		}
		kept := make([]*models.ArenaStrategy, 0, len(o.arena.Strategies))
		for _, s := range o.arena.Strategies {
			if removed[s.ID] {
				o.arena.Eliminated = append(o.arena.Eliminated, s)
			} else {
				kept = append(kept, s)
			}
		}
		o.arena.Strategies = kept
	}
	o.mu.Unlock()

	cfg := o.arena.Config
	activeCount := len(o.activeStrategies())
	needed := cfg.TargetStrategies - activeCount
	if needed > 0 {
		o.mu.Lock()
		history := append([]*models.ArenaStrategy(nil), o.arena.Eliminated...)
		o.mu.Unlock()

		revived := o.engine.ReplenishStrategies(activeCount, cfg.TargetStrategies, history)

		marketContext := ""
		if o.market != nil {
			marketContext = o.market.MarketContext(ctx, cfg.Symbols)
		}
		fresh := o.generateFresh(ctx, needed-len(revived), marketContext)

		newcomers := append(revived, fresh...)
		if len(newcomers) > 0 {
			for _, s := range newcomers {
				s.ArenaID = o.arena.ID
			}
			o.mu.Lock()
			o.arena.Strategies = append(o.arena.Strategies, newcomers...)
			o.mu.Unlock()

			o.backtestAndPromote(ctx, newcomers)
			o.hub.PublishSystem(fmt.Sprintf("Day %d replenishment: %d revived, %d new", day, len(revived), len(fresh)), nil)
		}
	}

	o.persistSnapshot(ctx)
}

// advanceDay walks every simulated portfolio forward one trading day. The
// drift derives from the strategy's backtest profile plus seeded noise, so a
// strong backtest tends to keep compounding while a weak one decays.
func (o *Orchestrator) advanceDay(day int) {
	for _, s := range o.activeStrategies() {
		if s.Stage != models.StageSimulated {
			continue
		}
		p, ok := o.engine.Portfolio(s.ID)
		if !ok {
			continue
		}

		bt := o.btResults[s.ID]
		daily := 0.0
		if bt != nil {
			daily = bt.AnnualizedReturn/252 + bt.Volatility/math.Sqrt(252)*o.rng.NormFloat64()*0.5
		}
		p.CurrentValue *= 1 + daily
		if p.CurrentValue < 0 {
			p.CurrentValue = 0
		}

		totalReturn := 0.0
		if p.InitialCapital > 0 {
			totalReturn = p.CurrentValue/p.InitialCapital - 1
		}
		o.simResults[s.ID] = &models.SimulatedResult{
			StrategyID:       s.ID,
			InitialCapital:   p.InitialCapital,
			CurrentValue:     p.CurrentValue,
			TotalReturn:      totalReturn,
			AnnualizedReturn: totalReturn * 365 / float64(day),
			DaysRunning:      day,
		}
	}
}

// Status returns the read-only view of the arena.
func (o *Orchestrator) Status() models.ArenaStatus {
	o.mu.Lock()
	defer o.mu.Unlock()

	active := 0
	for _, s := range o.arena.Strategies {
		if s.IsActive {
			active++
		}
	}

	duration := 0.0
	if o.arena.StartedAt != nil {
		end := time.Now()
		if o.arena.CompletedAt != nil {
			end = *o.arena.CompletedAt
		}
		duration = end.Sub(*o.arena.StartedAt).Seconds()
	}

	return models.ArenaStatus{
		ID:               o.arena.ID,
		State:            o.arena.State,
		ActiveStrategies: active,
		TotalStrategies:  len(o.arena.Strategies) + len(o.arena.Eliminated),
		Eliminated:       len(o.arena.Eliminated),
		Rounds:           len(o.arena.Rounds),
		DurationSeconds:  duration,
		ErrorCount:       o.arena.ErrorCount,
		LastError:        o.arena.LastError,
	}
}

// Strategies returns clones of the competing strategies, so callers can
// marshal or inspect them while the run proceeds; with activeOnly false the
// eliminated history is included.
func (o *Orchestrator) Strategies(activeOnly bool) []*models.ArenaStrategy {
	o.mu.Lock()
	defer o.mu.Unlock()

	var out []*models.ArenaStrategy
	for _, s := range o.arena.Strategies {
		if !activeOnly || s.IsActive {
			out = append(out, s.Clone())
		}
	}
	if !activeOnly {
		for _, s := range o.arena.Eliminated {
			out = append(out, s.Clone())
		}
	}
	return out
}

// Leaderboard returns clones of the active strategies ranked by current score
// descending. Equal scores preserve insertion order.
func (o *Orchestrator) Leaderboard() []*models.ArenaStrategy {
	o.mu.Lock()
	ranked := make([]*models.ArenaStrategy, 0, len(o.arena.Strategies))
	for _, s := range o.arena.Strategies {
		if s.IsActive {
			ranked = append(ranked, s.Clone())
		}
	}
	o.mu.Unlock()

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].CurrentScore > ranked[j].CurrentScore
	})
	return ranked
}

// History returns the ordered discussion rounds.
func (o *Orchestrator) History() []*models.DiscussionRound {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*models.DiscussionRound, len(o.arena.Rounds))
	copy(out, o.arena.Rounds)
	return out
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() models.ArenaState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.arena.State
}

// CompletedAt returns the completion timestamp, or nil while the arena is
// not terminal.
func (o *Orchestrator) CompletedAt() *time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.arena.CompletedAt == nil {
		return nil
	}
	t := *o.arena.CompletedAt
	return &t
}

// AwaitCompletion blocks until the current run goroutine exits or the context
// is done. Intended for CLI one-shot runs and tests.
func (o *Orchestrator) AwaitCompletion(ctx context.Context) error {
	o.mu.Lock()
	done := o.runDone
	o.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
