package discussion

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"strategy_arena/pkg/core/agent"
	"strategy_arena/pkg/core/stream"
	"strategy_arena/pkg/models"

	"github.com/google/uuid"
)

// debateConcurrency bounds simultaneous critique calls in debate mode,
// independent of participant count, to cap in-flight model calls.
const debateConcurrency = 3

// perTurnTimeout caps one agent call so a stalled provider cannot wedge the
// whole round.
const perTurnTimeout = 120 * time.Second

// Orchestrator owns the instantiated agents for one arena and drives
// discussion rounds in the configured modes.
type Orchestrator struct {
	arenaID  string
	agents   []Agent
	recorder *roundRecorder
	roundNum int
}

// roundRecorder wraps the arena hub so every message published during a
// round is also appended to that round's transcript.
type roundRecorder struct {
	inner stream.Publisher
	mu    sync.Mutex
	round *models.DiscussionRound
}

var _ stream.Publisher = (*roundRecorder)(nil)

func (r *roundRecorder) setRound(round *models.DiscussionRound) {
	r.mu.Lock()
	r.round = round
	r.mu.Unlock()
}

func (r *roundRecorder) record(msg models.ThinkingMessage) {
	r.mu.Lock()
	if r.round != nil {
		r.round.Messages = append(r.round.Messages, msg)
	}
	r.mu.Unlock()
}

func (r *roundRecorder) Publish(agentID string, role models.AgentRole, content string, msgType models.MessageType, roundID string, metadata map[string]interface{}) models.ThinkingMessage {
	msg := r.inner.Publish(agentID, role, content, msgType, roundID, metadata)
	r.record(msg)
	return msg
}

func (r *roundRecorder) PublishSystem(content string, metadata map[string]interface{}) models.ThinkingMessage {
	msg := r.inner.PublishSystem(content, metadata)
	r.record(msg)
	return msg
}

func (r *roundRecorder) PublishError(content string, metadata map[string]interface{}) models.ThinkingMessage {
	msg := r.inner.PublishError(content, metadata)
	r.record(msg)
	return msg
}

// NewOrchestrator instantiates one agent per config. In simulation mode
// deterministic mock agents replace the LLM-backed ones.
func NewOrchestrator(arenaID string, configs []models.AgentConfig, mgr *agent.Manager, hub stream.Publisher, simulation bool) (*Orchestrator, error) {
	recorder := &roundRecorder{inner: hub}

	agents := make([]Agent, 0, len(configs))
	for _, cfg := range configs {
		if simulation {
			agents = append(agents, NewMockAgent(cfg.ID, cfg.Role, recorder))
			continue
		}
		a, err := NewAgent(cfg, mgr, recorder)
		if err != nil {
			return nil, fmt.Errorf("failed to build agent %s: %w", cfg.ID, err)
		}
		agents = append(agents, a)
	}
	if len(agents) == 0 {
		return nil, fmt.Errorf("arena has no configured agents")
	}

	return &Orchestrator{arenaID: arenaID, agents: agents, recorder: recorder}, nil
}

// Agents returns the instantiated roster.
func (o *Orchestrator) Agents() []Agent {
	return o.agents
}

func (o *Orchestrator) agentByID(id string) (Agent, bool) {
	for _, a := range o.agents {
		if a.ID() == id {
			return a, true
		}
	}
	return nil, false
}

// RunRound executes exactly one round in the given mode and returns its
// immutable transcript. Individual agent failures never abort the round.
func (o *Orchestrator) RunRound(ctx context.Context, mode models.DiscussionMode, strategies []*models.ArenaStrategy, marketContext string) (*models.DiscussionRound, error) {
	o.roundNum++
	participants := make([]string, len(o.agents))
	for i, a := range o.agents {
		participants[i] = a.ID()
	}

	round := &models.DiscussionRound{
		ID:           uuid.New().String(),
		ArenaID:      o.arenaID,
		Number:       o.roundNum,
		Mode:         mode,
		Participants: participants,
		Conclusions:  make(map[string]string),
		StartedAt:    time.Now(),
	}

	o.recorder.setRound(round)
	defer o.recorder.setRound(nil)

	o.recorder.PublishSystem(fmt.Sprintf("Starting %s round %d with %d strategies", mode, round.Number, len(strategies)),
		map[string]interface{}{"round_id": round.ID})

	var err error
	switch mode {
	case models.ModeDebate:
		err = o.runDebate(ctx, round, strategies, marketContext)
	case models.ModeCollaboration:
		err = o.runCollaboration(ctx, round, strategies, marketContext)
	case models.ModeReview:
		err = o.runReview(ctx, round, strategies, marketContext)
	default:
		err = fmt.Errorf("unknown discussion mode %q", mode)
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	round.CompletedAt = &now
	o.recorder.PublishSystem(fmt.Sprintf("%s round %d completed", mode, round.Number),
		map[string]interface{}{"round_id": round.ID})
	return round, nil
}

// runDebate fans out one critique task per (strategy, non-authoring agent)
// pair, bounded by debateConcurrency. Failed tasks are omitted from the
// strategy's critique list without aborting siblings.
func (o *Orchestrator) runDebate(ctx context.Context, round *models.DiscussionRound, strategies []*models.ArenaStrategy, marketContext string) error {
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, debateConcurrency)
	)
	counts := make(map[string]int, len(strategies))

	for _, s := range strategies {
		for _, a := range o.agents {
			if a.ID() == s.AgentID {
				continue
			}
			wg.Add(1)
			go func(s *models.ArenaStrategy, a Agent) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()

				turnCtx, cancel := context.WithTimeout(ctx, perTurnTimeout)
				defer cancel()

				if _, err := a.CritiqueStrategy(turnCtx, s, marketContext, round.ID); err != nil {
					fmt.Printf("[DISCUSSION] Debate critique from %s on %s failed: %v\n", a.Name(), s.Name, err)
					return
				}
				mu.Lock()
				counts[s.ID]++
				mu.Unlock()
			}(s, a)
		}
	}
	wg.Wait()

	for _, s := range strategies {
		round.Conclusions[s.ID] = fmt.Sprintf("%d critiques received", counts[s.ID])
	}
	return nil
}

// runCollaboration walks strategies sequentially; every non-authoring agent
// contributes and all suggestion lists are merged.
func (o *Orchestrator) runCollaboration(ctx context.Context, round *models.DiscussionRound, strategies []*models.ArenaStrategy, marketContext string) error {
	for _, s := range strategies {
		var merged []string
		for _, a := range o.agents {
			if a.ID() == s.AgentID {
				continue
			}
			turnCtx, cancel := context.WithTimeout(ctx, perTurnTimeout)
			critique, err := a.CritiqueStrategy(turnCtx, s, marketContext, round.ID)
			cancel()
			if err != nil {
				fmt.Printf("[DISCUSSION] Collaboration input from %s on %s failed: %v\n", a.Name(), s.Name, err)
				continue
			}
			merged = append(merged, critique.Suggestions...)
		}
		round.Conclusions[s.ID] = fmt.Sprintf("%d suggestions merged", len(merged))
	}
	return nil
}

// reviewers selects agents whose role name contains "reviewer" or "analyst",
// falling back to the first two agents when none match.
func (o *Orchestrator) reviewers() []Agent {
	var subset []Agent
	for _, a := range o.agents {
		role := string(a.Role())
		if strings.Contains(role, "reviewer") || strings.Contains(role, "analyst") {
			subset = append(subset, a)
		}
	}
	if len(subset) == 0 {
		if len(o.agents) > 2 {
			return o.agents[:2]
		}
		return o.agents
	}
	return subset
}

// runReview has the reviewer subset score every strategy; the conclusion is
// the arithmetic mean of the reviewer scores.
func (o *Orchestrator) runReview(ctx context.Context, round *models.DiscussionRound, strategies []*models.ArenaStrategy, marketContext string) error {
	reviewers := o.reviewers()

	for _, s := range strategies {
		var sum float64
		var n int
		for _, a := range reviewers {
			turnCtx, cancel := context.WithTimeout(ctx, perTurnTimeout)
			critique, err := a.CritiqueStrategy(turnCtx, s, marketContext, round.ID)
			cancel()
			if err != nil {
				fmt.Printf("[DISCUSSION] Review score from %s on %s failed: %v\n", a.Name(), s.Name, err)
				continue
			}
			sum += critique.OverallScore
			n++
		}
		mean := 0.0
		if n > 0 {
			mean = sum / float64(n)
		}
		round.Conclusions[s.ID] = fmt.Sprintf("average review score %.1f", mean)
	}
	return nil
}

// RefineStrategies groups the critiques embedded in the round's argument
// messages by target strategy and asks each strategy's owner (or a generator
// fallback, or any agent) to refine it. Strategies without critiques pass
// through unchanged; a refine failure substitutes the original.
func (o *Orchestrator) RefineStrategies(ctx context.Context, strategies []*models.ArenaStrategy, round *models.DiscussionRound) []*models.ArenaStrategy {
	grouped := make(map[string][]models.Critique)
	for _, msg := range round.Messages {
		if msg.Type != models.MessageArgument {
			continue
		}
		critique, ok := msg.Metadata["critique"].(models.Critique)
		if !ok {
			continue
		}
		grouped[critique.TargetStrategyID] = append(grouped[critique.TargetStrategyID], critique)
	}

	out := make([]*models.ArenaStrategy, 0, len(strategies))
	for _, s := range strategies {
		critiques := grouped[s.ID]
		if len(critiques) == 0 {
			out = append(out, s)
			continue
		}

		refiner := o.pickRefiner(s)
		turnCtx, cancel := context.WithTimeout(ctx, perTurnTimeout)
		refined, err := refiner.RefineStrategy(turnCtx, s, critiques, round.ID)
		cancel()
		if err != nil {
			fmt.Printf("[DISCUSSION] Refinement of %s failed, keeping original: %v\n", s.Name, err)
			out = append(out, s)
			continue
		}
		out = append(out, refined)
	}
	return out
}

// pickRefiner prefers the strategy's author, then the first generator, then
// any agent.
func (o *Orchestrator) pickRefiner(s *models.ArenaStrategy) Agent {
	if a, ok := o.agentByID(s.AgentID); ok {
		return a
	}
	for _, a := range o.agents {
		if a.Role() == models.RoleGenerator {
			return a
		}
	}
	return o.agents[0]
}
