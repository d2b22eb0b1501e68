package discussion

import (
	"context"
	"fmt"
	"testing"
	"time"

	"strategy_arena/pkg/core/stream"
	"strategy_arena/pkg/models"
)

// newTestOrchestrator builds an orchestrator over caller-supplied mock agents
// so tests can flip their failure switches.
func newTestOrchestrator(t *testing.T, roles ...models.AgentRole) (*Orchestrator, []*MockAgent, *stream.Hub) {
	t.Helper()

	hub := stream.NewHub("arena-test", nil)
	recorder := &roundRecorder{inner: hub}

	mocks := make([]*MockAgent, len(roles))
	agents := make([]Agent, len(roles))
	for i, role := range roles {
		mocks[i] = NewMockAgent(fmt.Sprintf("agent-%d", i), role, recorder)
		agents[i] = mocks[i]
	}

	return &Orchestrator{arenaID: "arena-test", agents: agents, recorder: recorder}, mocks, hub
}

func twoStrategies() []*models.ArenaStrategy {
	return []*models.ArenaStrategy{
		{ID: "s-0", AgentID: "agent-0", Name: "Alpha", IsActive: true},
		{ID: "s-1", AgentID: "agent-1", Name: "Beta", IsActive: true},
	}
}

func countCritiques(round *models.DiscussionRound) int {
	n := 0
	for _, msg := range round.Messages {
		if msg.Type != models.MessageArgument {
			continue
		}
		if _, ok := msg.Metadata["critique"].(models.Critique); ok {
			n++
		}
	}
	return n
}

func TestDebateRoundCritiqueFanOut(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t, models.RoleGenerator, models.RoleGenerator, models.RoleReviewer)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	round, err := orch.RunRound(ctx, models.ModeDebate, twoStrategies(), "")
	if err != nil {
		t.Fatalf("RunRound failed: %v", err)
	}

	// Three agents, two strategies, authors skip their own: 2+2 tasks.
	if got := countCritiques(round); got != 4 {
		t.Errorf("Expected 4 critiques, got %d", got)
	}
	if round.Conclusions["s-0"] != "2 critiques received" {
		t.Errorf("Unexpected conclusion for s-0: %q", round.Conclusions["s-0"])
	}
	if round.CompletedAt == nil {
		t.Error("Round should be marked completed")
	}
}

func TestDebateRoundToleratesFailingTask(t *testing.T) {
	orch, mocks, _ := newTestOrchestrator(t, models.RoleGenerator, models.RoleGenerator, models.RoleReviewer)
	mocks[2].FailCritique = true

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	round, err := orch.RunRound(ctx, models.ModeDebate, twoStrategies(), "")
	if err != nil {
		t.Fatalf("RunRound should survive a failing task: %v", err)
	}

	// The reviewer critiques both strategies and fails both times; the two
	// cross-generator critiques remain... plus nothing else. With the reviewer
	// out, each strategy keeps exactly one critique from the other generator.
	if got := countCritiques(round); got != 2 {
		t.Errorf("Expected 2 recorded critiques, got %d", got)
	}
	if round.CompletedAt == nil {
		t.Error("Round must still complete when a task fails")
	}
}

func TestCollaborationRoundMergesSuggestions(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t, models.RoleGenerator, models.RoleReviewer, models.RoleQuant)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	strategies := []*models.ArenaStrategy{{ID: "s-0", AgentID: "agent-0", Name: "Alpha", IsActive: true}}
	round, err := orch.RunRound(ctx, models.ModeCollaboration, strategies, "")
	if err != nil {
		t.Fatalf("RunRound failed: %v", err)
	}

	// Each mock contributes one suggestion; two non-authoring agents.
	if round.Conclusions["s-0"] != "2 suggestions merged" {
		t.Errorf("Unexpected conclusion: %q", round.Conclusions["s-0"])
	}
}

func TestReviewRoundMeanScore(t *testing.T) {
	orch, mocks, _ := newTestOrchestrator(t, models.RoleGenerator, models.RoleReviewer, models.RoleRisk)
	mocks[1].CritiqueScore = 80
	mocks[2].CritiqueScore = 60

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	strategies := []*models.ArenaStrategy{{ID: "s-0", AgentID: "agent-0", Name: "Alpha", IsActive: true}}
	round, err := orch.RunRound(ctx, models.ModeReview, strategies, "")
	if err != nil {
		t.Fatalf("RunRound failed: %v", err)
	}

	// reviewer (80) and risk_analyst (60) both match the reviewer subset.
	if round.Conclusions["s-0"] != "average review score 70.0" {
		t.Errorf("Unexpected conclusion: %q", round.Conclusions["s-0"])
	}
}

func TestUnknownModeFails(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t, models.RoleGenerator)
	if _, err := orch.RunRound(context.Background(), models.DiscussionMode("bogus"), nil, ""); err == nil {
		t.Fatal("Expected error for unknown mode")
	}
}

func TestRefineStrategiesLineage(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t, models.RoleGenerator, models.RoleGenerator, models.RoleReviewer)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	strategies := twoStrategies()
	round, err := orch.RunRound(ctx, models.ModeDebate, strategies, "")
	if err != nil {
		t.Fatalf("RunRound failed: %v", err)
	}

	refined := orch.RefineStrategies(ctx, strategies, round)

	if len(refined) != 2 {
		t.Fatalf("Expected 2 refined strategies, got %d", len(refined))
	}
	for i, r := range refined {
		parent := strategies[i]
		if r.ID == parent.ID {
			t.Errorf("Refinement must produce a new strategy value, got same ID %s", r.ID)
		}
		if len(r.RefinementHistory) != len(parent.RefinementHistory)+1 {
			t.Errorf("Expected lineage length %d, got %d", len(parent.RefinementHistory)+1, len(r.RefinementHistory))
		}
		last := r.RefinementHistory[len(r.RefinementHistory)-1]
		if last.ParentID != parent.ID {
			t.Errorf("Lineage must reference parent %s, got %s", parent.ID, last.ParentID)
		}
		if last.CritiqueCount != 2 {
			t.Errorf("Expected 2 critiques recorded, got %d", last.CritiqueCount)
		}
	}
}

func TestRefineSubstitutesOriginalOnFailure(t *testing.T) {
	orch, mocks, _ := newTestOrchestrator(t, models.RoleGenerator, models.RoleGenerator, models.RoleReviewer)
	mocks[0].FailRefine = true

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	strategies := twoStrategies()
	round, err := orch.RunRound(ctx, models.ModeDebate, strategies, "")
	if err != nil {
		t.Fatalf("RunRound failed: %v", err)
	}

	refined := orch.RefineStrategies(ctx, strategies, round)

	// agent-0 owns s-0 and fails to refine it; the original passes through.
	if refined[0].ID != "s-0" {
		t.Errorf("Expected original s-0 kept on refine failure, got %s", refined[0].ID)
	}
	// s-1's owner still refines normally.
	if refined[1].ID == "s-1" {
		t.Error("Expected s-1 to be replaced by its refinement")
	}
}

func TestRefinePassThroughWithoutCritiques(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t, models.RoleGenerator)

	strategies := twoStrategies()
	round := &models.DiscussionRound{ID: "r-empty", Conclusions: map[string]string{}}

	refined := orch.RefineStrategies(context.Background(), strategies, round)
	for i := range strategies {
		if refined[i] != strategies[i] {
			t.Errorf("Strategy %s must pass through unchanged with no critiques", strategies[i].ID)
		}
	}
}

func TestRoundMessagesReachHubSubscribers(t *testing.T) {
	orch, _, hub := newTestOrchestrator(t, models.RoleGenerator, models.RoleReviewer)

	ch, history := hub.Subscribe()
	defer hub.Unsubscribe(ch)
	if len(history) != 0 {
		t.Fatalf("Expected empty history before the round, got %d", len(history))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := orch.RunRound(ctx, models.ModeDebate, twoStrategies(), ""); err != nil {
		t.Fatalf("RunRound failed: %v", err)
	}

	if len(hub.History()) == 0 {
		t.Error("Hub history should contain round messages")
	}
}
