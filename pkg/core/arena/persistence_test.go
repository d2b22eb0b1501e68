package arena

import (
	"context"
	"os"
	"testing"
	"time"

	"strategy_arena/pkg/core/store"
	"strategy_arena/pkg/models"

	"github.com/google/uuid"
)

// Round-trips the repo against a real database, including the schema
// bootstrap on a fresh instance. Skipped unless DATABASE_URL is set.
func TestArenaRepoRoundTrip(t *testing.T) {
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	if err := store.InitDB(ctx); err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}

	repo := NewArenaRepo()
	cfg := simulationConfig(5)
	cfg.Normalize()

	a := &models.Arena{
		ID:        uuid.New().String(),
		UserID:    "u-test",
		Config:    cfg,
		State:     models.StateCreated,
		CreatedAt: time.Now(),
	}
	if err := repo.CreateArena(ctx, a); err != nil {
		t.Fatalf("CreateArena failed: %v", err)
	}
	if err := repo.UpdateState(ctx, a.ID, models.StateDiscussing); err != nil {
		t.Fatalf("UpdateState failed: %v", err)
	}

	a.State = models.StateDiscussing
	a.Strategies = []*models.ArenaStrategy{{
		ID:       uuid.New().String(),
		ArenaID:  a.ID,
		Name:     "Momentum",
		IsActive: true,
	}}
	if err := repo.SaveSnapshot(ctx, a); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	msg := models.ThinkingMessage{
		ID:        uuid.New().String(),
		AgentID:   "gen-1",
		AgentRole: models.RoleGenerator,
		Type:      models.MessageThinking,
		Content:   "weighing momentum entries",
		RoundID:   "round-1",
		Metadata:  map[string]interface{}{"target_strategy_id": a.Strategies[0].ID},
		Timestamp: time.Now(),
	}
	if err := repo.AddMessage(ctx, a.ID, msg); err != nil {
		t.Fatalf("AddMessage failed: %v", err)
	}

	history, err := repo.GetMessages(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetMessages failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(history))
	}
	got := history[0]
	if got.ID != msg.ID || got.Content != msg.Content {
		t.Errorf("Message did not round-trip: got %+v", got)
	}
	if got.AgentRole != models.RoleGenerator || got.Type != models.MessageThinking {
		t.Errorf("Role or type did not round-trip: got %s/%s", got.AgentRole, got.Type)
	}
}
