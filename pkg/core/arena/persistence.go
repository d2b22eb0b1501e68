package arena

import (
	"context"
	"encoding/json"
	"fmt"

	"strategy_arena/pkg/core/store"
	"strategy_arena/pkg/models"
)

// ArenaRepo handles persistence for arenas and their event streams.
type ArenaRepo struct{}

// NewArenaRepo creates a new instance of ArenaRepo.
func NewArenaRepo() *ArenaRepo {
	return &ArenaRepo{}
}

// CreateArena inserts the initial arena record.
func (r *ArenaRepo) CreateArena(ctx context.Context, a *models.Arena) error {
	pool := store.GetPool()
	if pool == nil {
		return fmt.Errorf("database not initialized")
	}

	configJSON, err := json.Marshal(a.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal arena config: %w", err)
	}

	query := `
		INSERT INTO arenas (id, user_id, config, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`
	_, err = pool.Exec(ctx, query, a.ID, a.UserID, configJSON, a.State, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create arena record: %w", err)
	}
	return nil
}

// UpdateState records a lifecycle transition.
func (r *ArenaRepo) UpdateState(ctx context.Context, id string, state models.ArenaState) error {
	pool := store.GetPool()
	if pool == nil {
		return fmt.Errorf("database not initialized")
	}

	query := `
		UPDATE arenas
		SET state = $2, updated_at = NOW()
		WHERE id = $1
	`
	_, err := pool.Exec(ctx, query, id, state)
	if err != nil {
		return fmt.Errorf("failed to update arena state: %w", err)
	}
	return nil
}

// SaveSnapshot persists the full arena aggregate as JSON alongside its state.
func (r *ArenaRepo) SaveSnapshot(ctx context.Context, a *models.Arena) error {
	pool := store.GetPool()
	if pool == nil {
		return fmt.Errorf("database not initialized")
	}

	snapshot, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal arena snapshot: %w", err)
	}

	query := `
		UPDATE arenas
		SET snapshot = $2, state = $3, updated_at = NOW()
		WHERE id = $1
	`
	_, err = pool.Exec(ctx, query, a.ID, snapshot, a.State)
	if err != nil {
		return fmt.Errorf("failed to save arena snapshot: %w", err)
	}
	return nil
}

// AddMessage appends one event-stream message. Satisfies stream.MessageSink.
func (r *ArenaRepo) AddMessage(ctx context.Context, arenaID string, msg models.ThinkingMessage) error {
	pool := store.GetPool()
	if pool == nil {
		return fmt.Errorf("database not initialized")
	}

	metadataJSON, err := json.Marshal(msg.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal message metadata: %w", err)
	}

	query := `
		INSERT INTO arena_messages (id, arena_id, agent_id, agent_role, type, content, target_strategy_id, round_id, metadata, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = pool.Exec(ctx, query, msg.ID, arenaID, msg.AgentID, msg.AgentRole, msg.Type,
		msg.Content, msg.TargetStrategyID, msg.RoundID, metadataJSON, msg.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to add arena message: %w", err)
	}
	return nil
}

// GetMessages retrieves the persisted event stream for an arena in
// publication order.
func (r *ArenaRepo) GetMessages(ctx context.Context, arenaID string) ([]models.ThinkingMessage, error) {
	pool := store.GetPool()
	if pool == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT id, agent_id, agent_role, type, content, target_strategy_id, round_id, metadata, timestamp
		FROM arena_messages
		WHERE arena_id = $1
		ORDER BY timestamp ASC
	`
	rows, err := pool.Query(ctx, query, arenaID)
	if err != nil {
		return nil, fmt.Errorf("failed to query arena messages: %w", err)
	}
	defer rows.Close()

	var history []models.ThinkingMessage
	for rows.Next() {
		var msg models.ThinkingMessage
		var roleStr, typeStr string
		var metadataJSON []byte

		if err := rows.Scan(&msg.ID, &msg.AgentID, &roleStr, &typeStr, &msg.Content,
			&msg.TargetStrategyID, &msg.RoundID, &metadataJSON, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		msg.AgentRole = models.AgentRole(roleStr)
		msg.Type = models.MessageType(typeStr)

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &msg.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal message metadata: %w", err)
			}
		}

		history = append(history, msg)
	}

	return history, nil
}
