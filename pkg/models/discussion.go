package models

import "time"

// MessageType classifies entries in the narrative event stream.
type MessageType string

const (
	MessageThinking   MessageType = "thinking"
	MessageArgument   MessageType = "argument"
	MessageConclusion MessageType = "conclusion"
	MessageSystem     MessageType = "system"
	MessageError      MessageType = "error"
)

// ThinkingMessage is one append-only entry in the arena's event stream.
type ThinkingMessage struct {
	ID               string                 `json:"id"`
	AgentID          string                 `json:"agent_id"`
	AgentRole        AgentRole              `json:"agent_role"`
	Type             MessageType            `json:"type"`
	Content          string                 `json:"content"`
	TargetStrategyID string                 `json:"target_strategy_id,omitempty"`
	RoundID          string                 `json:"round_id,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
	Timestamp        time.Time              `json:"timestamp"`
}

// DiscussionRound records one bounded interaction cycle among agents.
// Append-only while running; immutable once CompletedAt is set.
type DiscussionRound struct {
	ID           string            `json:"id"`
	ArenaID      string            `json:"arena_id"`
	Number       int               `json:"number"`
	Mode         DiscussionMode    `json:"mode"`
	Participants []string          `json:"participants"`
	Messages     []ThinkingMessage `json:"messages"`
	Conclusions  map[string]string `json:"conclusions"` // strategy ID -> summary
	StartedAt    time.Time         `json:"started_at"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
}
