package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"strategy_arena/pkg/models"

	"github.com/google/uuid"
)

// Publisher is the narrative event stream every arena component writes to.
type Publisher interface {
	Publish(agentID string, role models.AgentRole, content string, msgType models.MessageType, roundID string, metadata map[string]interface{}) models.ThinkingMessage
	PublishSystem(content string, metadata map[string]interface{}) models.ThinkingMessage
	PublishError(content string, metadata map[string]interface{}) models.ThinkingMessage
}

// MessageSink persists published messages. The hub writes to it
// asynchronously so a slow database never blocks the publishing goroutine.
type MessageSink interface {
	AddMessage(ctx context.Context, arenaID string, msg models.ThinkingMessage) error
}

// Hub fans published messages out to subscriber channels and keeps the full
// history for replay. Subscribers that fall behind have messages dropped
// rather than blocking the publisher.
type Hub struct {
	arenaID string
	sink    MessageSink // nil in simulation mode

	history     []models.ThinkingMessage
	subscribers []chan models.ThinkingMessage
	mu          sync.RWMutex
}

var _ Publisher = (*Hub)(nil)

// NewHub creates a hub for one arena. sink may be nil to disable persistence.
func NewHub(arenaID string, sink MessageSink) *Hub {
	return &Hub{arenaID: arenaID, sink: sink}
}

// Subscribe registers a client channel and returns it together with a copy of
// the history so the caller can replay before streaming live updates.
func (h *Hub) Subscribe() (chan models.ThinkingMessage, []models.ThinkingMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan models.ThinkingMessage, 100)
	h.subscribers = append(h.subscribers, ch)

	historyCopy := make([]models.ThinkingMessage, len(h.history))
	copy(historyCopy, h.history)

	return ch, historyCopy
}

// Unsubscribe removes a client channel and closes it.
func (h *Hub) Unsubscribe(ch chan models.ThinkingMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, sub := range h.subscribers {
		if sub == ch {
			h.subscribers = append(h.subscribers[:i], h.subscribers[i+1:]...)
			close(sub)
			break
		}
	}
}

// History returns a copy of everything published so far.
func (h *Hub) History() []models.ThinkingMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]models.ThinkingMessage, len(h.history))
	copy(out, h.history)
	return out
}

func (h *Hub) Publish(agentID string, role models.AgentRole, content string, msgType models.MessageType, roundID string, metadata map[string]interface{}) models.ThinkingMessage {
	msg := models.ThinkingMessage{
		ID:        uuid.New().String(),
		AgentID:   agentID,
		AgentRole: role,
		Type:      msgType,
		Content:   content,
		RoundID:   roundID,
		Metadata:  metadata,
		Timestamp: time.Now(),
	}
	if target, ok := metadata["target_strategy_id"].(string); ok {
		msg.TargetStrategyID = target
	}
	h.broadcast(msg)
	return msg
}

func (h *Hub) PublishSystem(content string, metadata map[string]interface{}) models.ThinkingMessage {
	return h.Publish("system", "", content, models.MessageSystem, "", metadata)
}

func (h *Hub) PublishError(content string, metadata map[string]interface{}) models.ThinkingMessage {
	return h.Publish("system", "", content, models.MessageError, "", metadata)
}

func (h *Hub) broadcast(msg models.ThinkingMessage) {
	h.mu.Lock()

	h.history = append(h.history, msg)

	if h.sink != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := h.sink.AddMessage(ctx, h.arenaID, msg); err != nil {
				fmt.Printf("[STREAM] Error persisting message: %v\n", err)
			}
		}()
	}

	for _, ch := range h.subscribers {
		select {
		case ch <- msg:
		default:
			// Drop for slow clients; the publisher must never block.
		}
	}

	h.mu.Unlock()
}
