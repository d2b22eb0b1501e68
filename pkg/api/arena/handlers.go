package arena

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"strategy_arena/pkg/core/arena"
	"strategy_arena/pkg/models"
)

// Handlers exposes the arena lifecycle over HTTP.
type Handlers struct {
	manager *arena.Manager
}

func NewHandlers(manager *arena.Manager) *Handlers {
	return &Handlers{manager: manager}
}

type CreateArenaRequest struct {
	UserID string             `json:"user_id"`
	Config models.ArenaConfig `json:"config"`
}

type CreateArenaResponse struct {
	ArenaID string            `json:"arena_id"`
	State   models.ArenaState `json:"state"`
}

type arenaIDRequest struct {
	ArenaID string `json:"arena_id"`
}

func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// writeError maps domain errors onto HTTP status codes: config errors are the
// caller's fault, state errors are conflicts, everything else is internal.
func writeError(w http.ResponseWriter, err error) {
	var stateErr *arena.StateError
	var configErr *arena.ConfigError
	switch {
	case errors.As(err, &configErr):
		http.Error(w, configErr.Error(), http.StatusBadRequest)
	case errors.As(err, &stateErr):
		http.Error(w, stateErr.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleCreate creates a new arena from the posted configuration.
func (h *Handlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CreateArenaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	orch, err := h.manager.CreateArena(r.Context(), req.UserID, req.Config)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(CreateArenaResponse{ArenaID: orch.ID(), State: orch.State()})
}

// lifecycleHandler factors the shared shape of start/pause/resume/stop.
func (h *Handlers) lifecycleHandler(op func(*arena.Orchestrator, *http.Request) error, status string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORS(w)
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req arenaIDRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}
		if req.ArenaID == "" {
			http.Error(w, "arena_id is required", http.StatusBadRequest)
			return
		}

		orch, exists := h.manager.GetArena(req.ArenaID)
		if !exists {
			http.Error(w, "Arena not found", http.StatusNotFound)
			return
		}

		if err := op(orch, r); err != nil {
			writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": status, "arena_id": req.ArenaID})
	}
}

// HandleStart launches an arena's run loop.
func (h *Handlers) HandleStart(w http.ResponseWriter, r *http.Request) {
	h.lifecycleHandler(func(o *arena.Orchestrator, r *http.Request) error {
		return o.Start(r.Context())
	}, "started")(w, r)
}

// HandlePause suspends a running arena.
func (h *Handlers) HandlePause(w http.ResponseWriter, r *http.Request) {
	h.lifecycleHandler(func(o *arena.Orchestrator, r *http.Request) error {
		return o.Pause(r.Context())
	}, "paused")(w, r)
}

// HandleResume continues a paused arena.
func (h *Handlers) HandleResume(w http.ResponseWriter, r *http.Request) {
	h.lifecycleHandler(func(o *arena.Orchestrator, r *http.Request) error {
		return o.Resume(r.Context())
	}, "resumed")(w, r)
}

// HandleStop cancels an arena and marks it completed.
func (h *Handlers) HandleStop(w http.ResponseWriter, r *http.Request) {
	h.lifecycleHandler(func(o *arena.Orchestrator, r *http.Request) error {
		return o.Stop(r.Context())
	}, "stopped")(w, r)
}

// getArena resolves the ?id= query parameter for the read endpoints.
func (h *Handlers) getArena(w http.ResponseWriter, r *http.Request) (*arena.Orchestrator, bool) {
	setCORS(w)
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Missing 'id' query parameter", http.StatusBadRequest)
		return nil, false
	}
	orch, exists := h.manager.GetArena(id)
	if !exists {
		http.Error(w, "Arena not found", http.StatusNotFound)
		return nil, false
	}
	return orch, true
}

// HandleStatus returns the arena's read-only status view.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	orch, ok := h.getArena(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(orch.Status())
}

// HandleStrategies lists the arena's strategies. Pass active_only=true to
// exclude eliminated history.
func (h *Handlers) HandleStrategies(w http.ResponseWriter, r *http.Request) {
	orch, ok := h.getArena(w, r)
	if !ok {
		return
	}
	activeOnly := r.URL.Query().Get("active_only") == "true"
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"strategies": orch.Strategies(activeOnly)})
}

// HandleLeaderboard returns active strategies ranked by score descending.
func (h *Handlers) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	orch, ok := h.getArena(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"leaderboard": orch.Leaderboard()})
}

// HandleHistory returns the ordered discussion rounds.
func (h *Handlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	orch, ok := h.getArena(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"rounds": orch.History()})
}

// HandleList returns the status of every live arena.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"arenas": h.manager.ListArenas()})
}

// HandleStream provides an SSE stream of arena messages, replaying history
// before live updates.
func (h *Handlers) HandleStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Content-Type", "text/event-stream")

	arenaID := r.URL.Query().Get("id")
	if arenaID == "" {
		http.Error(w, "Missing 'id' query parameter", http.StatusBadRequest)
		return
	}

	orch, exists := h.manager.GetArena(arenaID)
	if !exists {
		http.Error(w, "Arena not found", http.StatusNotFound)
		return
	}

	msgChan, history := orch.Hub().Subscribe()
	defer orch.Hub().Unsubscribe(msgChan)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	for _, msg := range history {
		if err := sendSSE(w, flusher, msg); err != nil {
			return
		}
	}

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	notify := r.Context().Done()

	for {
		select {
		case msg, open := <-msgChan:
			if !open {
				sendSSEEvent(w, flusher, "status", "closed")
				return
			}
			if err := sendSSE(w, flusher, msg); err != nil {
				return
			}
			if state := orch.State(); state == models.StateCompleted || state == models.StateFailed {
				sendSSEEvent(w, flusher, "status", string(state))
			}

		case <-ticker.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()

		case <-notify:
			return
		}
	}
}

func sendSSE(w http.ResponseWriter, flusher http.Flusher, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()
	return nil
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data string) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	flusher.Flush()
}
