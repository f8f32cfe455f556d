package realtime

import (
	"log/slog"
	"sync"
)

// Event is pushed to every socket subscribed to a workspace.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub fans workspace events out to connected inbox clients.
type Hub struct {
	mu         sync.RWMutex
	workspaces map[string]map[*Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{
		workspaces: make(map[string]map[*Conn]struct{}),
	}
}

func (h *Hub) Register(workspaceID string, conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.workspaces[workspaceID] == nil {
		h.workspaces[workspaceID] = make(map[*Conn]struct{})
	}
	h.workspaces[workspaceID][conn] = struct{}{}
}

func (h *Hub) Unregister(workspaceID string, conn *Conn) {
	h.mu.Lock()
	if conns, ok := h.workspaces[workspaceID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.workspaces, workspaceID)
		}
	}
	h.mu.Unlock()
	_ = conn.Close()
}

// Subscribers reports how many sockets listen on a workspace.
func (h *Hub) Subscribers(workspaceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.workspaces[workspaceID])
}

func (h *Hub) Publish(workspaceID, eventType string, data any) {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.workspaces[workspaceID]))
	for conn := range h.workspaces[workspaceID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	ev := Event{Type: eventType, Data: data}
	for _, conn := range conns {
		if err := conn.WriteJSON(ev); err != nil {
			slog.Debug("[realtime] write failed", "workspace_id", workspaceID, "err", err)
		}
	}
}
