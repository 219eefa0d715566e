package hub

import (
	"sync"

	"peerprep/interview/internal/models"
)

// Hub manages all active session groups.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]*Group
}

func NewHub() *Hub { return &Hub{groups: make(map[string]*Group)} }

// Join attaches c to the session's group, creating the group if needed.
func (h *Hub) Join(id string, c *Client) *Group {
	h.mu.Lock()
	defer h.mu.Unlock()
	g, ok := h.groups[id]
	if !ok {
		g = NewGroup(id)
		h.groups[id] = g
	}
	g.Join(c)
	return g
}

func (h *Hub) Get(id string) (*Group, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	g, ok := h.groups[id]
	return g, ok
}

// Leave removes c from the group and drops the group once it is empty.
func (h *Hub) Leave(g *Group, c *Client) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	left := g.Leave(c)
	if left == 0 && h.groups[g.ID] == g {
		delete(h.groups, g.ID)
	}
	return left
}

// Notify delivers a server-originated event to every connection of the
// session. Sessions nobody is connected to are skipped.
func (h *Hub) Notify(sessionID string, event models.Event) {
	g, ok := h.Get(sessionID)
	if !ok {
		return
	}
	g.Broadcast(nil, event)
}
