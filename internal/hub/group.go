package hub

import (
	"sync"

	"peerprep/interview/internal/metrics"
	"peerprep/interview/internal/models"
)

// Group is the set of connections attached to one session.
type Group struct {
	ID      string
	mu      sync.Mutex
	clients map[*Client]struct{}
}

func NewGroup(id string) *Group {
	return &Group{ID: id, clients: make(map[*Client]struct{})}
}

func (g *Group) Join(c *Client) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clients[c] = struct{}{}
}

// Leave removes c and returns how many clients remain.
func (g *Group) Leave(c *Client) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.clients, c)
	return len(g.clients)
}

// HasUser reports whether userID still has a connection in the group.
func (g *Group) HasUser(userID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for c := range g.clients {
		if c.UserID == userID {
			return true
		}
	}
	return false
}

// Broadcast sends event to every client except sender. A nil sender reaches
// everyone.
func (g *Group) Broadcast(sender *Client, event models.Event) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for c := range g.clients {
		if c == sender {
			continue
		}
		c.Send(event)
	}
	metrics.HubFrames.WithLabelValues(event.Type).Inc()
}
