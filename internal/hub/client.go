package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"peerprep/interview/internal/metrics"
	"peerprep/interview/internal/models"
)

const (
	sendQueueSize = 64
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = (pongWait * 9) / 10
	maxFrameBytes = 1 << 20
)

// Client is one WebSocket connection of a user to a session group. Outbound
// frames go through a bounded queue drained by WritePump; when the queue is
// full new frames are dropped.
type Client struct {
	UserID string
	Conn   *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
	hook   func(models.Event)
}

func NewClient(conn *websocket.Conn, userID string) *Client {
	return &Client{
		UserID: userID,
		Conn:   conn,
		send:   make(chan []byte, sendQueueSize),
	}
}

// SetSendHook replaces the default WebSocket sender (used in tests).
func (c *Client) SetSendHook(fn func(models.Event)) {
	c.mu.Lock()
	c.hook = fn
	c.mu.Unlock()
}

// Send queues an event without blocking. It reports false when the event was
// dropped because the client is closed or its queue is full.
func (c *Client) Send(event models.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hook != nil {
		c.hook(event)
		return true
	}
	if c.closed {
		return false
	}
	data, err := json.Marshal(event)
	if err != nil {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		metrics.HubDropped.Inc()
		return false
	}
}

// Close stops the write pump. Safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// WritePump drains the queue onto the connection in order and keeps the
// connection alive with pings. It returns when the queue is closed or a write
// fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
