package notify

import (
	"encoding/json"
	"sync"

	"medicare-backend/internal/shared/metrics"
	"medicare-backend/internal/shared/telemetry"
)

const defaultClientBuffer = 32

// Client is one connected stream. Messages are pre-encoded JSON frames.
type Client struct {
	userID string
	send   chan []byte
}

func (c *Client) UserID() string { return c.userID }

// Messages is closed when the client is unregistered.
func (c *Client) Messages() <-chan []byte { return c.send }

// Hub maps user ids to their connected clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	buffer  int
}

func NewHub() *Hub {
	return NewHubWithBuffer(defaultClientBuffer)
}

func NewHubWithBuffer(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultClientBuffer
	}
	return &Hub{clients: map[string]map[*Client]struct{}{}, buffer: buffer}
}

func (h *Hub) Register(userID string) *Client {
	c := &Client{userID: userID, send: make(chan []byte, h.buffer)}
	h.mu.Lock()
	set, ok := h.clients[userID]
	if !ok {
		set = map[*Client]struct{}{}
		h.clients[userID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()
	metrics.ClientConnected()
	return c
}

// Unregister removes the client and closes its channel. Calling it twice is safe.
func (h *Hub) Unregister(c *Client) {
	if c == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
	close(c.send)
	metrics.ClientDisconnected()
}

// Publish fans the event out to every client of userID without blocking.
// A client whose buffer is full misses the event.
func (h *Hub) Publish(userID string, ev Event) {
	frame, err := json.Marshal(ev)
	if err != nil {
		telemetry.Error("notify.encode_failed", map[string]any{
			"session_id": ev.SessionID,
			"error":      err.Error(),
		})
		return
	}
	h.deliver(userID, ev.SessionID, frame)
}

func (h *Hub) deliver(userID, sessionID string, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[userID] {
		select {
		case c.send <- frame:
		default:
			metrics.IncDroppedEvent()
			telemetry.Warn("notify.dropped", map[string]any{
				"user_id":    userID,
				"session_id": sessionID,
			})
		}
	}
}

// Connected returns how many clients userID currently has.
func (h *Hub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}
