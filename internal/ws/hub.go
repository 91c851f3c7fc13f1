package ws

import (
	"fmt"
	"sync"
)

// Room names. Every room carries the company id so a message addressed to
// one tenant can never reach a socket of another.
func UserRoom(companyID, userID uint) string {
	return fmt.Sprintf("user:%d:%d", companyID, userID)
}

func CompanyRoom(companyID uint) string {
	return fmt.Sprintf("company:%d", companyID)
}

func AdminRoom(companyID uint) string {
	return fmt.Sprintf("admin:%d", companyID)
}

// Client represents a single WebSocket connection. Identity fields are only
// set from verified token claims, before the client joins any room.
type Client struct {
	ID        string
	UserID    uint
	CompanyID uint
	IsAdmin   bool
	Send      chan []byte

	hub    *Hub
	mu     sync.Mutex
	closed bool
	joined bool
}

func NewClient(id string, buffer int) *Client {
	if buffer <= 0 {
		buffer = 256
	}
	return &Client{ID: id, Send: make(chan []byte, buffer)}
}

// Joined reports whether the client passed the join handshake.
func (c *Client) Joined() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joined
}

func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	hub := c.hub
	c.mu.Unlock()
	if hub != nil {
		hub.LeaveAll(c)
	}
	close(c.Send)
}

// Hub maps rooms to the local sockets subscribed to them.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
	// client -> rooms it is in, for LeaveAll
	member map[*Client][]string
}

func NewHub() *Hub {
	return &Hub{
		rooms:  make(map[string]map[*Client]struct{}),
		member: make(map[*Client][]string),
	}
}

// Join puts the client into its user and company rooms, and into the admin
// room of its company when it is an admin. It returns the joined rooms.
func (h *Hub) Join(c *Client) []string {
	rooms := []string{UserRoom(c.CompanyID, c.UserID), CompanyRoom(c.CompanyID)}
	if c.IsAdmin {
		rooms = append(rooms, AdminRoom(c.CompanyID))
	}

	c.mu.Lock()
	if c.closed || c.joined {
		c.mu.Unlock()
		return nil
	}
	c.joined = true
	c.hub = h
	c.mu.Unlock()

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range rooms {
		if h.rooms[r] == nil {
			h.rooms[r] = make(map[*Client]struct{})
		}
		h.rooms[r][c] = struct{}{}
	}
	h.member[c] = rooms
	return rooms
}

func (h *Hub) LeaveAll(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range h.member[c] {
		if m := h.rooms[r]; m != nil {
			delete(m, c)
			if len(m) == 0 {
				delete(h.rooms, r)
			}
		}
	}
	delete(h.member, c)
}

func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.member)
}

// dispatch hands data to every local socket in room except excludeID. A
// client whose buffer is full misses the message.
func (h *Hub) dispatch(room string, data []byte, excludeID string) int {
	h.mu.RLock()
	m := h.rooms[room]
	clients := make([]*Client, 0, len(m))
	for c := range m {
		if excludeID != "" && c.ID == excludeID {
			continue
		}
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range clients {
		if c.trySend(data) {
			sent++
		}
	}
	return sent
}

func (c *Client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}
