package ws

import (
	"log"
	"sync"

	"github.com/playshiri/backend/internal/bus"
)

// Client is one connected subscriber of a game.
type Client struct {
	transport Transport
	gameID    string
	playerID  string // empty for lobby watchers without a player row
	sub       *bus.Subscription
	done      chan struct{}
	closeOnce sync.Once
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.transport.Close()
	})
}

// Hub tracks connected clients so a reconnect can replace the previous
// connection for the same player.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client // gameID+":"+playerID -> Client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func clientKey(gameID, playerID string) string {
	return gameID + ":" + playerID
}

// register adds the client, closing any previous connection for the same
// player. It reports whether this is a reconnect.
func (h *Hub) register(c *Client) bool {
	if c.playerID == "" {
		return false
	}
	key := clientKey(c.gameID, c.playerID)

	h.mu.Lock()
	old, exists := h.clients[key]
	h.clients[key] = c
	h.mu.Unlock()

	if exists {
		log.Printf("[WS] player %s reconnecting to game %s - closing old connection", c.playerID, c.gameID)
		old.close()
	}
	return exists
}

// unregister removes the client if it is still the registered one; a client
// replaced by a reconnect must not evict its successor.
func (h *Hub) unregister(c *Client) bool {
	if c.playerID == "" {
		return true
	}
	key := clientKey(c.gameID, c.playerID)

	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.clients[key]; ok && cur == c {
		delete(h.clients, key)
		return true
	}
	return false
}

// Connected reports whether the player has a live connection.
func (h *Hub) Connected(gameID, playerID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[clientKey(gameID, playerID)]
	return ok
}
