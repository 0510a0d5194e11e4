// Package notifications provides real-time event delivery and connection management.
package notifications

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"

	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
)

const (
	// Max connections per user
	maxConnsPerUser = 12
	// Max total connections
	maxTotalConns = 10000
)

// userEntry holds all live connections for one user behind its own lock.
// Locking is per user so a slow or churning user never serializes
// registration or delivery for anyone else.
type userEntry struct {
	mu sync.Mutex
	// nil means the entry was retired after its last client left and must
	// not be reused.
	clients map[*Client]struct{}
}

// Hub is the connection registry: it maps userID -> set of live Clients.
// A user may hold several connections at once (multiple devices or tabs).
type Hub struct {
	conns      sync.Map // uint -> *userEntry
	totalConns atomic.Int64
	shutdown   chan struct{}
	done       chan struct{}
	presence   *ConnectionManager
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "message hub" }

// NewHub creates a new Hub instance.
func NewHub(redisClients ...*redis.Client) *Hub {
	var redisClient *redis.Client
	if len(redisClients) > 0 {
		redisClient = redisClients[0]
	}

	presence := NewConnectionManager(redisClient, ConnectionManagerConfig{})

	return &Hub{
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		presence: presence,
	}
}

// Register adds a connection for a given userID. Returns the Client or an
// error if a connection limit is exceeded.
func (h *Hub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	if h.totalConns.Add(1) > maxTotalConns {
		h.totalConns.Add(-1)
		return nil, errors.New("server connection limit reached")
	}

	client := NewClient(h, conn, userID)
	client.OnActivity = func(uid uint) {
		if h.presence != nil {
			h.presence.Touch(context.Background(), uid)
		}
	}

	for {
		v, _ := h.conns.LoadOrStore(userID, &userEntry{clients: make(map[*Client]struct{})})
		entry := v.(*userEntry)

		entry.mu.Lock()
		if entry.clients == nil {
			// Entry was retired between LoadOrStore and Lock. Retry with a
			// fresh entry.
			entry.mu.Unlock()
			continue
		}
		if len(entry.clients) >= maxConnsPerUser {
			entry.mu.Unlock()
			h.totalConns.Add(-1)
			return nil, errors.New("user connection limit reached")
		}
		entry.clients[client] = struct{}{}
		entry.mu.Unlock()
		break
	}

	if h.presence != nil {
		h.presence.Register(context.Background(), userID)
	}

	return client, nil
}

// UnregisterClient removes a client from the registry. When the user's last
// connection goes away the user disappears from the registry entirely.
func (h *Hub) UnregisterClient(client *Client) {
	v, ok := h.conns.Load(client.UserID)
	if !ok {
		return
	}
	entry := v.(*userEntry)

	removed := false
	entry.mu.Lock()
	if entry.clients != nil {
		if _, exists := entry.clients[client]; exists {
			delete(entry.clients, client)
			removed = true
		}
		if len(entry.clients) == 0 {
			entry.clients = nil
			h.conns.Delete(client.UserID)
		}
	}
	entry.mu.Unlock()

	if removed {
		h.totalConns.Add(-1)
		if h.presence != nil {
			h.presence.Unregister(context.Background(), client.UserID)
		}
	}
}

// SetPresenceCallbacks installs online/offline transition callbacks.
func (h *Hub) SetPresenceCallbacks(onOnline, onOffline func(userID uint)) {
	if h.presence == nil {
		return
	}
	h.presence.SetCallbacks(onOnline, onOffline)
}

// Broadcast sends message to every connection the user currently holds.
// Each connection receives it exactly once; a user with no connections is a
// silent no-op.
func (h *Hub) Broadcast(userID uint, message string) {
	v, ok := h.conns.Load(userID)
	if !ok {
		return
	}
	entry := v.(*userEntry)
	data := []byte(message)

	entry.mu.Lock()
	for c := range entry.clients {
		c.TrySend(data)
	}
	entry.mu.Unlock()
}

// BroadcastAll sends message to every connected client on this hub.
// Iteration takes each user's lock in turn, never all at once.
func (h *Hub) BroadcastAll(message string) {
	data := []byte(message)
	h.conns.Range(func(_, v any) bool {
		entry := v.(*userEntry)
		entry.mu.Lock()
		for c := range entry.clients {
			c.TrySend(data)
		}
		entry.mu.Unlock()
		return true
	})
}

// IsOnline reports whether a user currently has at least one active websocket connection.
func (h *Hub) IsOnline(userID uint) bool {
	if h.presence != nil {
		return h.presence.IsOnline(context.Background(), userID)
	}
	v, ok := h.conns.Load(userID)
	if !ok {
		return false
	}
	entry := v.(*userEntry)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return len(entry.clients) > 0
}

// ConnectionCount returns the number of live connections the user holds.
func (h *Hub) ConnectionCount(userID uint) int {
	v, ok := h.conns.Load(userID)
	if !ok {
		return 0
	}
	entry := v.(*userEntry)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return len(entry.clients)
}

// StartWiring connects the Notifier to this hub: it subscribes to the Redis
// pattern and forwards messages to matching userID connections.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartPatternSubscriber(ctx, func(channel, payload string) {
		if channel == broadcastChannel {
			h.BroadcastAll(payload)
			return
		}
		userID, ok := ParseUserChannel(channel)
		if !ok {
			log.Printf("invalid notification channel: %s", channel)
			return
		}
		h.Broadcast(userID, payload)
	})
}

// Shutdown gracefully closes all websocket connections.
func (h *Hub) Shutdown(_ context.Context) error {
	close(h.shutdown)

	if h.presence != nil {
		h.presence.Stop()
	}

	h.conns.Range(func(key, v any) bool {
		entry := v.(*userEntry)
		entry.mu.Lock()
		for client := range entry.clients {
			if client.Conn == nil {
				continue
			}
			if err := client.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")); err != nil {
				log.Printf("failed to write close message for user %d: %v", client.UserID, err)
			}
			if err := client.Conn.Close(); err != nil {
				log.Printf("failed to close websocket for user %d: %v", client.UserID, err)
			}
		}
		entry.clients = nil
		entry.mu.Unlock()
		h.conns.Delete(key)
		return true
	})
	h.totalConns.Store(0)

	close(h.done)

	return nil
}
