// Package relay implements the real-time fan-out layer: a registry of live
// websocket connections grouped by channel subscription, an event router
// that computes recipient sets, and the transport glue around them. Delivery
// is best-effort; durable persistence lives in the store package.
package relay

import (
	"sync"

	"github.com/dhruvsahu007/slackai/internal/metrics"
)

// Registry is the single source of truth, for one relay process, of which
// connections exist, what identity each claims, and what each has joined.
// It is the only shared mutable state in the relay; all access goes through
// the mutex.
type Registry struct {
	mu        sync.RWMutex
	conns     map[*Conn]struct{}
	byChannel map[string]map[*Conn]struct{}
	byUser    map[string]map[*Conn]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:     make(map[*Conn]struct{}),
		byChannel: make(map[string]map[*Conn]struct{}),
		byUser:    make(map[string]map[*Conn]struct{}),
	}
}

// Register adds a connection with no claimed identity and an empty
// subscription set.
func (r *Registry) Register(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[c]; ok {
		return
	}
	r.conns[c] = struct{}{}
	metrics.RelayConnections.Inc()
}

// Authenticate attaches a claimed identity to a connection. Re-authenticating
// overwrites the claim. The value is trusted as-is; verification belongs to
// the AuthProvider upstream of the handshake.
func (r *Registry) Authenticate(c *Conn, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[c]; !ok {
		return
	}
	if c.userID == userID {
		return
	}
	if c.userID != "" {
		r.removeFromIndex(r.byUser, c.userID, c)
	}
	c.userID = userID
	if userID != "" {
		r.addToIndex(r.byUser, userID, c)
	}
}

// UserID returns the connection's claimed identity, or "" before auth.
func (r *Registry) UserID(c *Conn) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return c.userID
}

// Subscribe adds a channel to the connection's subscription set. No-op if
// already subscribed or the connection is not registered.
func (r *Registry) Subscribe(c *Conn, channelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[c]; !ok {
		return
	}
	if _, ok := c.channels[channelID]; ok {
		return
	}
	c.channels[channelID] = struct{}{}
	r.addToIndex(r.byChannel, channelID, c)
}

// Unsubscribe removes a channel from the connection's subscription set.
// No-op if not subscribed.
func (r *Registry) Unsubscribe(c *Conn, channelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := c.channels[channelID]; !ok {
		return
	}
	delete(c.channels, channelID)
	r.removeFromIndex(r.byChannel, channelID, c)
}

// ConnsForChannel returns a snapshot of the connections subscribed to a
// channel. Safe to iterate while other connections join, leave, or close.
func (r *Registry) ConnsForChannel(channelID string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshot(r.byChannel[channelID])
}

// ConnsForUser returns a snapshot of the connections whose claimed identity
// equals userID. A user may have several simultaneous connections.
func (r *Registry) ConnsForUser(userID string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshot(r.byUser[userID])
}

// Unregister removes a connection and all its subscriptions and closes its
// outbound queue. Safe to call more than once; the second call is a no-op.
func (r *Registry) Unregister(c *Conn) {
	r.mu.Lock()
	if _, ok := r.conns[c]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.conns, c)
	for channelID := range c.channels {
		r.removeFromIndex(r.byChannel, channelID, c)
	}
	c.channels = make(map[string]struct{})
	if c.userID != "" {
		r.removeFromIndex(r.byUser, c.userID, c)
	}
	c.closed = true
	metrics.RelayConnections.Dec()
	r.mu.Unlock()

	// Close the queue after releasing the lock so the writer drains out.
	close(c.send)
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Snapshot returns all registered connections, for shutdown.
func (r *Registry) Snapshot() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshot(r.conns)
}

// safeSend enqueues a payload to a connection without blocking. It holds the
// read lock so the queue cannot be closed mid-send. Returns false when the
// connection is gone or its queue is full.
func (r *Registry) safeSend(c *Conn, payload []byte) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.conns[c]; !ok || c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (r *Registry) addToIndex(index map[string]map[*Conn]struct{}, key string, c *Conn) {
	set, ok := index[key]
	if !ok {
		set = make(map[*Conn]struct{})
		index[key] = set
	}
	set[c] = struct{}{}
}

func (r *Registry) removeFromIndex(index map[string]map[*Conn]struct{}, key string, c *Conn) {
	set, ok := index[key]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(index, key)
	}
}

func snapshot(set map[*Conn]struct{}) []*Conn {
	conns := make([]*Conn, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	return conns
}
