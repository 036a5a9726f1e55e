// internal/app/realtime/hub.go
package realtime

import (
	"sync"

	"go.uber.org/zap"
)

// TargetAll is the broadcast target that resolves to every connection
// currently joined to the shared presence room.
const TargetAll = "*"

// Sender delivers one outbound message to a single transport
// connection. Implementations must not block; a message may be dropped
// when the connection cannot keep up (delivery is best-effort).
type Sender interface {
	Send(v any)
}

// Hub is the connection registry. It owns the mapping from transport
// connections to authenticated users and resolves logical broadcast
// targets to live connections. It never sends network traffic itself.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*hubConn            // conn id -> connection
	users map[string]map[string]struct{} // user id -> conn ids in that user's room
	log   *zap.Logger
}

type hubConn struct {
	sender Sender
	userID string // empty until the connection joins
}

// NewHub creates an empty connection registry.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		conns: make(map[string]*hubConn),
		users: make(map[string]map[string]struct{}),
		log:   logger,
	}
}

// Register records a freshly opened transport connection. The
// connection is unowned until Join associates it with a user.
func (h *Hub) Register(connID string, sender Sender) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[connID] = &hubConn{sender: sender}
}

// Join associates a connection with a user's room and, implicitly, the
// shared presence room. Idempotent per connection. Unknown connections
// are ignored. When the connection was already joined to another user,
// that binding is detached and the previous owner is returned so the
// caller can cascade the same cleanup a closed connection gets.
func (h *Hub) Join(connID, userID string) (prevUserID string, joined bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.conns[connID]
	if !ok {
		h.log.Warn("join for unknown connection", zap.String("conn_id", connID))
		return "", false
	}
	if c.userID == userID {
		return "", true // already joined
	}
	if c.userID != "" {
		// Connection switching users: detach from the old room first.
		prevUserID = c.userID
		h.detach(connID, c.userID)
	}
	c.userID = userID
	set := h.users[userID]
	if set == nil {
		set = make(map[string]struct{})
		h.users[userID] = set
	}
	set[connID] = struct{}{}
	return prevUserID, true
}

// Leave removes the connection's room association. The connection stays
// registered and may join again. No-op if the connection is not joined
// to the given user's room. Returns true when this was the last
// connection in that user's room.
func (h *Hub) Leave(connID, userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.conns[connID]
	if !ok || c.userID != userID {
		return false
	}
	c.userID = ""
	return h.detach(connID, userID)
}

// Disconnect removes a closed transport connection. It returns the
// owning user id (empty for unowned connections) and whether this was
// the user's last live connection, so the caller can cascade presence
// and location cleanup.
func (h *Hub) Disconnect(connID string) (userID string, last bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.conns[connID]
	if !ok {
		return "", false
	}
	delete(h.conns, connID)
	if c.userID == "" {
		return "", false
	}
	return c.userID, h.detach(connID, c.userID)
}

// detach removes connID from userID's room. Caller holds h.mu.
// Returns true when the room became empty.
func (h *Hub) detach(connID, userID string) bool {
	set, ok := h.users[userID]
	if !ok {
		return false
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(h.users, userID)
		return true
	}
	return false
}

// Resolve maps a logical target to the senders it currently reaches:
// either every joined connection (TargetAll) or the connections in one
// user's room. The returned slice is a snapshot; it is safe to use
// without holding any hub lock.
func (h *Hub) Resolve(target string) []Sender {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if target == TargetAll {
		out := make([]Sender, 0, len(h.conns))
		for _, c := range h.conns {
			if c.userID != "" {
				out = append(out, c.sender)
			}
		}
		return out
	}

	set := h.users[target]
	if len(set) == 0 {
		return nil
	}
	out := make([]Sender, 0, len(set))
	for connID := range set {
		if c, ok := h.conns[connID]; ok {
			out = append(out, c.sender)
		}
	}
	return out
}

// Connected reports whether the user has at least one joined connection.
func (h *Hub) Connected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}
