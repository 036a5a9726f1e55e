// internal/app/realtime/presence.go
package realtime

import (
	"sync"
	"time"
)

// presenceEntry tracks one connected user. An entry exists iff the
// user has at least one live connection; offline is the absence of an
// entry, not a stored state.
type presenceEntry struct {
	status       Status
	lastActivity time.Time
	conns        map[string]struct{}
}

// PresenceTracker derives per-user online/away status from connection
// and activity events. It is the sole mutator of the presence map; the
// periodic away sweep and the heartbeat path both funnel through its
// mutex so they cannot race.
type PresenceTracker struct {
	mu            sync.Mutex
	entries       map[string]*presenceEntry
	awayThreshold time.Duration
}

// NewPresenceTracker creates a tracker that marks users away after the
// given period without activity.
func NewPresenceTracker(awayThreshold time.Duration) *PresenceTracker {
	return &PresenceTracker{
		entries:       make(map[string]*presenceEntry),
		awayThreshold: awayThreshold,
	}
}

// Join records a connection for the user and returns true when the
// user's visible status changed (offline→online or away→online), which
// is the only case worth broadcasting.
func (p *PresenceTracker) Join(userID, connID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[userID]
	if !ok {
		p.entries[userID] = &presenceEntry{
			status:       StatusOnline,
			lastActivity: time.Now().UTC(),
			conns:        map[string]struct{}{connID: {}},
		}
		return true
	}
	e.conns[connID] = struct{}{}
	e.lastActivity = time.Now().UTC()
	if e.status != StatusOnline {
		e.status = StatusOnline
		return true
	}
	return false
}

// Heartbeat refreshes the user's activity timestamp. It returns true
// only when the heartbeat revived an away user; a heartbeat while
// already online is not broadcast-worthy.
func (p *PresenceTracker) Heartbeat(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[userID]
	if !ok {
		return false
	}
	e.lastActivity = time.Now().UTC()
	if e.status == StatusAway {
		e.status = StatusOnline
		return true
	}
	return false
}

// ConnClosed removes one connection for the user. It returns true when
// that was the last connection and the entry was removed, in which case
// the caller should broadcast offline. Closing a connection for a user
// with no entry is a no-op.
func (p *PresenceTracker) ConnClosed(userID, connID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[userID]
	if !ok {
		return false
	}
	delete(e.conns, connID)
	if len(e.conns) == 0 {
		delete(p.entries, userID)
		return true
	}
	return false
}

// Sweep transitions online users whose last activity is older than the
// away threshold to away, returning the ids of users that changed. An
// already-away user is left alone, so each transition is reported once.
func (p *PresenceTracker) Sweep() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := time.Now().UTC().Add(-p.awayThreshold)
	var changed []string
	for userID, e := range p.entries {
		if e.status == StatusOnline && e.lastActivity.Before(cutoff) {
			e.status = StatusAway
			changed = append(changed, userID)
		}
	}
	return changed
}

// Snapshot returns a read-only copy of every tracked user's status.
func (p *PresenceTracker) Snapshot() map[string]Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]Status, len(p.entries))
	for userID, e := range p.entries {
		out[userID] = e.status
	}
	return out
}

// StatusOf returns the user's current status, or StatusOffline when the
// user has no live connections.
func (p *PresenceTracker) StatusOf(userID string) Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.entries[userID]; ok {
		return e.status
	}
	return StatusOffline
}
