// internal/app/realtime/location.go
package realtime

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultEpsilon is the minimum coordinate delta (in degrees, roughly
// 11 meters) a user must move before an update is broadcast. Smaller
// movements still refresh the stored entry.
const DefaultEpsilon = 0.0001

// LocationStore persists last-known coordinates. Implemented by the
// mongo-backed locations store; faked in tests.
type LocationStore interface {
	UpsertLocation(ctx context.Context, userID string, lat, lng float64) error
}

// Coordinates is an inbound lat/lng pair from a heartbeat payload.
type Coordinates struct {
	Lat float64
	Lng float64
}

// LocationEntry is a user's last-known position while connected.
type LocationEntry struct {
	Lat       float64
	Lng       float64
	UpdatedAt time.Time
}

type locationEntry struct {
	LocationEntry
	dirty bool
	gen   uint64 // bumped on every update; guards against clearing a re-dirtied entry
}

// LocationTracker holds last-known coordinates for connected users.
// Every update refreshes the in-memory entry and marks it dirty for the
// next persistence flush; only movement beyond the epsilon is
// broadcast. Storage freshness is deliberately decoupled from
// broadcast chattiness.
type LocationTracker struct {
	mu      sync.Mutex
	entries map[string]*locationEntry
	epsilon float64
	store   LocationStore
	log     *zap.Logger
}

// NewLocationTracker creates a tracker that persists through store and
// suppresses broadcasts for movements smaller than epsilon degrees.
func NewLocationTracker(store LocationStore, epsilon float64, logger *zap.Logger) *LocationTracker {
	if epsilon <= 0 {
		epsilon = DefaultEpsilon
	}
	return &LocationTracker{
		entries: make(map[string]*locationEntry),
		epsilon: epsilon,
		store:   store,
		log:     logger,
	}
}

// Update records the user's position. The entry is always updated and
// marked dirty; moved is true when there was no prior entry or the
// displacement exceeds the epsilon on either axis, meaning the change
// is worth broadcasting.
func (l *LocationTracker) Update(userID string, lat, lng float64) (LocationEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now().UTC()
	e, ok := l.entries[userID]
	moved := !ok ||
		math.Abs(lat-e.Lat) > l.epsilon ||
		math.Abs(lng-e.Lng) > l.epsilon
	if !ok {
		e = &locationEntry{}
		l.entries[userID] = e
	}
	e.Lat, e.Lng, e.UpdatedAt = lat, lng, now
	e.dirty = true
	e.gen++
	return e.LocationEntry, moved
}

// Snapshot returns a read-only copy of every connected user's entry.
func (l *LocationTracker) Snapshot() map[string]LocationEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]LocationEntry, len(l.entries))
	for userID, e := range l.entries {
		out[userID] = e.LocationEntry
	}
	return out
}

// Flush upserts every dirty entry into durable storage. A failed upsert
// is logged and the entry stays dirty for the next cycle (at-least-once
// persistence); one user's failure never affects another's. The dirty
// flag is cleared only if the entry was not updated again mid-flush.
func (l *LocationTracker) Flush(ctx context.Context) {
	type item struct {
		userID   string
		lat, lng float64
		gen      uint64
	}

	l.mu.Lock()
	var work []item
	for userID, e := range l.entries {
		if e.dirty {
			work = append(work, item{userID, e.Lat, e.Lng, e.gen})
		}
	}
	l.mu.Unlock()

	for _, it := range work {
		if err := l.store.UpsertLocation(ctx, it.userID, it.lat, it.lng); err != nil {
			l.log.Warn("location persist failed, will retry next flush",
				zap.String("user_id", it.userID),
				zap.Error(err))
			continue
		}
		l.mu.Lock()
		if e, ok := l.entries[it.userID]; ok && e.gen == it.gen {
			e.dirty = false
		}
		l.mu.Unlock()
	}
}

// Evict drops the user's in-memory entry after a final best-effort
// persist, so the last known position survives the disconnect in
// durable storage.
func (l *LocationTracker) Evict(ctx context.Context, userID string) {
	l.mu.Lock()
	e, ok := l.entries[userID]
	if !ok {
		l.mu.Unlock()
		return
	}
	lat, lng, dirty := e.Lat, e.Lng, e.dirty
	delete(l.entries, userID)
	l.mu.Unlock()

	if !dirty {
		return
	}
	if err := l.store.UpsertLocation(ctx, userID, lat, lng); err != nil {
		l.log.Warn("final location persist on disconnect failed",
			zap.String("user_id", userID),
			zap.Error(err))
	}
}
