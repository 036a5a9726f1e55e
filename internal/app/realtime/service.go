// internal/app/realtime/service.go
//
// Package realtime implements the live event and presence core: it
// tracks which users are connected, derives presence, throttles and
// persists shared locations, and coalesces change notifications before
// fanning them out to WebSocket subscribers. All live state lives in
// memory and is owned by a single long-lived Service; durable storage
// only receives the periodic location flush.
package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/crewhub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Defaults for the service's tuning knobs. Each can be overridden via
// Options (wired from app config in bootstrap).
const (
	DefaultAwayThreshold = 5 * time.Minute
	DefaultSweepInterval = 1 * time.Minute
	DefaultFlushInterval = 30 * time.Second
)

// Options tunes the service's timing behavior. Zero fields fall back
// to the defaults above.
type Options struct {
	AwayThreshold  time.Duration // inactivity before online flips to away
	SweepInterval  time.Duration // how often the away sweep runs
	FlushInterval  time.Duration // how often dirty locations are persisted
	DebounceWindow time.Duration // quiet period before a batch flushes
	Epsilon        float64       // minimum broadcast-worthy movement, in degrees
}

func (o Options) withDefaults() Options {
	if o.AwayThreshold <= 0 {
		o.AwayThreshold = DefaultAwayThreshold
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = DefaultSweepInterval
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = DefaultFlushInterval
	}
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = DefaultDebounceWindow
	}
	if o.Epsilon <= 0 {
		o.Epsilon = DefaultEpsilon
	}
	return o
}

// Service owns the connection registry, presence and location trackers,
// and the outbound debouncer, and runs the two background ticks (away
// sweep, location flush). Construct one at process start and share the
// handle; every method is safe for concurrent use.
type Service struct {
	hub        *Hub
	presence   *PresenceTracker
	location   *LocationTracker
	debouncer  *Debouncer
	dispatcher *Dispatcher
	log        *zap.Logger

	sweepInterval time.Duration
	flushInterval time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewService wires the realtime core together. store receives the
// periodic location flush; pass the mongo-backed locations store in
// production and a fake in tests.
func NewService(store LocationStore, logger *zap.Logger, opts Options) *Service {
	opts = opts.withDefaults()

	s := &Service{
		hub:           NewHub(logger),
		presence:      NewPresenceTracker(opts.AwayThreshold),
		location:      NewLocationTracker(store, opts.Epsilon, logger),
		log:           logger,
		sweepInterval: opts.SweepInterval,
		flushInterval: opts.FlushInterval,
		stopCh:        make(chan struct{}),
	}
	s.debouncer = NewDebouncer(opts.DebounceWindow, s.deliver)
	s.dispatcher = NewDispatcher(s.debouncer)
	return s
}

// Start launches the away-sweep and location-flush workers.
func (s *Service) Start() {
	s.wg.Add(2)
	go s.sweepLoop()
	go s.flushLoop()
	s.log.Info("realtime service started",
		zap.Duration("sweep_interval", s.sweepInterval),
		zap.Duration("flush_interval", s.flushInterval))
}

// Stop halts the workers, flushes pending event batches, and persists
// any dirty locations one last time.
func (s *Service) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	s.debouncer.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), timeouts.Long())
	defer cancel()
	s.location.Flush(ctx)

	s.log.Info("realtime service stopped")
}

func (s *Service) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *Service) flushLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), timeouts.Long())
			s.location.Flush(ctx)
			cancel()
		}
	}
}

// Register records a freshly opened transport connection, not yet
// owned by any user.
func (s *Service) Register(connID string, sender Sender) {
	s.hub.Register(connID, sender)
}

// Join binds a connection to the authenticated user supplied by the
// session layer (trusted here, never re-validated) and broadcasts a
// presence change if the user just came online. A connection re-joining
// under a different user first gets the previous user's cleanup, as if
// the connection had closed.
func (s *Service) Join(connID, userID string) {
	prev, joined := s.hub.Join(connID, userID)
	if !joined {
		return
	}
	if prev != "" {
		s.connClosed(prev, connID)
	}
	if s.presence.Join(userID, connID) {
		s.broadcastPresence(userID, StatusOnline)
	}
}

// Leave detaches a connection from the user's rooms without closing
// the transport. The presence and location cascade matches a
// disconnect when this was the user's last connection.
func (s *Service) Leave(connID, userID string) {
	s.hub.Leave(connID, userID)
	s.connClosed(userID, connID)
}

// Disconnect must be called by the transport layer for every closed
// connection. Unowned connections are dropped silently; for a user's
// last connection the presence entry is removed, offline is broadcast
// once, and the in-memory location entry is evicted.
func (s *Service) Disconnect(connID string) {
	userID, _ := s.hub.Disconnect(connID)
	if userID == "" {
		return
	}
	s.connClosed(userID, connID)
}

func (s *Service) connClosed(userID, connID string) {
	if !s.presence.ConnClosed(userID, connID) {
		return
	}
	s.broadcastPresence(userID, StatusOffline)

	ctx, cancel := context.WithTimeout(context.Background(), timeouts.Short())
	defer cancel()
	s.location.Evict(ctx, userID)
}

// Heartbeat processes a client liveness signal, optionally carrying
// coordinates. A malformed or absent coordinate payload still counts
// as presence activity. Heartbeats for users with no joined connection
// are ignored.
func (s *Service) Heartbeat(userID string, coords *Coordinates) {
	if !s.hub.Connected(userID) {
		return
	}
	if s.presence.Heartbeat(userID) {
		s.broadcastPresence(userID, StatusOnline)
	}
	if coords == nil {
		return
	}
	entry, moved := s.location.Update(userID, coords.Lat, coords.Lng)
	if moved {
		s.debouncer.Enqueue(TargetAll, locationEvent{
			UserID:    userID,
			Lat:       entry.Lat,
			Lng:       entry.Lng,
			UpdatedAt: entry.UpdatedAt,
		})
	}
}

// Sweep runs one away-sweep pass immediately. The background worker
// calls this on its interval; tests call it directly.
func (s *Service) Sweep() {
	for _, userID := range s.presence.Sweep() {
		s.broadcastPresence(userID, StatusAway)
	}
}

// FlushLocations persists dirty location entries immediately. The
// background worker calls this on its interval; tests call it directly.
func (s *Service) FlushLocations(ctx context.Context) {
	s.location.Flush(ctx)
}

// NotifyUser requests best-effort delivery of a data-change event to
// one user. Fire-and-forget: no error ever reaches the caller.
func (s *Service) NotifyUser(userID string, ev Event) {
	s.dispatcher.NotifyUser(userID, ev)
}

// NotifyAll requests best-effort delivery of a data-change event to
// every connected user.
func (s *Service) NotifyAll(ev Event) {
	s.dispatcher.NotifyAll(ev)
}

// PresenceSnapshot returns the current status of every tracked user.
func (s *Service) PresenceSnapshot() map[string]Status {
	return s.presence.Snapshot()
}

// LocationSnapshot returns the last-known position of every connected
// user. Query-side consumers merge this with durable storage for users
// who are offline.
func (s *Service) LocationSnapshot() map[string]LocationEntry {
	return s.location.Snapshot()
}

func (s *Service) broadcastPresence(userID string, status Status) {
	s.debouncer.Enqueue(TargetAll, presenceEvent{UserID: userID, Status: status})
}

// deliver is the debouncer's flush sink. It resolves the target to
// live connections and writes the coalesced batch; a target with no
// connections drops the batch (no store-and-forward).
func (s *Service) deliver(target string, events []Payload) {
	senders := s.hub.Resolve(target)
	if len(senders) == 0 {
		return
	}

	var batch []Event
	for _, ev := range events {
		switch e := ev.(type) {
		case presenceEvent:
			send(senders, PresenceUpdate{Type: msgPresenceUpdate, UserID: e.UserID, Status: e.Status})
		case locationEvent:
			send(senders, LocationUpdate{Type: msgLocationUpdate, UserID: e.UserID, Lat: e.Lat, Lng: e.Lng, UpdatedAt: e.UpdatedAt})
		case Event:
			batch = append(batch, e)
		}
	}
	if len(batch) > 0 {
		send(senders, BatchUpdate{Type: msgBatchUpdate, Events: batch})
	}
}

func send(senders []Sender, msg any) {
	for _, s := range senders {
		s.Send(msg)
	}
}
