// internal/app/realtime/debounce.go
package realtime

import (
	"sync"
	"time"
)

// DefaultDebounceWindow is how long after the last enqueue a target's
// batch waits before flushing.
const DefaultDebounceWindow = 100 * time.Millisecond

// Debouncer coalesces bursts of events destined for the same target
// into a single flush. Every enqueue restarts the target's timer, so a
// steady burst is delivered as one batch once the burst quiets down.
type Debouncer struct {
	mu      sync.Mutex
	window  time.Duration
	pending map[string][]Payload
	timers  map[string]*time.Timer
	gens    map[string]uint64 // current generation per target; stale fires bail
	seq     uint64            // monotonic generation source, never reused
	flush   func(target string, events []Payload)
	stopped bool
}

// NewDebouncer creates a debouncer that hands deduplicated batches to
// flush after window of quiet per target. flush runs on a timer
// goroutine and must not block for long.
func NewDebouncer(window time.Duration, flush func(target string, events []Payload)) *Debouncer {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Debouncer{
		window:  window,
		pending: make(map[string][]Payload),
		timers:  make(map[string]*time.Timer),
		gens:    make(map[string]uint64),
		flush:   flush,
	}
}

// Enqueue appends the event to the target's pending batch and restarts
// the target's debounce timer, canceling any timer already pending.
// The generation bump invalidates a timer that has already expired but
// not yet acquired the lock, so the quiet window restarts exactly.
func (d *Debouncer) Enqueue(target string, ev Payload) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.pending[target] = append(d.pending[target], ev)
	if t, ok := d.timers[target]; ok {
		t.Stop()
	}
	d.seq++
	gen := d.seq
	d.gens[target] = gen
	d.timers[target] = time.AfterFunc(d.window, func() { d.fire(target, gen) })
}

// fire flushes the target's batch when its timer expires. A fire whose
// generation is no longer current lost a race with a newer enqueue and
// leaves the batch for that enqueue's timer.
func (d *Debouncer) fire(target string, gen uint64) {
	d.mu.Lock()
	if d.gens[target] != gen {
		d.mu.Unlock()
		return
	}
	batch := d.pending[target]
	delete(d.pending, target)
	delete(d.timers, target)
	delete(d.gens, target)
	d.mu.Unlock()

	if len(batch) > 0 {
		d.flush(target, dedupe(batch))
	}
}

// Stop cancels all timers and flushes whatever is still pending, then
// refuses further enqueues. Used on shutdown.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	for _, t := range d.timers {
		t.Stop()
	}
	d.timers = make(map[string]*time.Timer)
	d.gens = make(map[string]uint64)
	remaining := d.pending
	d.pending = make(map[string][]Payload)
	d.mu.Unlock()

	for target, batch := range remaining {
		if len(batch) > 0 {
			d.flush(target, dedupe(batch))
		}
	}
}

// dedupe collapses a batch by event key, keeping the last occurrence of
// each key. Within the window the newest signal for an entity
// supersedes older ones; surviving events stay in enqueue order.
func dedupe(batch []Payload) []Payload {
	seen := make(map[string]struct{}, len(batch))
	out := make([]Payload, 0, len(batch))
	for i := len(batch) - 1; i >= 0; i-- {
		k := batch[i].key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, batch[i])
	}
	// The reverse scan built the batch back to front; restore order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
