package realtime_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/crewhub/internal/app/realtime"
)

// flushRecorder captures debouncer flushes per target.
type flushRecorder struct {
	mu      sync.Mutex
	flushes map[string][][]realtime.Payload
}

func newFlushRecorder() *flushRecorder {
	return &flushRecorder{flushes: make(map[string][][]realtime.Payload)}
}

func (r *flushRecorder) flush(target string, events []realtime.Payload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes[target] = append(r.flushes[target], events)
}

func (r *flushRecorder) batches(target string) [][]realtime.Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushes[target]
}

func (r *flushRecorder) waitForFlush(t *testing.T, target string) []realtime.Payload {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if batches := r.batches(target); len(batches) > 0 {
			return batches[0]
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no flush for target %q", target)
	return nil
}

func dataEvent(typ, entityID string, action realtime.Action) realtime.Event {
	return realtime.Event{Type: typ, EntityID: entityID, Action: action, Timestamp: time.Now().UTC()}
}

func TestDebouncer_CoalescesBurstIntoOneFlush(t *testing.T) {
	rec := newFlushRecorder()
	d := realtime.NewDebouncer(20*time.Millisecond, rec.flush)

	d.Enqueue("user-a", dataEvent("post", "p1", realtime.ActionCreated))
	d.Enqueue("user-a", dataEvent("comment", "c1", realtime.ActionCreated))
	d.Enqueue("user-a", dataEvent("chat", "m1", realtime.ActionCreated))

	batch := rec.waitForFlush(t, "user-a")
	if len(batch) != 3 {
		t.Fatalf("batch size: got %d, want 3", len(batch))
	}
	time.Sleep(50 * time.Millisecond)
	if got := len(rec.batches("user-a")); got != 1 {
		t.Errorf("flush count: got %d, want 1", got)
	}
}

func TestDebouncer_LastWinsPerEntity(t *testing.T) {
	rec := newFlushRecorder()
	d := realtime.NewDebouncer(20*time.Millisecond, rec.flush)

	d.Enqueue("user-a", dataEvent("post", "p1", realtime.ActionCreated))
	d.Enqueue("user-a", dataEvent("post", "p1", realtime.ActionUpdated))
	d.Enqueue("user-a", dataEvent("post", "p1", realtime.ActionArchived))

	batch := rec.waitForFlush(t, "user-a")
	if len(batch) != 1 {
		t.Fatalf("batch size: got %d, want 1", len(batch))
	}
	ev, ok := batch[0].(realtime.Event)
	if !ok {
		t.Fatalf("payload type: got %T, want realtime.Event", batch[0])
	}
	if ev.Action != realtime.ActionArchived {
		t.Errorf("surviving action: got %q, want %q", ev.Action, realtime.ActionArchived)
	}
}

func TestDebouncer_DistinctEntitiesSurvive(t *testing.T) {
	rec := newFlushRecorder()
	d := realtime.NewDebouncer(20*time.Millisecond, rec.flush)

	d.Enqueue("user-a", dataEvent("post", "p1", realtime.ActionUpdated))
	d.Enqueue("user-a", dataEvent("post", "p2", realtime.ActionUpdated))

	batch := rec.waitForFlush(t, "user-a")
	if len(batch) != 2 {
		t.Fatalf("batch size: got %d, want 2", len(batch))
	}
	// Enqueue order is preserved for surviving events.
	if batch[0].(realtime.Event).EntityID != "p1" || batch[1].(realtime.Event).EntityID != "p2" {
		t.Errorf("order not preserved: %v then %v",
			batch[0].(realtime.Event).EntityID, batch[1].(realtime.Event).EntityID)
	}
}

func TestDebouncer_TypeOnlyEventsCollapse(t *testing.T) {
	rec := newFlushRecorder()
	d := realtime.NewDebouncer(20*time.Millisecond, rec.flush)

	d.Enqueue("user-a", dataEvent("team-roster", "", realtime.ActionUpdated))
	d.Enqueue("user-a", dataEvent("team-roster", "", realtime.ActionUpdated))

	batch := rec.waitForFlush(t, "user-a")
	if len(batch) != 1 {
		t.Errorf("batch size: got %d, want 1", len(batch))
	}
}

func TestDebouncer_TargetsAreIndependent(t *testing.T) {
	rec := newFlushRecorder()
	d := realtime.NewDebouncer(20*time.Millisecond, rec.flush)

	d.Enqueue("user-a", dataEvent("post", "p1", realtime.ActionCreated))
	d.Enqueue("user-b", dataEvent("post", "p1", realtime.ActionCreated))

	a := rec.waitForFlush(t, "user-a")
	b := rec.waitForFlush(t, "user-b")
	if len(a) != 1 || len(b) != 1 {
		t.Errorf("batch sizes: got %d and %d, want 1 and 1", len(a), len(b))
	}
}

func TestDebouncer_WindowRestartsOnEnqueue(t *testing.T) {
	rec := newFlushRecorder()
	d := realtime.NewDebouncer(60*time.Millisecond, rec.flush)

	d.Enqueue("user-a", dataEvent("post", "p1", realtime.ActionCreated))
	time.Sleep(30 * time.Millisecond)
	d.Enqueue("user-a", dataEvent("post", "p2", realtime.ActionCreated))
	time.Sleep(30 * time.Millisecond)

	// 60ms since the first enqueue but only 30ms since the last; the
	// window restarted, so nothing has flushed yet.
	if got := len(rec.batches("user-a")); got != 0 {
		t.Fatalf("premature flush: got %d batches, want 0", got)
	}

	batch := rec.waitForFlush(t, "user-a")
	if len(batch) != 2 {
		t.Errorf("batch size: got %d, want 2", len(batch))
	}
}

func TestDebouncer_ConcurrentEnqueueDeliversEachEventOnce(t *testing.T) {
	rec := newFlushRecorder()
	// A window of the same order as the enqueue pacing makes expired
	// timers race fresh enqueues for the lock, which must never flush
	// an event early into one batch and again into the next.
	d := realtime.NewDebouncer(time.Millisecond, rec.flush)

	const workers, perWorker = 8, 25
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := fmt.Sprintf("e-%d-%d", w, i)
				d.Enqueue("user-a", dataEvent("post", id, realtime.ActionCreated))
				time.Sleep(time.Millisecond / 2)
			}
		}(w)
	}
	wg.Wait()

	deadline := time.Now().Add(2 * time.Second)
	seen := make(map[string]int)
	for time.Now().Before(deadline) {
		seen = make(map[string]int)
		for _, batch := range rec.batches("user-a") {
			for _, ev := range batch {
				seen[ev.(realtime.Event).EntityID]++
			}
		}
		if len(seen) == workers*perWorker {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if len(seen) != workers*perWorker {
		t.Fatalf("delivered %d distinct events, want %d", len(seen), workers*perWorker)
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("event %s delivered %d times, want 1", id, n)
		}
	}
}

func TestDebouncer_StopFlushesPending(t *testing.T) {
	rec := newFlushRecorder()
	d := realtime.NewDebouncer(time.Hour, rec.flush)

	d.Enqueue("user-a", dataEvent("post", "p1", realtime.ActionCreated))
	d.Stop()

	if got := len(rec.batches("user-a")); got != 1 {
		t.Fatalf("pending batch not flushed on stop: got %d, want 1", got)
	}

	// Enqueues after stop are dropped.
	d.Enqueue("user-a", dataEvent("post", "p2", realtime.ActionCreated))
	time.Sleep(20 * time.Millisecond)
	if got := len(rec.batches("user-a")); got != 1 {
		t.Errorf("enqueue after stop produced a flush: got %d batches, want 1", got)
	}
}
