// internal/app/realtime/notify.go
package realtime

import (
	"time"

	"github.com/microcosm-cc/bluemonday"
)

// Dispatcher is the entry point business logic uses to request
// delivery of a data-change event. Both calls are fire-and-forget:
// delivery is best-effort and no failure ever surfaces to the caller.
type Dispatcher struct {
	debouncer *Debouncer
	policy    *bluemonday.Policy
}

// NewDispatcher wraps the debouncer with the public notification
// contract. Human-readable message and preview text is scrubbed with a
// strict sanitization policy, since callers pass user-authored content
// straight from chat and feed mutations.
func NewDispatcher(debouncer *Debouncer) *Dispatcher {
	return &Dispatcher{
		debouncer: debouncer,
		policy:    bluemonday.StrictPolicy(),
	}
}

// NotifyUser queues an event for delivery to one user's connections.
func (d *Dispatcher) NotifyUser(userID string, ev Event) {
	if userID == "" {
		return
	}
	d.debouncer.Enqueue(userID, d.prepare(ev))
}

// NotifyAll queues an event for delivery to every connected user.
func (d *Dispatcher) NotifyAll(ev Event) {
	d.debouncer.Enqueue(TargetAll, d.prepare(ev))
}

func (d *Dispatcher) prepare(ev Event) Event {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if ev.Message != "" {
		ev.Message = d.policy.Sanitize(ev.Message)
	}
	if ev.Preview != "" {
		ev.Preview = d.policy.Sanitize(ev.Preview)
	}
	return ev
}
