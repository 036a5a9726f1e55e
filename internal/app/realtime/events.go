// internal/app/realtime/events.go
package realtime

import "time"

// Action describes what happened to the entity an event refers to.
type Action string

// Actions carried by data-change events. Consumers treat these as a
// change signal and refetch authoritative state; the action only tells
// them which kind of refetch is worthwhile.
const (
	ActionCreated   Action = "created"
	ActionUpdated   Action = "updated"
	ActionArchived  Action = "archived"
	ActionBound     Action = "bound"
	ActionUnbound   Action = "unbound"
	ActionDeleted   Action = "deleted"
	ActionLinked    Action = "linked"
	ActionCompleted Action = "completed"
)

// Status is a user's presence state. Offline is never stored; it is
// broadcast when a user's last connection goes away.
type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusOffline Status = "offline"
)

// Event is a data-change notification handed to the dispatcher by
// business logic (post, comment, chat, and team mutations).
type Event struct {
	Type      string    `json:"event_type"`
	EntityID  string    `json:"entity_id,omitempty"`
	Action    Action    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message,omitempty"`
	Preview   string    `json:"preview,omitempty"`
}

// key returns the coalescing key for the debounce window. Entity-scoped
// events dedupe per entity; type-only events dedupe on the bare type, so
// two type-only signals of the same kind collapse into one.
func (e Event) key() string {
	if e.EntityID != "" {
		return e.Type + ":" + e.EntityID
	}
	return e.Type
}

// Payload is anything the debouncer can buffer and coalesce. Within
// one debounce window the last payload for a given key wins. The
// unexported key method keeps the set of payload kinds closed to this
// package.
type Payload interface {
	key() string
}

// presenceEvent is an internal presence transition awaiting broadcast.
type presenceEvent struct {
	UserID string
	Status Status
}

func (e presenceEvent) key() string { return "presence:" + e.UserID }

// locationEvent is an internal movement notification awaiting broadcast.
type locationEvent struct {
	UserID    string
	Lat       float64
	Lng       float64
	UpdatedAt time.Time
}

func (e locationEvent) key() string { return "location:" + e.UserID }

// Outbound wire messages. Every server-to-client message carries a
// "type" discriminator so clients can switch on it.
const (
	msgPresenceUpdate = "presence-update"
	msgLocationUpdate = "location-update"
	msgBatchUpdate    = "batch-update"
)

// PresenceUpdate notifies subscribers that a user's status changed.
type PresenceUpdate struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	Status Status `json:"status"`
}

// LocationUpdate notifies subscribers that a user meaningfully moved.
type LocationUpdate struct {
	Type      string    `json:"type"`
	UserID    string    `json:"user_id"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BatchUpdate delivers the coalesced data-change events for one target
// as a single message.
type BatchUpdate struct {
	Type   string  `json:"type"`
	Events []Event `json:"events"`
}
