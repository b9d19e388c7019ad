package application

import "time"

// EventKind names a reservation lifecycle event.
type EventKind string

const (
	EventSubmitted       EventKind = "submitted"
	EventConflictWarning EventKind = "conflict_warning"
	EventApproved        EventKind = "approved"
	EventRejected        EventKind = "rejected"
	EventCancelled       EventKind = "cancelled"
)

// EventKinds lists every kind in lifecycle order.
var EventKinds = []EventKind{EventSubmitted, EventConflictWarning, EventApproved, EventRejected, EventCancelled}

// Event is emitted after a transition commits. User is the reservation owner;
// Actor is the principal that caused the transition.
type Event struct {
	Kind        EventKind
	User        User
	Reservation Reservation
	Actor       Principal
	At          time.Time
}

// Notifier receives lifecycle events. Implementations must not block the
// caller; delivery failures are the notifier's concern.
type Notifier interface {
	Notify(event Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(event Event)

// Notify calls f(event).
func (f NotifierFunc) Notify(event Event) { f(event) }

// NopNotifier discards events.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(Event) {}

// Recorder receives operational counters.
type Recorder interface {
	RecordTransition(kind EventKind)
	RecordFailure(operation, kind string)
}
