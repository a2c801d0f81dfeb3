package schedule

import "time"

// EventType identifies a transition in the relay's schedule.
type EventType string

const (
	EventScheduled  EventType = "SCHEDULED"
	EventSuperseded EventType = "SUPERSEDED"
	EventEnergized  EventType = "ENERGIZED"
	EventAutoOff    EventType = "AUTO_OFF"
	EventStopped    EventType = "STOPPED"
	EventFault      EventType = "FAULT"
)

// Event is emitted for every accepted request and every checkpoint that
// touched the relay.
type Event struct {
	Timestamp    time.Time
	Type         EventType
	Generation   uint64
	EpisodeID    string    // empty for a stop with no live episode
	ScheduledFor time.Time // zero for stops
	Err          string    // set for FAULT and failed STOPPED
}

// Notifier receives schedule events. Notify must not block for long; it is
// called from request handlers and background tasks.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

// Notify calls f(ev).
func (f NotifierFunc) Notify(ev Event) { f(ev) }

// Notifiers fans an event out to several notifiers in order.
type Notifiers []Notifier

// Notify forwards ev to every notifier.
func (ns Notifiers) Notify(ev Event) {
	for _, n := range ns {
		n.Notify(ev)
	}
}
