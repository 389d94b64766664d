package plugin

import "golang.org/x/exp/slices"

// Plugin is the view of a running instance handed to plugin callbacks.
type Plugin interface {
	Caps() *Caps
	SampleRate() float64
	// UserData returns the value produced by the Instantiate callback.
	UserData() any
	// AudioBuffer returns the buffer connected to a channel, nil if unconnected.
	AudioBuffer(port, channel int) []float32
	// EventQueue returns the queue connected to an event port, nil if unconnected.
	EventQueue(port int) *EventQueue
	// NotifyUIChanged forwards to the UI-changed callback the host registered
	// for a control port, if any.
	NotifyUIChanged(port int)
}

// Callbacks is the table of entry points of a plugin. Instantiate, Destroy and
// Process are mandatory.
type Callbacks struct {
	// Instantiate creates per-instance state. Returning nil signals failure.
	Instantiate func(caps *Caps, sampleRate float64, ui bool) any
	Destroy     func(p Plugin)
	Process     func(p Plugin, frames int)

	Reset                func(p Plugin)
	OutputDelay          func(p Plugin) int
	SkippedInitialFrames func(p Plugin) int
}

func (cb Callbacks) missing() []string {
	var names []string
	if cb.Instantiate == nil {
		names = append(names, "instantiate")
	}
	if cb.Destroy == nil {
		names = append(names, "destroy")
	}
	if cb.Process == nil {
		names = append(names, "process")
	}
	return names
}

// Event is a timestamped message on an event port.
type Event struct {
	Kind   EventKind
	Offset int
	Data   []byte
}

// EventQueue holds the events of one processing block. It is not safe for
// concurrent use; the host fills input queues before Process and drains
// output queues after it.
type EventQueue struct {
	events []Event
}

func NewEventQueue() *EventQueue {
	return &EventQueue{events: make([]Event, 0, 128)}
}

func (q *EventQueue) Push(e Event) {
	q.events = append(q.events, e)
}

// Events returns the queued events ordered by frame offset.
func (q *EventQueue) Events() []Event {
	slices.SortStableFunc(q.events, func(a, b Event) int {
		return a.Offset - b.Offset
	})
	return q.events
}

func (q *EventQueue) Len() int {
	return len(q.events)
}

func (q *EventQueue) Clear() {
	q.events = q.events[:0]
}
