package engine

import (
	"sync"
	"time"
)

// EventType tags what stage of the pipeline produced an event.
type EventType string

const (
	EventResolution EventType = "resolution"
	EventMerge      EventType = "merge"
	EventSynthesis  EventType = "synthesis"
)

// Event is one telemetry record emitted by the engine: a resolution decision,
// a fact merge, or a synthesis pass over an entity.
type Event struct {
	Time     time.Time              `json:"time"`
	Type     EventType              `json:"type"`
	EntityID string                 `json:"entity_id,omitempty"`
	Message  string                 `json:"message"`
	Fields   map[string]interface{} `json:"fields,omitempty"`
}

// EventBuffer is a fixed-size ring of recent engine events with optional
// live listeners. Emission never blocks the pipeline: listeners are invoked
// synchronously and are expected to hand off (the websocket hub does a
// non-blocking channel send).
type EventBuffer struct {
	mu        sync.Mutex
	events    []Event
	next      int
	size      int
	listeners []func(Event)
}

// NewEventBuffer creates a buffer retaining the last capacity events.
func NewEventBuffer(capacity int) *EventBuffer {
	if capacity <= 0 {
		capacity = 256
	}
	return &EventBuffer{events: make([]Event, capacity)}
}

// Subscribe registers a listener called for every subsequent event.
func (b *EventBuffer) Subscribe(fn func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, fn)
}

// Emit records an event and fans it out to listeners.
func (b *EventBuffer) Emit(evt Event) {
	if evt.Time.IsZero() {
		evt.Time = time.Now()
	}

	b.mu.Lock()
	b.events[b.next] = evt
	b.next = (b.next + 1) % len(b.events)
	if b.size < len(b.events) {
		b.size++
	}
	listeners := make([]func(Event), len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(evt)
	}
}

// Recent returns up to n events, oldest first.
func (b *EventBuffer) Recent(n int) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n <= 0 || n > b.size {
		n = b.size
	}
	out := make([]Event, 0, n)
	start := b.next - n
	if start < 0 {
		start += len(b.events)
	}
	for i := 0; i < n; i++ {
		out = append(out, b.events[(start+i)%len(b.events)])
	}
	return out
}
