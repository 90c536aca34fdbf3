package testutil

import (
	"sync"

	"github.com/roach88/tripwire/internal/event"
)

// EntryKind classifies a recorded timeline entry.
type EntryKind string

const (
	EntryEvent EntryKind = "event"
	EntryFired EntryKind = "fired"
	EntryError EntryKind = "error"
)

// Entry is one line of a recorded timeline.
type Entry struct {
	Kind    EntryKind
	Event   event.Event // Set for EntryEvent and EntryFired
	Trigger string      // Set for EntryFired
	Stream  string      // Set for EntryError
	Err     error       // Set for EntryError
}

// Recorder captures a runtime's activity in order. Attach Listen as the
// app debug listener and pass the Recorder as the engine Observer.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Listen records an emitted event. Use as a debug listener.
func (r *Recorder) Listen(ev event.Event) {
	r.append(Entry{Kind: EntryEvent, Event: ev})
}

// OnTriggerFired implements engine.Observer.
func (r *Recorder) OnTriggerFired(trigger string, ev event.Event) {
	r.append(Entry{Kind: EntryFired, Trigger: trigger, Event: ev})
}

// OnStreamError implements engine.Observer.
func (r *Recorder) OnStreamError(stream string, err error) {
	r.append(Entry{Kind: EntryError, Stream: stream, Err: err})
}

// Entries returns a copy of the timeline.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Events returns the recorded events in emission order.
func (r *Recorder) Events() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []event.Event
	for _, e := range r.entries {
		if e.Kind == EntryEvent {
			out = append(out, e.Event)
		}
	}
	return out
}

// Fired returns the names of fired triggers in firing order.
func (r *Recorder) Fired() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.entries {
		if e.Kind == EntryFired {
			out = append(out, e.Trigger)
		}
	}
	return out
}

// FiredCount returns how many times trigger fired.
func (r *Recorder) FiredCount(trigger string) int {
	n := 0
	for _, name := range r.Fired() {
		if name == trigger {
			n++
		}
	}
	return n
}

// Reset clears the timeline.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}

func (r *Recorder) append(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}
