package app

import (
	"time"

	"github.com/roach88/tripwire/internal/event"
)

// Stream kinds.
const (
	KindScript     = "script"
	KindInterval   = "interval"
	KindEmitBridge = "emit_bridge"
)

// Definition is a parsed app file.
type Definition struct {
	// Name identifies the app in traces.
	Name string `yaml:"name"`

	// Description is free text.
	Description string `yaml:"description,omitempty"`

	Streams  []StreamDef  `yaml:"streams"`
	Triggers []TriggerDef `yaml:"triggers"`
	Emitters []EmitterDef `yaml:"emitters,omitempty"`
}

// StreamDef declares a stream.
type StreamDef struct {
	Name       string   `yaml:"name"`
	Kind       string   `yaml:"kind"`
	Memory     bool     `yaml:"memory,omitempty"`
	EventTypes []string `yaml:"event_types"`

	// Emit lists the steps of a script stream.
	Emit []ScriptStep `yaml:"emit,omitempty"`

	// Every is the tick period of an interval stream.
	Every time.Duration `yaml:"every,omitempty"`

	// Count stops an interval stream after this many ticks; 0 never stops.
	Count int `yaml:"count,omitempty"`
}

// Types returns the declared event types.
func (s StreamDef) Types() []event.Type {
	return event.Types(s.EventTypes...)
}

// ScriptStep is one emission of a script stream.
type ScriptStep struct {
	Type    string `yaml:"type"`
	Payload any    `yaml:"payload,omitempty"`

	// After delays this step relative to the previous one.
	After time.Duration `yaml:"after,omitempty"`
}

// TriggerDef declares a trigger.
type TriggerDef struct {
	// Name is optional; unnamed triggers are named after their slot.
	Name string `yaml:"name,omitempty"`

	// Event is the event type to select.
	Event string `yaml:"event"`

	// Filter is a CUE expression narrowing the selected events.
	Filter string `yaml:"filter,omitempty"`

	// Condition is a CUE expression gating the action.
	Condition string `yaml:"condition,omitempty"`

	Action ActionDef `yaml:"action"`
}

// ActionDef is what a trigger does when it fires. Both parts may be set.
type ActionDef struct {
	// Log writes the message at info level with the event attached.
	Log string `yaml:"log,omitempty"`

	// Emit calls the emitter registered for this event type.
	Emit string `yaml:"emit,omitempty"`

	// Payload is passed to the emitter. Defaults to the triggering
	// event's payload.
	Payload any `yaml:"payload,omitempty"`
}

// EmitterDef declares an emitter publishing the listed event types on the
// Emit Stream.
type EmitterDef struct {
	Types []string `yaml:"types"`
}
