package engine

import (
	"sync/atomic"

	"github.com/roach88/tripwire/internal/bus"
	"github.com/roach88/tripwire/internal/event"
)

// StreamConfig declares a stream node.
type StreamConfig struct {
	// Name identifies the stream. Normalised with event.NormalizeName;
	// required, and unique after normalisation: "sensor_1" and "Sensor-1"
	// name the same stream.
	Name string

	// Memory replays the most recent event to subscribers that attach
	// after it was emitted.
	Memory bool

	// EventTypes lists the event types the stream emits. Required.
	// Triggers use it to find the upstream for their event type.
	EventTypes []event.Type

	// Setup starts the stream. Required.
	Setup StreamSetup
}

// StreamSetup starts producing events and returns an optional teardown.
// It runs when the first subscriber attaches, and again on a later
// re-activation.
type StreamSetup func(p StreamParams) Teardown

// Teardown stops a running stream. It runs when the last subscriber
// detaches or the stream completes.
type Teardown func()

// StreamParams are the capabilities handed to a StreamSetup.
type StreamParams struct {
	// Emit publishes an event on the stream, stamped with the stream's
	// name and the next logical seq.
	Emit func(t event.Type, payload any)

	// Error fails the stream: subscribers receive err and the stream
	// stops.
	Error func(err error)

	// Done completes the stream.
	Done func()

	// Post queues a callback on the runtime's event loop. Producers on
	// other goroutines must emit from a posted callback.
	Post func(fn func()) bool
}

// StreamNode is a registered stream.
type StreamNode struct {
	Name   string
	Index  int
	Memory bool

	configName string // Name as declared, before normalisation
	types      []event.Type
	eventTypes event.TypeSet
	source     *bus.Source
	tap        bus.Tap // Guarded by Runtime.mu
	starts     atomic.Int64
}

// EventTypes returns the declared event types in declaration order.
func (n *StreamNode) EventTypes() []event.Type {
	out := make([]event.Type, len(n.types))
	copy(out, n.types)
	return out
}

// Declares reports whether the stream declares event type t.
func (n *StreamNode) Declares(t event.Type) bool {
	return n.eventTypes.Has(t)
}

// Stream returns the node's source for subscription.
func (n *StreamNode) Stream() *bus.Source {
	return n.source
}

// Starts returns how many times setup has run.
func (n *StreamNode) Starts() int64 {
	return n.starts.Load()
}

// UseStream registers a stream at the next stream slot and returns the
// node occupying it.
//
// The first pass to reach a slot validates config, builds the node and
// merges it into the App Stream. Later passes return the stored node and
// ignore config. If the name is already taken by a node at an earlier slot,
// the new node is discarded and the earlier one is returned (a warning is
// logged).
func (p *Pass) UseStream(config StreamConfig) (*StreamNode, error) {
	if err := p.active("UseStream"); err != nil {
		return nil, err
	}

	r := p.rt
	node, index, created, duplicate, err := r.streams.NextUnique(
		func(index int) (*StreamNode, error) {
			return r.newStreamNode(index, config)
		},
		func(existing, fresh *StreamNode) bool {
			return existing.Name == fresh.Name
		},
	)
	if err != nil {
		return nil, err
	}

	switch {
	case duplicate:
		r.logger.Warn("duplicate stream name, keeping earlier registration",
			"stream", node.Name,
			"declared", config.Name,
			"first_declared", node.configName,
			"slot", index,
			"first_slot", node.Index,
		)
	case created:
		r.appStream.Add(node.source)
		r.logger.Debug("stream registered",
			"stream", node.Name,
			"slot", index,
			"memory", node.Memory,
			"event_types", node.types,
		)
	}

	return node, nil
}

func (r *Runtime) newStreamNode(index int, config StreamConfig) (*StreamNode, error) {
	if config.Setup == nil {
		return nil, NewConfigError("UseStream", index, config.Name, "stream has no setup")
	}

	name := event.NormalizeName(config.Name)
	switch name {
	case "":
		return nil, NewConfigError("UseStream", index, config.Name, "stream name is required")
	case AppTarget:
		return nil, NewConfigError("UseStream", index, name, "stream name is reserved for the app stream")
	}

	if len(config.EventTypes) == 0 {
		return nil, NewConfigError("UseStream", index, name, "stream must declare at least one event type")
	}
	types := make([]event.Type, 0, len(config.EventTypes))
	seen := make(map[event.Type]bool, len(config.EventTypes))
	for _, t := range config.EventTypes {
		if t == "" {
			return nil, NewConfigError("UseStream", index, name, "event type must not be empty")
		}
		if !seen[t] {
			seen[t] = true
			types = append(types, t)
		}
	}

	node := &StreamNode{
		Name:       name,
		Index:      index,
		Memory:     config.Memory,
		configName: config.Name,
		types:      types,
		eventTypes: event.NewTypeSet(types...),
	}

	setup := config.Setup
	node.source = bus.NewSource(func(sink bus.Sink) func() {
		node.starts.Add(1)
		r.logger.Debug("stream starting", "stream", name)

		teardown := setup(StreamParams{
			Emit: func(t event.Type, payload any) {
				sink.Next(event.Event{
					Type:    t,
					Payload: payload,
					Stream:  name,
					Seq:     r.clock.Next(),
				})
			},
			Error: func(err error) {
				r.logger.Warn("stream failed", "stream", name, "error", err)
				r.observer.OnStreamError(name, err)
				sink.Error(err)
			},
			Done: sink.Done,
			Post: r.Post,
		})

		return func() {
			r.logger.Debug("stream stopping", "stream", name)
			if teardown != nil {
				teardown()
			}
		}
	}, bus.WithMemory(config.Memory))
	node.source.SetTap(func(ev event.Event) { r.observe(node, ev) })

	return node, nil
}

// EmitStreamBridge returns a stream config re-publishing Emit Stream events
// of the given types on a named stream, which puts emitter output on the
// App Stream where triggers can see it.
func (r *Runtime) EmitStreamBridge(name string, memory bool, types ...event.Type) StreamConfig {
	accept := event.NewTypeSet(types...)
	return StreamConfig{
		Name:       name,
		Memory:     memory,
		EventTypes: types,
		Setup: func(p StreamParams) Teardown {
			sub := bus.Filter(r.emitStream, func(ev event.Event) bool {
				return accept.Has(ev.Type)
			}).Subscribe(bus.OnNext(func(ev event.Event) {
				p.Emit(ev.Type, ev.Payload)
			}))
			return sub.Unsubscribe
		},
	}
}
