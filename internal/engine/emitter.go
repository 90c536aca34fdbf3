package engine

import (
	"sync"

	"github.com/roach88/tripwire/internal/bus"
	"github.com/roach88/tripwire/internal/event"
)

// EmitFunc publishes a payload under the event type it was registered for.
type EmitFunc func(payload any)

// EmitterEntry binds an event type to an emit function.
type EmitterEntry struct {
	Type event.Type
	Fn   EmitFunc
}

// EmitterSetup builds an emitter's entries. emit publishes an event on the
// emitter's output, which feeds the Emit Stream.
type EmitterSetup func(emit func(t event.Type, payload any)) []EmitterEntry

// EmitterNode is a registered emitter.
type EmitterNode struct {
	Index int

	entries []EmitterEntry
	source  *bus.Source

	mu   sync.Mutex
	sink bus.Sink // Non-nil while the Emit Stream is subscribed
}

// Entries returns the emitter's entries in registration order.
func (n *EmitterNode) Entries() []EmitterEntry {
	out := make([]EmitterEntry, len(n.entries))
	copy(out, n.entries)
	return out
}

// Types returns the event types the emitter registered.
func (n *EmitterNode) Types() []event.Type {
	out := make([]event.Type, len(n.entries))
	for i, e := range n.entries {
		out[i] = e.Type
	}
	return out
}

// CreateEmitter registers an emitter at the next emitter slot.
//
// setup runs once, when the slot is first populated, and the node's output
// joins the Emit Stream. On every pass the node's entries are copied into
// the Emitter Map; an entry for a type that already has a function
// replaces it.
func (p *Pass) CreateEmitter(setup EmitterSetup) (*EmitterNode, error) {
	if err := p.active("CreateEmitter"); err != nil {
		return nil, err
	}
	if setup == nil {
		return nil, NewConfigError("CreateEmitter", p.rt.emitters.Cursor(), "", "emitter has no setup")
	}

	r := p.rt
	node, index, created, err := r.emitters.Next(func(index int) (*EmitterNode, error) {
		return r.newEmitterNode(index, setup)
	})
	if err != nil {
		return nil, err
	}

	if created {
		r.emitStream.Add(node.source)
		r.logger.Debug("emitter registered", "slot", index, "event_types", node.Types())
	}

	r.mu.Lock()
	for _, e := range node.entries {
		r.emitterMap[e.Type] = e.Fn
	}
	r.mu.Unlock()

	return node, nil
}

func (r *Runtime) newEmitterNode(index int, setup EmitterSetup) (*EmitterNode, error) {
	node := &EmitterNode{Index: index}
	node.source = bus.NewSource(func(sink bus.Sink) func() {
		node.mu.Lock()
		node.sink = sink
		node.mu.Unlock()
		return func() {
			node.mu.Lock()
			node.sink = nil
			node.mu.Unlock()
		}
	})

	entries := setup(func(t event.Type, payload any) {
		node.mu.Lock()
		sink := node.sink
		node.mu.Unlock()

		if sink == nil {
			r.logger.Debug("emit stream has no subscribers, dropping event", "event_type", t, "emitter", index)
			return
		}
		sink.Next(event.Event{Type: t, Payload: payload, Seq: r.clock.Next()})
	})

	for _, e := range entries {
		if e.Type == "" {
			return nil, NewConfigError("CreateEmitter", index, "", "emitter entry has no event type")
		}
		if e.Fn == nil {
			return nil, NewConfigError("CreateEmitter", index, string(e.Type), "emitter entry has no function")
		}
	}
	node.entries = entries

	return node, nil
}

// UseEmitter returns the emit function registered for t, or nil. It has
// no error to report, so on a finished pass it returns nil like any other
// unknown type; code running after Register (actions, timers, hosts) uses
// Runtime.UseEmitter.
func (p *Pass) UseEmitter(t event.Type) EmitFunc {
	if p.active("UseEmitter") != nil {
		return nil
	}
	return p.rt.UseEmitter(t)
}

// UseEmitter returns the emit function registered for t, or nil.
// Callers must check for nil.
func (r *Runtime) UseEmitter(t event.Type) EmitFunc {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.emitterMap[t]
}
