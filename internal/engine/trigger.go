package engine

import (
	"fmt"
	"sync/atomic"

	"github.com/roach88/tripwire/internal/bus"
	"github.com/roach88/tripwire/internal/event"
)

// TriggerSetup declares a trigger's roles by calling UseEvent (or
// UseCustomEvent), optionally UseCondition, and UseAction on the pass.
type TriggerSetup func(p *Pass) error

// Action runs once for every event that passes a trigger's selectors.
type Action func(ev event.Event)

// TriggerState is the binding state of a trigger node.
//
//	INIT -> EVENT_BOUND -> [CONDITION_BOUND] -> ACTION_BOUND -> WIRED
type TriggerState int

const (
	StateInit TriggerState = iota
	StateEventBound
	StateConditionBound
	StateActionBound
	StateWired
)

func (s TriggerState) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateEventBound:
		return "EVENT_BOUND"
	case StateConditionBound:
		return "CONDITION_BOUND"
	case StateActionBound:
		return "ACTION_BOUND"
	case StateWired:
		return "WIRED"
	default:
		return fmt.Sprintf("TriggerState(%d)", int(s))
	}
}

// Role is one of the three parts of a trigger.
type Role string

const (
	RoleEvent     Role = "event"
	RoleCondition Role = "condition"
	RoleAction    Role = "action"
)

// TriggerNode is a registered trigger.
type TriggerNode struct {
	Name  string
	Index int

	state     TriggerState
	eventType event.Type
	upstream  string
	segments  map[Role]bus.Stream
	sub       *bus.Subscription
	fired     atomic.Int64
}

// State returns the binding state.
func (n *TriggerNode) State() TriggerState {
	return n.state
}

// EventType returns the bound event type, empty before binding.
func (n *TriggerNode) EventType() event.Type {
	return n.eventType
}

// Upstream names the stream the event selector filters: a stream name, or
// AppTarget when the trigger fell back to the App Stream.
func (n *TriggerNode) Upstream() string {
	return n.upstream
}

// Fired returns how many times the action has run.
func (n *TriggerNode) Fired() int64 {
	return n.fired.Load()
}

// triggerScope records the roles declared by one run of a trigger setup.
type triggerScope struct {
	node *TriggerNode

	hasEvent  bool
	eventType event.Type
	custom    bus.Predicate

	condition bus.Predicate
	action    Action
}

// UseTrigger registers a trigger named after its slot ("trigger-<slot>").
// See UseNamedTrigger.
func (p *Pass) UseTrigger(setup TriggerSetup) (*TriggerNode, error) {
	return p.useTrigger("UseTrigger", "", setup)
}

// UseNamedTrigger registers a trigger at the next trigger slot.
//
// setup runs on every pass with the trigger context open; the roles it
// declares are attached once and the trigger is wired the first time all
// of them are present. A slot that is already wired is never subscribed
// again. Two slots claiming the same name in one pass is a
// DuplicateTriggerError. Triggers cannot be nested.
func (p *Pass) UseNamedTrigger(name string, setup TriggerSetup) (*TriggerNode, error) {
	return p.useTrigger("UseNamedTrigger", name, setup)
}

func (p *Pass) useTrigger(hook, name string, setup TriggerSetup) (*TriggerNode, error) {
	if err := p.active(hook); err != nil {
		return nil, err
	}
	if p.scope != nil {
		return nil, NewContextError(hook, fmt.Sprintf("triggers cannot be nested (inside %s)", p.scope.node.Name))
	}
	if setup == nil {
		return nil, NewConfigError(hook, p.rt.triggers.Cursor(), name, "trigger has no setup")
	}

	r := p.rt

	// The name is claimed before the slot is filled so a rejected trigger
	// leaves the slot empty for the next pass.
	slot := r.triggers.Cursor()
	claimed := triggerName(name, slot)
	if existing, ok := r.triggers.At(slot); ok {
		claimed = existing.Name
	}
	if first, ok := p.triggerNames[claimed]; ok {
		return nil, NewDuplicateTriggerError(claimed, first, slot)
	}

	node, index, created, err := r.triggers.Next(func(index int) (*TriggerNode, error) {
		return &TriggerNode{
			Name:     triggerName(name, index),
			Index:    index,
			segments: make(map[Role]bus.Stream, 3),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	p.triggerNames[node.Name] = index

	if created {
		r.logger.Debug("trigger registered", "trigger", node.Name, "slot", index)
	}

	scope := &triggerScope{node: node}
	p.scope = scope
	err = setup(p)
	p.scope = nil
	if err != nil {
		return nil, fmt.Errorf("trigger %s: %w", node.Name, err)
	}

	if err := r.bind(scope); err != nil {
		return nil, err
	}
	return node, nil
}

// triggerName is the normalised explicit name, or trigger-<slot>.
func triggerName(name string, slot int) string {
	if n := event.NormalizeName(name); n != "" {
		return n
	}
	return fmt.Sprintf("trigger-%d", slot)
}

// UseEvent selects events of type t. Only valid inside a trigger setup.
func (p *Pass) UseEvent(t event.Type) error {
	return p.useEvent("UseEvent", t, nil)
}

// UseCustomEvent selects events of type t accepted by pred. Only valid
// inside a trigger setup.
func (p *Pass) UseCustomEvent(t event.Type, pred func(event.Event) bool) error {
	return p.useEvent("UseCustomEvent", t, pred)
}

func (p *Pass) useEvent(hook string, t event.Type, pred bus.Predicate) error {
	s, err := p.trigger(hook)
	if err != nil {
		return err
	}
	if t == "" {
		return NewConfigError(hook, s.node.Index, s.node.Name, "event type is required")
	}
	if s.hasEvent {
		return NewConfigError(hook, s.node.Index, s.node.Name, "trigger already has an event")
	}
	s.hasEvent = true
	s.eventType = t
	s.custom = pred
	return nil
}

// UseCondition gates the trigger on pred. At most one per trigger; a
// trigger without a condition fires on every selected event.
func (p *Pass) UseCondition(pred func(event.Event) bool) error {
	s, err := p.trigger("UseCondition")
	if err != nil {
		return err
	}
	if pred == nil {
		return NewConfigError("UseCondition", s.node.Index, s.node.Name, "condition is nil")
	}
	if s.condition != nil {
		return NewConfigError("UseCondition", s.node.Index, s.node.Name, "trigger already has a condition")
	}
	s.condition = pred
	return nil
}

// UseAction sets the callback run for each selected event. Exactly one per
// trigger.
func (p *Pass) UseAction(action Action) error {
	s, err := p.trigger("UseAction")
	if err != nil {
		return err
	}
	if action == nil {
		return NewConfigError("UseAction", s.node.Index, s.node.Name, "action is nil")
	}
	if s.action != nil {
		return NewConfigError("UseAction", s.node.Index, s.node.Name, "trigger already has an action")
	}
	s.action = action
	return nil
}

func (p *Pass) trigger(hook string) (*triggerScope, error) {
	if err := p.active(hook); err != nil {
		return nil, err
	}
	if p.scope == nil {
		return nil, NewContextError(hook, "must be called inside a UseTrigger setup")
	}
	return p.scope, nil
}

// bind attaches the roles recorded by scope and wires the node.
func (r *Runtime) bind(s *triggerScope) error {
	n := s.node
	if !s.hasEvent {
		return NewConfigError("UseTrigger", n.Index, n.Name, "trigger has no event; call UseEvent or UseCustomEvent")
	}
	if s.action == nil {
		return NewConfigError("UseTrigger", n.Index, n.Name, "trigger has no action; call UseAction")
	}
	if n.state == StateWired {
		return nil
	}

	selected := r.attach(n, RoleEvent, func() bus.Stream {
		n.eventType = s.eventType
		return bus.Filter(r.resolveUpstream(n, s.eventType), func(ev event.Event) bool {
			return ev.Type == s.eventType && (s.custom == nil || s.custom(ev))
		})
	})

	gated := selected
	if s.condition != nil {
		gated = r.attach(n, RoleCondition, func() bus.Stream {
			return bus.Filter(selected, s.condition)
		})
	}

	action := s.action
	wired := r.attach(n, RoleAction, func() bus.Stream { return gated })
	n.sub = wired.Subscribe(bus.Listener{
		Next: func(ev event.Event) {
			n.fired.Add(1)
			r.logger.Debug("trigger fired", "trigger", n.Name, "event_type", ev.Type, "seq", ev.Seq)
			r.observer.OnTriggerFired(n.Name, ev)
			action(ev)
		},
		Error: func(err error) {
			r.logger.Debug("trigger upstream failed", "trigger", n.Name, "error", err)
		},
	})
	n.state = StateWired

	r.logger.Debug("trigger wired",
		"trigger", n.Name,
		"event_type", n.eventType,
		"upstream", n.upstream,
		"condition", s.condition != nil,
	)
	return nil
}

// attach binds role on n, building its pipeline segment once. Attaching a
// role that is already bound returns the stored segment.
func (r *Runtime) attach(n *TriggerNode, role Role, build func() bus.Stream) bus.Stream {
	if seg, ok := n.segments[role]; ok {
		return seg
	}
	seg := build()
	n.segments[role] = seg
	switch role {
	case RoleEvent:
		n.state = StateEventBound
	case RoleCondition:
		n.state = StateConditionBound
	case RoleAction:
		n.state = StateActionBound
	}
	return seg
}

// resolveUpstream picks the source a trigger's event selector filters.
//
// Precedence:
//  1. the earliest registered stream node declaring t
//  2. the App Stream, with a warning: nothing registered so far declares t,
//     so the trigger only fires if some stream emits t undeclared or a
//     later stream declares it
func (r *Runtime) resolveUpstream(n *TriggerNode, t event.Type) bus.Stream {
	if stream, _, ok := r.streams.Find(func(s *StreamNode) bool { return s.Declares(t) }); ok {
		n.upstream = stream.Name
		return stream.source
	}

	r.logger.Warn("no registered stream declares event type, filtering app stream",
		"trigger", n.Name,
		"event_type", t,
	)
	n.upstream = AppTarget
	return r.appStream
}
