package engine

import (
	"github.com/roach88/tripwire/internal/event"
)

// AddDebugListener observes a stream without affecting it.
// See Runtime.AddDebugListener.
func (p *Pass) AddDebugListener(target string, fn func(event.Event)) error {
	if err := p.active("AddDebugListener"); err != nil {
		return err
	}
	return p.rt.AddDebugListener(target, fn)
}

// AddDebugListener attaches fn to target: AppTarget observes every stream,
// any other target is the name of a registered stream (LookupError if
// there is none).
//
// A listener never starts a lazy stream and sees each event before the
// stream's subscribers do. Each target holds one listener; attaching again
// replaces it.
func (r *Runtime) AddDebugListener(target string, fn func(event.Event)) error {
	if fn == nil {
		return NewConfigError("AddDebugListener", -1, target, "listener is nil")
	}

	if target == AppTarget {
		r.mu.Lock()
		r.appTap = fn
		r.mu.Unlock()
		r.logger.Debug("debug listener attached", "target", AppTarget)
		return nil
	}

	name := event.NormalizeName(target)
	node, _, ok := r.streams.Find(func(s *StreamNode) bool { return s.Name == name })
	if !ok {
		return NewLookupError(target)
	}

	r.mu.Lock()
	node.tap = fn
	r.mu.Unlock()
	r.logger.Debug("debug listener attached", "target", name)
	return nil
}

// RemoveDebugListener detaches the listener on target, if any.
func (r *Runtime) RemoveDebugListener(target string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if target == AppTarget {
		r.appTap = nil
		return
	}
	name := event.NormalizeName(target)
	if node, _, ok := r.streams.Find(func(s *StreamNode) bool { return s.Name == name }); ok {
		node.tap = nil
	}
}

// observe runs the debug listeners for an event emitted by node.
func (r *Runtime) observe(node *StreamNode, ev event.Event) {
	r.mu.Lock()
	own, app := node.tap, r.appTap
	r.mu.Unlock()

	if own != nil {
		own(ev)
	}
	if app != nil {
		app(ev)
	}
}
