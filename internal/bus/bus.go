package bus

import (
	"sync"

	"github.com/roach88/tripwire/internal/event"
)

// Listener receives events from a Stream. Nil callbacks are skipped.
type Listener struct {
	Next  func(event.Event)
	Error func(error)
	Done  func()
}

// OnNext returns a Listener that only handles events.
func OnNext(fn func(event.Event)) Listener {
	return Listener{Next: fn}
}

// Stream is anything that can be subscribed to.
type Stream interface {
	Subscribe(l Listener) *Subscription
}

// Tap observes events without subscribing.
type Tap func(event.Event)

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	once   sync.Once
	cancel func()
}

func newSubscription(cancel func()) *Subscription {
	return &Subscription{cancel: cancel}
}

// Unsubscribe detaches the listener. Safe to call more than once and on nil.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.cancel == nil {
		return
	}
	s.once.Do(s.cancel)
}

type entry struct {
	id uint64
	l  Listener
}

// hub is the subscriber list shared by Source and Merge.
// Callers hold mu around every hub method.
type hub struct {
	mu     sync.Mutex
	subs   []entry
	nextID uint64
	tap    Tap
}

// add registers l and reports whether it is the first subscriber.
func (h *hub) add(l Listener) (id uint64, first bool) {
	h.nextID++
	h.subs = append(h.subs, entry{id: h.nextID, l: l})
	return h.nextID, len(h.subs) == 1
}

// remove drops the subscriber and reports whether it was the last one.
// Returns removed=false if id was not subscribed.
func (h *hub) remove(id uint64) (removed, last bool) {
	for i, e := range h.subs {
		if e.id == id {
			h.subs = append(h.subs[:i], h.subs[i+1:]...)
			return true, len(h.subs) == 0
		}
	}
	return false, false
}

func (h *hub) snapshot() []Listener {
	out := make([]Listener, len(h.subs))
	for i, e := range h.subs {
		out[i] = e.l
	}
	return out
}

func (h *hub) count() int {
	return len(h.subs)
}

func deliverNext(tap Tap, listeners []Listener, ev event.Event) {
	if tap != nil {
		tap(ev)
	}
	for _, l := range listeners {
		if l.Next != nil {
			l.Next(ev)
		}
	}
}

func deliverError(listeners []Listener, err error) {
	for _, l := range listeners {
		if l.Error != nil {
			l.Error(err)
		}
	}
}

func deliverDone(listeners []Listener) {
	for _, l := range listeners {
		if l.Done != nil {
			l.Done()
		}
	}
}
