package bus

import (
	"github.com/roach88/tripwire/internal/event"
)

// Predicate decides whether an event passes a filter.
type Predicate func(event.Event) bool

// Filtered is a view over a Stream that only forwards matching events.
// It holds no state; each Subscribe subscribes upstream directly.
type Filtered struct {
	src  Stream
	pred Predicate
}

// Filter returns a view of src passing only events accepted by pred.
// A nil pred passes everything.
func Filter(src Stream, pred Predicate) *Filtered {
	return &Filtered{src: src, pred: pred}
}

// OfType filters src down to events of the given type.
func OfType(src Stream, t event.Type) *Filtered {
	return Filter(src, func(ev event.Event) bool { return ev.Type == t })
}

// Subscribe attaches l to the upstream behind the predicate.
func (f *Filtered) Subscribe(l Listener) *Subscription {
	next := l.Next
	return f.src.Subscribe(Listener{
		Next: func(ev event.Event) {
			if next == nil {
				return
			}
			if f.pred == nil || f.pred(ev) {
				next(ev)
			}
		},
		Error: l.Error,
		Done:  l.Done,
	})
}

// Upstream returns the stream this view filters.
func (f *Filtered) Upstream() Stream {
	return f.src
}
