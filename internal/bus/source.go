package bus

import (
	"github.com/roach88/tripwire/internal/event"
)

// Sink is handed to a Producer to push events into its Source.
type Sink interface {
	Next(ev event.Event)
	Error(err error)
	Done()
}

// Producer starts producing into sink and returns an optional stop function.
// It is called once per activation of the Source.
type Producer func(sink Sink) (stop func())

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithMemory enables replay of the most recent event to late subscribers.
func WithMemory(memory bool) SourceOption {
	return func(s *Source) {
		s.memory = memory
	}
}

// Source is a lazily started, optionally replaying event producer.
type Source struct {
	hub
	produce Producer
	memory  bool
	running bool
	gen     uint64 // Activation counter; sinks from older activations are ignored
	stop    func()
	last    *event.Event
}

// NewSource wraps a producer. Nothing runs until the first Subscribe.
func NewSource(produce Producer, opts ...SourceOption) *Source {
	s := &Source{produce: produce}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe attaches l. The first subscriber starts the producer; with
// memory enabled, l first receives the cached event if there is one.
func (s *Source) Subscribe(l Listener) *Subscription {
	s.mu.Lock()
	id, _ := s.add(l)

	var replay *event.Event
	if s.memory && s.last != nil {
		ev := *s.last
		replay = &ev
	}

	start := !s.running
	var gen uint64
	if start {
		s.running = true
		s.gen++
		gen = s.gen
	}
	s.mu.Unlock()

	if replay != nil && l.Next != nil {
		l.Next(*replay)
	}

	if start && s.produce != nil {
		stop := s.produce(&sink{src: s, gen: gen})
		s.mu.Lock()
		if s.running && s.gen == gen {
			s.stop = stop
			stop = nil
		}
		s.mu.Unlock()
		// Completed or torn down during the producer call
		if stop != nil {
			stop()
		}
	}

	return newSubscription(func() { s.unsubscribe(id) })
}

// SetTap installs an observer, replacing any previous one. Nil removes it.
func (s *Source) SetTap(tap Tap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tap = tap
}

// Running reports whether the producer is currently active.
func (s *Source) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Subscribers returns the current subscriber count.
func (s *Source) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count()
}

// Last returns the cached event of a memory Source.
func (s *Source) Last() (event.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return event.Event{}, false
	}
	return *s.last, true
}

func (s *Source) unsubscribe(id uint64) {
	s.mu.Lock()
	removed, last := s.remove(id)
	if !removed || !last || !s.running {
		s.mu.Unlock()
		return
	}
	stop := s.deactivate()
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
}

// deactivate resets activation state. Caller holds mu.
func (s *Source) deactivate() func() {
	stop := s.stop
	s.stop = nil
	s.running = false
	s.last = nil
	return stop
}

func (s *Source) emit(gen uint64, ev event.Event) {
	s.mu.Lock()
	if !s.running || s.gen != gen {
		s.mu.Unlock()
		return
	}
	if s.memory {
		cached := ev
		s.last = &cached
	}
	listeners := s.snapshot()
	tap := s.tap
	s.mu.Unlock()

	deliverNext(tap, listeners, ev)
}

// finish ends the activation, detaching every subscriber.
func (s *Source) finish(gen uint64, err error) {
	s.mu.Lock()
	if !s.running || s.gen != gen {
		s.mu.Unlock()
		return
	}
	listeners := s.snapshot()
	s.subs = nil
	stop := s.deactivate()
	s.mu.Unlock()

	if err != nil {
		deliverError(listeners, err)
	} else {
		deliverDone(listeners)
	}
	if stop != nil {
		stop()
	}
}

type sink struct {
	src *Source
	gen uint64
}

func (k *sink) Next(ev event.Event) { k.src.emit(k.gen, ev) }
func (k *sink) Error(err error)     { k.src.finish(k.gen, err) }
func (k *sink) Done()               { k.src.finish(k.gen, nil) }
