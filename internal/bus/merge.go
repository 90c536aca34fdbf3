package bus

import (
	"github.com/roach88/tripwire/internal/event"
)

// Merge fans events from any number of upstream Streams into one.
//
// The set of upstreams only grows. While the merge has at least one
// subscriber it holds exactly one subscription per upstream; the last
// unsubscribe releases them all. Upstream errors are forwarded to
// subscribers' Error callbacks; upstream completion is ignored.
type Merge struct {
	hub
	sources  []Stream
	upstream map[int]*Subscription
	active   bool
}

// NewMerge creates a merge over the given sources.
func NewMerge(sources ...Stream) *Merge {
	m := &Merge{upstream: make(map[int]*Subscription)}
	for _, s := range sources {
		m.Add(s)
	}
	return m
}

// Add appends an upstream. Returns false if s is already merged.
// If the merge is active, s is subscribed immediately.
func (m *Merge) Add(s Stream) bool {
	m.mu.Lock()
	for _, existing := range m.sources {
		if existing == s {
			m.mu.Unlock()
			return false
		}
	}
	m.sources = append(m.sources, s)
	idx := len(m.sources) - 1
	active := m.active
	m.mu.Unlock()

	if active {
		m.attach(idx, s)
	}
	return true
}

// Has reports whether s is an upstream of the merge.
func (m *Merge) Has(s Stream) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.sources {
		if existing == s {
			return true
		}
	}
	return false
}

// Len returns the number of upstreams.
func (m *Merge) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sources)
}

// Subscribers returns the current subscriber count.
func (m *Merge) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count()
}

// SetTap installs an observer, replacing any previous one. Nil removes it.
func (m *Merge) SetTap(tap Tap) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tap = tap
}

// Subscribe attaches l; the first subscriber activates every upstream.
func (m *Merge) Subscribe(l Listener) *Subscription {
	m.mu.Lock()
	id, first := m.add(l)
	var sources []Stream
	if first {
		m.active = true
		sources = append(sources, m.sources...)
	}
	m.mu.Unlock()

	for i, s := range sources {
		m.attach(i, s)
	}

	return newSubscription(func() { m.unsubscribe(id) })
}

func (m *Merge) attach(idx int, s Stream) {
	sub := s.Subscribe(Listener{
		Next:  m.forward,
		Error: m.forwardError,
	})

	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	m.upstream[idx] = sub
	m.mu.Unlock()
}

func (m *Merge) unsubscribe(id uint64) {
	m.mu.Lock()
	removed, last := m.remove(id)
	if !removed || !last {
		m.mu.Unlock()
		return
	}
	m.active = false
	upstream := m.upstream
	m.upstream = make(map[int]*Subscription)
	m.mu.Unlock()

	for _, sub := range upstream {
		sub.Unsubscribe()
	}
}

func (m *Merge) forward(ev event.Event) {
	m.mu.Lock()
	listeners := m.snapshot()
	tap := m.tap
	m.mu.Unlock()

	deliverNext(tap, listeners, ev)
}

func (m *Merge) forwardError(err error) {
	m.mu.Lock()
	listeners := m.snapshot()
	m.mu.Unlock()

	deliverError(listeners, err)
}
