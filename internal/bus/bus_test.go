package bus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tripwire/internal/event"
)

// manual is a producer whose sink is captured so tests can emit by hand.
type manual struct {
	sink    Sink
	starts  int
	stops   int
	onStart func(Sink)
}

func (m *manual) produce(s Sink) func() {
	m.sink = s
	m.starts++
	if m.onStart != nil {
		m.onStart(s)
	}
	return func() { m.stops++ }
}

func (m *manual) emit(t event.Type, payload any) {
	m.sink.Next(event.Event{Type: t, Payload: payload})
}

func collect(got *[]any) Listener {
	return OnNext(func(ev event.Event) { *got = append(*got, ev.Payload) })
}

func TestSource_LazyStart(t *testing.T) {
	m := &manual{}
	src := NewSource(m.produce)

	assert.False(t, src.Running())
	assert.Equal(t, 0, m.starts, "producer must not run before a subscriber")

	var a, b []any
	subA := src.Subscribe(collect(&a))
	subB := src.Subscribe(collect(&b))
	assert.Equal(t, 1, m.starts, "producer runs once per activation")
	assert.Equal(t, 2, src.Subscribers())

	m.emit("n", 1)
	assert.Equal(t, []any{1}, a)
	assert.Equal(t, []any{1}, b)

	subA.Unsubscribe()
	assert.Equal(t, 0, m.stops)
	subB.Unsubscribe()
	assert.Equal(t, 1, m.stops, "teardown runs when the last subscriber leaves")
	assert.False(t, src.Running())

	// Idempotent
	subB.Unsubscribe()
	assert.Equal(t, 1, m.stops)

	// Re-subscription re-runs the producer
	src.Subscribe(collect(&a))
	assert.Equal(t, 2, m.starts)
}

func TestSource_SynchronousEmitDuringStart(t *testing.T) {
	m := &manual{onStart: func(s Sink) {
		for i := 1; i <= 3; i++ {
			s.Next(event.Event{Type: "n", Payload: i})
		}
	}}
	src := NewSource(m.produce)

	var got []any
	src.Subscribe(collect(&got))
	assert.Equal(t, []any{1, 2, 3}, got)
}

func TestSource_Memory(t *testing.T) {
	m := &manual{}
	src := NewSource(m.produce, WithMemory(true))

	var early []any
	src.Subscribe(collect(&early))
	m.emit("n", 1)
	m.emit("n", 2)

	var late []any
	src.Subscribe(collect(&late))
	assert.Equal(t, []any{2}, late, "late subscriber gets the last event replayed")

	m.emit("n", 3)
	assert.Equal(t, []any{2, 3}, late, "replay precedes live events")
	assert.Equal(t, []any{1, 2, 3}, early)

	last, ok := src.Last()
	require.True(t, ok)
	assert.Equal(t, 3, last.Payload)
}

func TestSource_NoMemory(t *testing.T) {
	m := &manual{}
	src := NewSource(m.produce)

	src.Subscribe(OnNext(func(event.Event) {}))
	m.emit("n", 1)

	var late []any
	src.Subscribe(collect(&late))
	assert.Empty(t, late)

	m.emit("n", 2)
	assert.Equal(t, []any{2}, late)

	_, ok := src.Last()
	assert.False(t, ok)
}

func TestSource_MemoryClearedOnTeardown(t *testing.T) {
	m := &manual{}
	src := NewSource(m.produce, WithMemory(true))

	sub := src.Subscribe(OnNext(func(event.Event) {}))
	m.emit("n", 1)
	sub.Unsubscribe()

	var got []any
	src.Subscribe(collect(&got))
	assert.Empty(t, got)
}

func TestSource_Done(t *testing.T) {
	m := &manual{}
	src := NewSource(m.produce)

	done := 0
	var got []any
	src.Subscribe(Listener{
		Next: func(ev event.Event) { got = append(got, ev.Payload) },
		Done: func() { done++ },
	})

	m.emit("n", 1)
	m.sink.Done()
	m.emit("n", 2)

	assert.Equal(t, []any{1}, got, "emissions after Done are dropped")
	assert.Equal(t, 1, done)
	assert.Equal(t, 1, m.stops)
	assert.False(t, src.Running())
}

func TestSource_Error(t *testing.T) {
	m := &manual{}
	src := NewSource(m.produce)

	var gotErr error
	src.Subscribe(Listener{Error: func(err error) { gotErr = err }})

	m.sink.Error(errors.New("sensor offline"))
	require.Error(t, gotErr)
	assert.Equal(t, "sensor offline", gotErr.Error())
	assert.False(t, src.Running())
}

func TestSource_DoneDuringStart(t *testing.T) {
	m := &manual{onStart: func(s Sink) {
		s.Next(event.Event{Type: "n", Payload: 1})
		s.Done()
	}}
	src := NewSource(m.produce)

	var got []any
	src.Subscribe(collect(&got))

	assert.Equal(t, []any{1}, got)
	assert.Equal(t, 1, m.stops, "stop runs even if the producer completed synchronously")
	assert.False(t, src.Running())
}

func TestSource_TapDoesNotStart(t *testing.T) {
	m := &manual{}
	src := NewSource(m.produce)

	var tapped []any
	src.SetTap(func(ev event.Event) { tapped = append(tapped, ev.Payload) })
	assert.Equal(t, 0, m.starts)

	src.Subscribe(OnNext(func(event.Event) {}))
	m.emit("n", 1)
	assert.Equal(t, []any{1}, tapped)

	// Replacement
	var replaced []any
	src.SetTap(func(ev event.Event) { replaced = append(replaced, ev.Payload) })
	m.emit("n", 2)
	assert.Equal(t, []any{1}, tapped)
	assert.Equal(t, []any{2}, replaced)
}
