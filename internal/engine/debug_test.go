package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tripwire/internal/event"
)

func TestAddDebugListener_Scopes(t *testing.T) {
	rt := newTestRuntime(t)
	a, b := &manualStream{}, &manualStream{}
	registerStreams(t, rt, a.config("a", false, "x"), b.config("b", false, "x"))

	var app, onlyA []any
	require.NoError(t, rt.AddDebugListener(AppTarget, func(ev event.Event) { app = append(app, ev.Payload) }))
	require.NoError(t, rt.AddDebugListener("A", func(ev event.Event) { onlyA = append(onlyA, ev.Payload) }))

	collect(rt.AppStream())
	a.emit(t, "x", "a1")
	b.emit(t, "x", "b1")
	a.emit(t, "x", "a2")

	assert.Equal(t, []any{"a1", "b1", "a2"}, app)
	assert.Equal(t, []any{"a1", "a2"}, onlyA)
}

func TestAddDebugListener_UnknownTarget(t *testing.T) {
	rt := newTestRuntime(t)

	err := rt.AddDebugListener("nope", func(event.Event) {})
	require.Error(t, err)
	assert.True(t, IsLookupError(err))
}

func TestAddDebugListener_NilListener(t *testing.T) {
	err := newTestRuntime(t).AddDebugListener(AppTarget, nil)
	assert.True(t, IsConfigError(err))
}

func TestAddDebugListener_DoesNotStartStream(t *testing.T) {
	rt := newTestRuntime(t)
	m := &manualStream{}
	registerStreams(t, rt, m.config("idle", false, "x"))

	require.NoError(t, rt.AddDebugListener("idle", func(event.Event) {}))
	require.NoError(t, rt.AddDebugListener(AppTarget, func(event.Event) {}))

	assert.Equal(t, 0, m.starts)
	assert.Equal(t, 0, rt.AppStream().Subscribers())
}

func TestAddDebugListener_ReplacesPrevious(t *testing.T) {
	rt := newTestRuntime(t)
	m := &manualStream{}
	node := registerStreams(t, rt, m.config("s", false, "x"))[0]

	var first, second int
	require.NoError(t, rt.AddDebugListener("s", func(event.Event) { first++ }))
	require.NoError(t, rt.AddDebugListener("s", func(event.Event) { second++ }))

	collect(node.Stream())
	m.emit(t, "x", 1)

	assert.Equal(t, 0, first)
	assert.Equal(t, 1, second)

	rt.RemoveDebugListener("s")
	m.emit(t, "x", 2)
	assert.Equal(t, 1, second)
}

func TestAddDebugListener_SeesEventBeforeTrigger(t *testing.T) {
	rt := newTestRuntime(t)
	m := &manualStream{}

	var order []string
	_, err := rt.Register(func(p *Pass) error {
		if _, err := p.UseStream(m.config("s", false, "x")); err != nil {
			return err
		}
		if err := p.AddDebugListener(AppTarget, func(event.Event) { order = append(order, "debug") }); err != nil {
			return err
		}
		_, err := p.UseTrigger(func(p *Pass) error {
			if err := p.UseEvent("x"); err != nil {
				return err
			}
			return p.UseAction(func(event.Event) { order = append(order, "action") })
		})
		return err
	})
	require.NoError(t, err)

	m.emit(t, "x", 1)
	assert.Equal(t, []string{"debug", "action"}, order)
}
