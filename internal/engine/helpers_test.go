package engine

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tripwire/internal/bus"
	"github.com/roach88/tripwire/internal/event"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRuntime(t *testing.T, opts ...Option) *Runtime {
	t.Helper()
	base := []Option{
		WithLogger(quietLogger()),
		WithRunIDGenerator(NewFixedGenerator("run-1", "run-2", "run-3", "run-4")),
	}
	return New(append(base, opts...)...)
}

// manualStream is a stream setup driven by the test.
type manualStream struct {
	params StreamParams
	starts int
	stops  int
}

func (m *manualStream) setup(p StreamParams) Teardown {
	m.params = p
	m.starts++
	return func() {
		m.stops++
		m.params = StreamParams{}
	}
}

func (m *manualStream) emit(t *testing.T, et event.Type, payload any) {
	t.Helper()
	require.NotNil(t, m.params.Emit, "stream is not running")
	m.params.Emit(et, payload)
}

func (m *manualStream) config(name string, memory bool, types ...event.Type) StreamConfig {
	return StreamConfig{Name: name, Memory: memory, EventTypes: types, Setup: m.setup}
}

// collect subscribes to s and records every event.
func collect(s bus.Stream) (*[]event.Event, *bus.Subscription) {
	var got []event.Event
	sub := s.Subscribe(bus.OnNext(func(ev event.Event) { got = append(got, ev) }))
	return &got, sub
}

func payloads(evs []event.Event) []any {
	out := make([]any, len(evs))
	for i, ev := range evs {
		out[i] = ev.Payload
	}
	return out
}

type recordingObserver struct {
	fired  []string
	errors map[string]error
}

func (o *recordingObserver) OnTriggerFired(trigger string, ev event.Event) {
	o.fired = append(o.fired, trigger)
}

func (o *recordingObserver) OnStreamError(stream string, err error) {
	if o.errors == nil {
		o.errors = make(map[string]error)
	}
	o.errors[stream] = err
}
