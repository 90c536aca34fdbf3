package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/tripwire/internal/app"
	"github.com/roach88/tripwire/internal/engine"
	"github.com/roach88/tripwire/internal/event"
	"github.com/roach88/tripwire/internal/store"
	"github.com/roach88/tripwire/internal/testutil"
)

// DefaultMaxSteps bounds settling when a scenario doesn't set max_steps.
const DefaultMaxSteps = 1000

// Harness is the test execution engine.
// It runs scenarios with a virtual clock and a fixed run id.
type Harness struct {
	rt       *engine.Runtime
	store    *store.Store
	stored   *store.Recorder
	recorder *testutil.Recorder
	clock    *testutil.VirtualClock
	logger   *slog.Logger
	maxSteps int
}

// Option configures Run.
type Option func(*Harness)

// WithLogger routes runtime and action logs to logger. By default they are
// discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database and runtime
// 2. Compile and register the app, tap the App Stream
// 3. Drain the loop and step the virtual clock until nothing is pending
// 4. Evaluate assertions against the recorded trace
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	ctx := context.Background()

	st, err := store.OpenMemory()
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:    st,
		recorder: testutil.NewRecorder(),
		clock:    testutil.NewVirtualClock(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
		maxSteps: scenario.MaxSteps,
	}
	if h.maxSteps == 0 {
		h.maxSteps = DefaultMaxSteps
	}
	for _, opt := range opts {
		opt(h)
	}

	runIDs := testutil.NewFixedRunIDGenerator(scenario.RunID)
	runID := runIDs.Generate()

	h.stored, err = store.NewRecorder(ctx, st, store.Run{ID: runID, App: scenario.App.Name}, h.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to start recording: %w", err)
	}

	h.rt = engine.New(
		engine.WithLogger(h.logger),
		engine.WithObserver(engine.Observers{h.recorder, h.stored}),
		engine.WithRunIDGenerator(runIDs),
	)

	builder, err := scenario.App.Compile(h.rt, app.WithLogger(h.logger), app.WithScheduler(h.clock))
	if err != nil {
		return nil, fmt.Errorf("failed to compile app: %w", err)
	}
	reg, err := h.rt.Register(builder)
	if err != nil {
		return nil, fmt.Errorf("failed to register app: %w", err)
	}
	if err := h.rt.AddDebugListener(engine.AppTarget, h.listen); err != nil {
		return nil, fmt.Errorf("failed to tap app stream: %w", err)
	}

	if err := h.settle(); err != nil {
		return nil, err
	}
	h.rt.Stop()

	if err := h.stored.Err(); err != nil {
		return nil, fmt.Errorf("failed to record trace: %w", err)
	}

	result := NewResult(reg.RunID)
	result.Trace = buildTrace(h.recorder.Entries())

	h.logger.Info("scenario settled",
		"scenario", scenario.Name,
		"run_id", reg.RunID,
		"trace_len", len(result.Trace),
		"virtual_time", h.clock.Now(),
	)

	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
		RunID: reg.RunID,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

func (h *Harness) listen(ev event.Event) {
	h.recorder.Listen(ev)
	h.stored.Listen(ev)
}

// settle drains the loop, then fires virtual timers one at a time until
// nothing is pending.
func (h *Harness) settle() error {
	h.rt.Drain()
	for steps := 0; h.clock.Step(); steps++ {
		if steps >= h.maxSteps {
			return fmt.Errorf("scenario did not settle after %d timer steps", h.maxSteps)
		}
		h.rt.Drain()
	}
	return nil
}

// buildTrace converts recorder entries to trace events.
func buildTrace(entries []testutil.Entry) []TraceEvent {
	trace := make([]TraceEvent, 0, len(entries))
	for _, e := range entries {
		switch e.Kind {
		case testutil.EntryEvent:
			trace = append(trace, TraceEvent{
				Kind:      KindEvent,
				Seq:       e.Event.Seq,
				Stream:    e.Event.Stream,
				EventType: string(e.Event.Type),
				Payload:   e.Event.Payload,
			})
		case testutil.EntryFired:
			trace = append(trace, TraceEvent{
				Kind:      KindFired,
				Seq:       e.Event.Seq,
				Stream:    e.Event.Stream,
				EventType: string(e.Event.Type),
				Trigger:   e.Trigger,
			})
		case testutil.EntryError:
			trace = append(trace, TraceEvent{
				Kind:   KindError,
				Stream: e.Stream,
				Error:  e.Err.Error(),
			})
		}
	}
	return trace
}
