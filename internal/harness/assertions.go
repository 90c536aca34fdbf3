package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/tripwire/internal/event"
	"github.com/roach88/tripwire/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, ev := range e.Trace {
			switch ev.Kind {
			case KindEvent:
				fmt.Fprintf(&buf, "  [%d] #%d %s/%s %v\n", i+1, ev.Seq, ev.Stream, ev.EventType, ev.Payload)
			case KindFired:
				fmt.Fprintf(&buf, "  [%d] #%d fired %s\n", i+1, ev.Seq, ev.Trigger)
			case KindError:
				fmt.Fprintf(&buf, "  [%d] error %s: %s\n", i+1, ev.Stream, ev.Error)
			}
		}
	}

	return buf.String()
}

// AssertionContext carries what assertions need beyond the trace.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
	RunID string
}

// EvaluateAssertions checks every assertion and returns the failure
// messages, in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertFired:
			err = assertFired(result.Trace, a)
		case AssertFiredOrder:
			err = assertFiredOrder(result.Trace, a)
		case AssertObserved:
			err = assertObserved(result.Trace, a)
		case AssertNotFired:
			err = assertNotFired(result.Trace, a)
		case AssertStored:
			err = assertStored(actx, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func countFired(trace []TraceEvent, trigger string) int {
	n := 0
	for _, ev := range trace {
		if ev.Kind == KindFired && ev.Trigger == trigger {
			n++
		}
	}
	return n
}

// assertFired checks the trigger fired exactly the specified number of times.
func assertFired(trace []TraceEvent, a Assertion) error {
	if n := countFired(trace, a.Trigger); n != a.Count {
		return &AssertionError{
			Type:     AssertFired,
			Expected: fmt.Sprintf("%d firings of %s", a.Count, a.Trigger),
			Actual:   fmt.Sprintf("%d firings", n),
			Trace:    trace,
		}
	}
	return nil
}

func assertNotFired(trace []TraceEvent, a Assertion) error {
	if n := countFired(trace, a.Trigger); n != 0 {
		return &AssertionError{
			Type:     AssertNotFired,
			Expected: fmt.Sprintf("%s never fires", a.Trigger),
			Actual:   fmt.Sprintf("%d firings", n),
			Trace:    trace,
		}
	}
	return nil
}

// assertFiredOrder checks the triggers fire in the specified order.
// Firings don't need to be consecutive (intervening firings are allowed).
func assertFiredOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, ev := range trace {
		if next == len(a.Triggers) {
			break
		}
		if ev.Kind == KindFired && ev.Trigger == a.Triggers[next] {
			next++
		}
	}
	if next < len(a.Triggers) {
		return &AssertionError{
			Type:     AssertFiredOrder,
			Expected: fmt.Sprintf("firings in order: %v", a.Triggers),
			Actual:   fmt.Sprintf("matched %d of %d, missing %s", next, len(a.Triggers), a.Triggers[next]),
			Trace:    trace,
		}
	}
	return nil
}

// assertObserved checks the App Stream carried exactly the expected
// payloads for the event type. Payloads compare by canonical JSON, so a
// YAML 23 matches an emitted int64(23).
func assertObserved(trace []TraceEvent, a Assertion) error {
	var actual []string
	for _, ev := range trace {
		if ev.Kind != KindEvent || ev.EventType != a.EventType {
			continue
		}
		actual = append(actual, canonical(ev.Payload))
	}

	expected := make([]string, len(a.Payloads))
	for i, p := range a.Payloads {
		expected[i] = canonical(p)
	}

	if !slices.Equal(actual, expected) {
		return &AssertionError{
			Type:     AssertObserved,
			Expected: fmt.Sprintf("%s payloads [%s]", a.EventType, strings.Join(expected, ", ")),
			Actual:   fmt.Sprintf("[%s]", strings.Join(actual, ", ")),
			Trace:    trace,
		}
	}
	return nil
}

// assertStored checks the trace store holds the firings of a trigger.
func assertStored(actx *AssertionContext, a Assertion) error {
	if actx == nil || actx.Store == nil {
		return fmt.Errorf("stored assertion requires a store")
	}
	ctx := actx.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	firings, err := actx.Store.ReadFirings(ctx, actx.RunID, store.FiringFilter{Trigger: a.Trigger})
	if err != nil {
		return &AssertionError{
			Type:     AssertStored,
			Expected: fmt.Sprintf("read firings of %s", a.Trigger),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	if len(firings) != a.Count {
		return &AssertionError{
			Type:     AssertStored,
			Expected: fmt.Sprintf("%d stored firings of %s", a.Count, a.Trigger),
			Actual:   fmt.Sprintf("%d stored firings", len(firings)),
		}
	}
	return nil
}

func canonical(v any) string {
	data, err := event.MarshalPayload(v)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(data)
}
