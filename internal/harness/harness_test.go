package harness

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name))
	require.NoError(t, err)
	return s
}

func TestRun_Thermostat(t *testing.T) {
	result, err := Run(loadScenario(t, "thermostat.yaml"))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	assert.Equal(t, "thermostat-run-1", result.RunID)
	assert.Equal(t, []string{"too-hot", "notify", "too-hot", "notify"}, result.Fired())

	require.Len(t, result.Trace, 9)
	assert.Equal(t, TraceEvent{Kind: KindEvent, Seq: 1, Stream: "sensor", EventType: "reading", Payload: 19}, result.Trace[0])
	assert.Equal(t, TraceEvent{Kind: KindFired, Seq: 2, Stream: "sensor", EventType: "reading", Trigger: "too-hot"}, result.Trace[2])
}

func TestRun_Deterministic(t *testing.T) {
	first, err := Run(loadScenario(t, "thermostat.yaml"))
	require.NoError(t, err)
	second, err := Run(loadScenario(t, "thermostat.yaml"))
	require.NoError(t, err)

	assert.Equal(t, first.Trace, second.Trace)
}

func TestRun_FailingAssertions(t *testing.T) {
	s := loadScenario(t, "thermostat.yaml")
	s.Assertions = []Assertion{
		{Type: AssertFired, Trigger: "too-hot", Count: 3},
		{Type: AssertNotFired, Trigger: "notify"},
		{Type: AssertFiredOrder, Triggers: []string{"notify", "too-hot", "notify", "too-hot"}},
		{Type: AssertObserved, EventType: "reading", Payloads: []any{19, 23}},
		{Type: AssertStored, Trigger: "too-hot", Count: 1},
		{Type: AssertNotFired, Trigger: "never"},
	}

	result, err := Run(s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 5)
	assert.Contains(t, result.Errors[0], "assertions[0]")
	assert.Contains(t, result.Errors[0], "3 firings of too-hot")
	assert.Contains(t, result.Errors[1], "notify never fires")
	assert.Contains(t, result.Errors[2], "missing too-hot")
	assert.Contains(t, result.Errors[3], "[19, 23, 25]")
	assert.Contains(t, result.Errors[4], "2 stored firings")
}

func TestRun_NeverSettles(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: forever
description: An interval without count never completes.
max_steps: 5
app:
  name: forever
  streams:
    - name: ticker
      kind: interval
      event_types: [tick]
      every: 1s
  triggers:
    - event: tick
      action: { log: tick }
assertions:
  - type: not_fired
    trigger: nothing
`))
	require.NoError(t, err)

	_, err = Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not settle after 5 timer steps")
}

func TestRun_WithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	result, err := Run(loadScenario(t, "thermostat.yaml"), WithLogger(logger))
	require.NoError(t, err)
	assert.True(t, result.Pass)

	logs := buf.String()
	assert.Contains(t, logs, "alarm raised")
	assert.Contains(t, logs, "scenario settled")
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertFired,
		Expected: "1 firings of t",
		Actual:   "0 firings",
		Trace: []TraceEvent{
			{Kind: KindEvent, Seq: 1, Stream: "s", EventType: "x", Payload: 1},
			{Kind: KindError, Stream: "s", Error: "boom"},
		},
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: fired")
	assert.Contains(t, msg, "[1] #1 s/x 1")
	assert.Contains(t, msg, "[2] error s: boom")
}
