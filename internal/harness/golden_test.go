package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden(t *testing.T) {
	for _, file := range []string{"thermostat.yaml", "heartbeat.yaml"} {
		t.Run(file, func(t *testing.T) {
			s, err := LoadScenario(filepath.Join("testdata", "scenarios", file))
			require.NoError(t, err)

			// Regenerate with: go test ./internal/harness -run TestRunWithGolden -update
			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestTraceSnapshot_Marshal(t *testing.T) {
	snapshot := TraceSnapshot{
		ScenarioName: "s",
		Trace: []TraceEvent{
			{Kind: KindEvent, Seq: 1, Stream: "a", EventType: "x", Payload: map[string]any{"b": 2, "a": 1}},
			{Kind: KindError, Stream: "a", Error: "boom"},
		},
	}

	data, err := snapshot.Marshal()
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"s","trace":[{"kind":"event","payload":{"a":1,"b":2},"seq":1,"stream":"a","type":"x"},{"error":"boom","kind":"error","seq":0,"stream":"a"}]}`+"\n",
		string(data))
}
