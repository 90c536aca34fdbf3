// Package harness runs tripwire apps as conformance scenarios.
//
// A scenario embeds an app definition, runs it on a fresh runtime with a
// virtual clock and a fixed run id, and asserts on the recorded timeline
// of events and trigger firings. Traces are deterministic, so they can be
// compared against golden files.
//
// # Scenario Format
//
//	name: thermostat-alarm
//	description: "What this scenario validates"
//	run_id: thermostat-run-1     # optional
//	app:
//	  name: thermostat
//	  streams: [...]
//	  triggers: [...]
//	assertions:
//	  - type: fired
//	    trigger: too-hot
//	    count: 2
//	  - type: fired_order
//	    triggers: [too-hot, notify]
//	  - type: observed
//	    event_type: alarm
//	    payloads: [23, 25]
//	  - type: not_fired
//	    trigger: too-cold
//	  - type: stored
//	    trigger: notify
//	    count: 2
//
// # Settling
//
// Run drains the event loop, then fires virtual timers one at a time,
// draining after each, until no timer is pending. A stream that never
// completes (an interval without count) fails the scenario once max_steps
// timer steps have run.
//
// # Golden Files
//
// RunWithGolden compares the canonical JSON trace with
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
