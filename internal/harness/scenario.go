package harness

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tripwire/internal/app"
)

// Scenario defines a conformance test scenario.
// A scenario runs an inline app on a fresh runtime with a virtual clock
// and asserts on the recorded timeline.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// App is the app under test.
	App app.Definition `yaml:"app"`

	// RunID is an optional fixed run id for deterministic traces.
	// If empty, defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`

	// MaxSteps bounds the virtual timer steps taken while settling.
	// Defaults to DefaultMaxSteps.
	MaxSteps int `yaml:"max_steps,omitempty"`

	// Assertions validate the recorded timeline.
	// Supported types: fired, fired_order, observed, not_fired, stored.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates the timeline.
type Assertion struct {
	// Type specifies the assertion type:
	// - "fired": trigger fired exactly Count times
	// - "fired_order": Triggers fired in this relative order
	// - "observed": the App Stream carried exactly Payloads for EventType
	// - "not_fired": trigger never fired
	// - "stored": the trace store holds Count firings of trigger
	Type string `yaml:"type"`

	// Trigger is the trigger name (fired, not_fired, stored).
	Trigger string `yaml:"trigger,omitempty"`

	// Count is the expected number of firings (fired, stored).
	Count int `yaml:"count,omitempty"`

	// Triggers is the expected firing order (fired_order).
	// Triggers don't need to be consecutive.
	Triggers []string `yaml:"triggers,omitempty"`

	// EventType selects observed events (observed).
	EventType string `yaml:"event_type,omitempty"`

	// Payloads are the expected payloads in emission order (observed).
	Payloads []any `yaml:"payloads,omitempty"`
}

// Assertion type constants.
const (
	AssertFired      = "fired"
	AssertFiredOrder = "fired_order"
	AssertObserved   = "observed"
	AssertNotFired   = "not_fired"
	AssertStored     = "stored"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("scenario file is empty")
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.MaxSteps < 0 {
		return fmt.Errorf("max_steps must be non-negative")
	}

	if errs := s.App.Validate(); len(errs) > 0 {
		return fmt.Errorf("app: %w", errs[0])
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFired, AssertStored:
		if a.Trigger == "" {
			return fmt.Errorf("assertions[%d]: trigger is required for %s", index, a.Type)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertNotFired:
		if a.Trigger == "" {
			return fmt.Errorf("assertions[%d]: trigger is required for not_fired", index)
		}
	case AssertFiredOrder:
		if len(a.Triggers) == 0 {
			return fmt.Errorf("assertions[%d]: triggers list is required for fired_order", index)
		}
	case AssertObserved:
		if a.EventType == "" {
			return fmt.Errorf("assertions[%d]: event_type is required for observed", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
