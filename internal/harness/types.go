package harness

// Trace entry kinds.
const (
	KindEvent = "event"
	KindFired = "fired"
	KindError = "error"
)

// TraceEvent is one line of a scenario's timeline.
type TraceEvent struct {
	Kind      string `json:"kind"`
	Seq       int64  `json:"seq"`
	Stream    string `json:"stream,omitempty"`
	EventType string `json:"type,omitempty"`
	Trigger   string `json:"trigger,omitempty"`
	Payload   any    `json:"payload,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every assertion holds.
	Pass bool `json:"pass"`

	// RunID is the run id the scenario registered under.
	RunID string `json:"run_id"`

	// Trace contains events, firings and stream errors in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(runID string) *Result {
	return &Result{
		Pass:   true,
		RunID:  runID,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Fired returns trigger names in firing order.
func (r *Result) Fired() []string {
	var out []string
	for _, e := range r.Trace {
		if e.Kind == KindFired {
			out = append(out, e.Trigger)
		}
	}
	return out
}
