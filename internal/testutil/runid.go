package testutil

// FixedRunIDGenerator returns the same run id every time.
//
// Scenarios pin their run id so recorded traces are byte-identical across
// runs. Unlike engine.FixedGenerator, which hands out ids in sequence and
// panics when exhausted, this generator never runs out.
//
// Thread-safety: FixedRunIDGenerator is stateless and safe for concurrent use.
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator creates a generator returning id.
// If id is empty, Generate returns "test-run-default".
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate returns the fixed run id.
//
// Implements engine.RunIDGenerator.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}
