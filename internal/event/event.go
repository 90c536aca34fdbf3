package event

import "fmt"

// Type identifies a kind of event, e.g. "count" or "door.opened".
type Type string

// String implements fmt.Stringer.
func (t Type) String() string {
	return string(t)
}

// Event is a single emission travelling through the event graph.
type Event struct {
	Type    Type   `json:"event_type"`
	Payload any    `json:"payload"`
	Stream  string `json:"stream,omitempty"` // Name of the originating stream, empty for synthetic events
	Seq     int64  `json:"seq"`              // Logical clock value stamped at emission
}

// String renders the event for log output.
func (e Event) String() string {
	if e.Stream == "" {
		return fmt.Sprintf("%s(%v)#%d", e.Type, e.Payload, e.Seq)
	}
	return fmt.Sprintf("%s/%s(%v)#%d", e.Stream, e.Type, e.Payload, e.Seq)
}

// Types converts a list of strings to event types.
func Types(names ...string) []Type {
	out := make([]Type, len(names))
	for i, n := range names {
		out[i] = Type(n)
	}
	return out
}

// TypeSet is an unordered set of event types.
type TypeSet map[Type]struct{}

// NewTypeSet builds a set from the given types.
func NewTypeSet(types ...Type) TypeSet {
	s := make(TypeSet, len(types))
	for _, t := range types {
		s[t] = struct{}{}
	}
	return s
}

// Has reports whether t is in the set.
func (s TypeSet) Has(t Type) bool {
	_, ok := s[t]
	return ok
}

// Len returns the number of types in the set.
func (s TypeSet) Len() int {
	return len(s)
}
