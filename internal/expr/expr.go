// Package expr compiles CUE expressions into event predicates.
//
// Declarative apps express trigger conditions and custom event filters as
// CUE expressions over three bound names:
//
//	payload   - the event payload (any JSON-compatible value)
//	eventType - the event type as a string
//	stream    - the originating stream name ("" for synthetic events)
//
// Examples:
//
//	payload > 3
//	payload.room == "kitchen" && payload.value >= 21.5
//	eventType == "door.opened" || stream =~ "^sensor-"
//
// An expression must evaluate to a concrete bool for the event; anything
// else (type mismatch, missing field, incomplete value) is an evaluation
// error. Predicate turns evaluation errors into false and logs them.
//
// CUE contexts retain the values filled into them, so an Expr recompiles
// itself into a fresh context every few thousand evaluations to keep long
// runs bounded.
package expr

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/tripwire/internal/event"
)

// Bound names visible to expressions.
var (
	pathPayload   = cue.ParsePath("payload")
	pathEventType = cue.ParsePath("eventType")
	pathStream    = cue.ParsePath("stream")
	pathResult    = cue.ParsePath("result")
)

// prefix is prepended to every expression; the expression starts on line 1
// at column len(prefix)+1.
const prefix = "result: ("

const scaffold = `)
payload:   _
eventType: string
stream:    string
`

// CompileError reports an expression that failed to compile.
type CompileError struct {
	Expr    string
	Message string
	Column  int // 1-based column within Expr, 0 if unknown
}

func (e *CompileError) Error() string {
	if e.Column > 0 {
		return fmt.Sprintf("expression %q: column %d: %s", e.Expr, e.Column, e.Message)
	}
	return fmt.Sprintf("expression %q: %s", e.Expr, e.Message)
}

// Expr is a compiled predicate expression.
// Safe for concurrent use; evaluation is serialised internally.
type Expr struct {
	src string

	mu       sync.Mutex
	val      cue.Value
	evals    int // Evaluations since val was built
	rebuilds int
}

// rebuildEvery bounds how many evaluations share one CUE context. A
// context keeps every value filled into it, so a long-running predicate
// moves to a fresh context periodically and lets the old one be collected.
var rebuildEvery = 4096

// Compile parses and type-checks src.
func Compile(src string) (*Expr, error) {
	trimmed := strings.TrimSpace(src)
	if trimmed == "" {
		return nil, &CompileError{Expr: src, Message: "expression is empty"}
	}

	v, err := build(trimmed)
	if err != nil {
		return nil, err
	}
	return &Expr{src: trimmed, val: v}, nil
}

// build compiles src in a new CUE context.
func build(src string) (cue.Value, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(prefix+src+scaffold, cue.Filename("expr.cue"))
	if err := v.Err(); err != nil {
		return cue.Value{}, toCompileError(src, err)
	}

	result := v.LookupPath(pathResult)
	if err := result.Err(); err != nil && !isIncomplete(result) {
		return cue.Value{}, toCompileError(src, err)
	}
	if k := result.IncompleteKind(); k&cue.BoolKind == 0 {
		return cue.Value{}, &CompileError{Expr: src, Message: fmt.Sprintf("expression is %v, not bool", k)}
	}
	return v, nil
}

// MustCompile is Compile that panics on error. For tests and constants.
func MustCompile(src string) *Expr {
	e, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return e
}

// String returns the expression source.
func (e *Expr) String() string {
	return e.src
}

// Eval evaluates the expression against ev.
func (e *Expr) Eval(ev event.Event) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.evals >= rebuildEvery {
		// src compiled once already; a failure here keeps the old value
		if v, err := build(e.src); err == nil {
			e.val = v
			e.rebuilds++
		}
		e.evals = 0
	}
	e.evals++

	v := e.val.
		FillPath(pathPayload, ev.Payload).
		FillPath(pathEventType, string(ev.Type)).
		FillPath(pathStream, ev.Stream)

	result := v.LookupPath(pathResult)
	b, err := result.Bool()
	if err != nil {
		return false, fmt.Errorf("evaluate %q: %w", e.src, err)
	}
	return b, nil
}

// Predicate adapts the expression into an event predicate. Evaluation
// errors are logged at warn level and treated as false.
func (e *Expr) Predicate(logger *slog.Logger) func(event.Event) bool {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ev event.Event) bool {
		ok, err := e.Eval(ev)
		if err != nil {
			logger.Warn("predicate evaluation failed",
				"expr", e.src,
				"event_type", string(ev.Type),
				"stream", ev.Stream,
				"error", err,
			)
			return false
		}
		return ok
	}
}

func isIncomplete(v cue.Value) bool {
	return !v.IsConcrete()
}

// toCompileError extracts the first CUE error and maps its position back
// into the caller's expression.
func toCompileError(src string, err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &CompileError{Expr: src, Message: err.Error()}
	}

	first := errs[0]
	format, args := first.Msg()
	ce := &CompileError{Expr: src, Message: fmt.Sprintf(format, args...)}
	for _, pos := range errors.Positions(first) {
		if col, ok := exprColumn(pos); ok {
			ce.Column = col
			break
		}
	}
	return ce
}

func exprColumn(pos token.Pos) (int, bool) {
	if !pos.IsValid() || pos.Line() != 1 {
		return 0, false
	}
	col := pos.Column() - len(prefix)
	if col < 1 {
		return 0, false
	}
	return col, true
}
