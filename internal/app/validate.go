package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/tripwire/internal/engine"
	"github.com/roach88/tripwire/internal/event"
	"github.com/roach88/tripwire/internal/expr"
)

// Validation error codes (E200-E299)
const (
	ErrAppNameEmpty       = "E201" // app name is required
	ErrStreamName         = "E202" // stream name missing or reserved
	ErrDuplicateName      = "E203" // duplicate stream or trigger name
	ErrUnknownKind        = "E204" // unknown stream kind
	ErrNoEventTypes       = "E205" // stream declares no event types
	ErrInvalidScript      = "E206" // script stream without steps or with undeclared types
	ErrInvalidInterval    = "E207" // interval stream period or count invalid
	ErrTriggerNoEvent     = "E208" // trigger event type missing
	ErrInvalidExpression  = "E209" // filter or condition does not compile
	ErrActionEmpty        = "E210" // action has neither log nor emit
	ErrUnknownEmitTarget  = "E211" // action emits a type no emitter provides
	ErrEmitterNoTypes     = "E212" // emitter lists no types
	ErrUnbridgedEventType = "E213" // bridge stream type no emitter provides
)

// ValidationError is one problem found in a definition.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks the definition and compiles every expression.
// Returns all errors found (does not fail-fast).
func (d *Definition) Validate() []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Code: code, Message: fmt.Sprintf(format, args...)})
	}

	// E201: name is required
	if strings.TrimSpace(d.Name) == "" {
		add("name", ErrAppNameEmpty, "app name is required")
	}

	emitted := make(map[string]bool)
	for i, e := range d.Emitters {
		field := fmt.Sprintf("emitters[%d].types", i)
		// E212: emitter must list types
		if len(e.Types) == 0 {
			add(field, ErrEmitterNoTypes, "emitter must list at least one event type")
		}
		for _, t := range e.Types {
			if strings.TrimSpace(t) == "" {
				add(field, ErrEmitterNoTypes, "event type must not be empty")
				continue
			}
			emitted[t] = true
		}
	}

	streamNames := make(map[string]int)
	for i, s := range d.Streams {
		errs = append(errs, validateStream(i, s, emitted)...)

		name := event.NormalizeName(s.Name)
		if name == "" {
			continue
		}
		// E203: duplicate stream name
		if first, ok := streamNames[name]; ok {
			add(fmt.Sprintf("streams[%d].name", i), ErrDuplicateName,
				"stream %q already declared by streams[%d]", name, first)
			continue
		}
		streamNames[name] = i
	}

	triggerNames := make(map[string]int)
	for i, t := range d.Triggers {
		errs = append(errs, validateTrigger(i, t, emitted)...)

		name := event.NormalizeName(t.Name)
		if name == "" {
			continue
		}
		// E203: duplicate trigger name
		if first, ok := triggerNames[name]; ok {
			add(fmt.Sprintf("triggers[%d].name", i), ErrDuplicateName,
				"trigger %q already declared by triggers[%d]", name, first)
			continue
		}
		triggerNames[name] = i
	}

	return errs
}

func validateStream(i int, s StreamDef, emitted map[string]bool) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{
			Field:   fmt.Sprintf("streams[%d].%s", i, field),
			Code:    code,
			Message: fmt.Sprintf(format, args...),
		})
	}

	// E202: stream name required and not reserved
	switch event.NormalizeName(s.Name) {
	case "":
		add("name", ErrStreamName, "stream name is required")
	case engine.AppTarget:
		add("name", ErrStreamName, "stream name %q is reserved for the app stream", engine.AppTarget)
	}

	// E205: at least one event type
	declared := make(map[string]bool)
	if len(s.EventTypes) == 0 {
		add("event_types", ErrNoEventTypes, "stream must declare at least one event type")
	}
	for _, t := range s.EventTypes {
		if strings.TrimSpace(t) == "" {
			add("event_types", ErrNoEventTypes, "event type must not be empty")
		}
		declared[t] = true
	}

	switch s.Kind {
	case KindScript:
		// E206: script needs steps of declared types
		if len(s.Emit) == 0 {
			add("emit", ErrInvalidScript, "script stream needs at least one emit step")
		}
		for j, step := range s.Emit {
			if !declared[step.Type] {
				add(fmt.Sprintf("emit[%d].type", j), ErrInvalidScript,
					"event type %q is not in event_types", step.Type)
			}
			if step.After < 0 {
				add(fmt.Sprintf("emit[%d].after", j), ErrInvalidScript, "delay must not be negative")
			}
		}

	case KindInterval:
		// E207: positive period, non-negative count
		if s.Every <= 0 {
			add("every", ErrInvalidInterval, "interval stream needs a positive period")
		}
		if s.Count < 0 {
			add("count", ErrInvalidInterval, "count must not be negative")
		}

	case KindEmitBridge:
		// E213: bridged types must come from an emitter
		for _, t := range s.EventTypes {
			if t != "" && !emitted[t] {
				add("event_types", ErrUnbridgedEventType, "no emitter provides event type %q", t)
			}
		}

	case "":
		add("kind", ErrUnknownKind, "stream kind is required (%s, %s or %s)", KindScript, KindInterval, KindEmitBridge)

	default:
		// E204: unknown kind
		add("kind", ErrUnknownKind, "unknown stream kind %q", s.Kind)
	}

	return errs
}

func validateTrigger(i int, t TriggerDef, emitted map[string]bool) []ValidationError {
	var errs []ValidationError
	add := func(field, code, message string) {
		errs = append(errs, ValidationError{
			Field:   fmt.Sprintf("triggers[%d].%s", i, field),
			Code:    code,
			Message: message,
		})
	}

	// E208: event type required
	if strings.TrimSpace(t.Event) == "" {
		add("event", ErrTriggerNoEvent, "trigger event type is required")
	}

	// E209: expressions must compile
	if t.Filter != "" {
		if _, err := expr.Compile(t.Filter); err != nil {
			add("filter", ErrInvalidExpression, expressionMessage(err))
		}
	}
	if t.Condition != "" {
		if _, err := expr.Compile(t.Condition); err != nil {
			add("condition", ErrInvalidExpression, expressionMessage(err))
		}
	}

	// E210: action must do something
	if t.Action.Log == "" && t.Action.Emit == "" {
		add("action", ErrActionEmpty, "action needs log, emit or both")
	}

	// E211: emit target must exist
	if t.Action.Emit != "" && !emitted[t.Action.Emit] {
		add("action.emit", ErrUnknownEmitTarget, fmt.Sprintf("no emitter provides event type %q", t.Action.Emit))
	}

	return errs
}

func expressionMessage(err error) string {
	var ce *expr.CompileError
	if errors.As(err, &ce) && ce.Column > 0 {
		return fmt.Sprintf("%s (column %d)", ce.Message, ce.Column)
	}
	return err.Error()
}
