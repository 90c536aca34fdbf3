package engine

import (
	"errors"
	"fmt"
)

// Error represents a registration error raised by a hook.
//
// All registration errors are synchronous: they are returned from the hook
// that detected them and abort the current pass when the builder returns
// them. Nothing on the emission path produces an Error.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Hook is the hook that raised the error (e.g. "UseEvent").
	Hook string

	// Slot is the registry slot involved, -1 if none.
	Slot int

	// Name is the stream, trigger or target name involved, if any.
	Name string

	// Details contains additional context.
	Details map[string]string
}

// ErrorCode categorizes registration errors.
type ErrorCode string

const (
	// ErrCodeConfig indicates a malformed stream, trigger or emitter configuration.
	ErrCodeConfig ErrorCode = "CONFIG"

	// ErrCodeContext indicates a hook was used outside the context it requires.
	ErrCodeContext ErrorCode = "CONTEXT"

	// ErrCodeDuplicateTrigger indicates two slots resolved to the same trigger name in one pass.
	ErrCodeDuplicateTrigger ErrorCode = "DUPLICATE_TRIGGER"

	// ErrCodeLookup indicates a debug listener target does not exist.
	ErrCodeLookup ErrorCode = "LOOKUP"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Hook != "" {
		msg = fmt.Sprintf("%s: %s", e.Hook, msg)
	}
	switch {
	case e.Name != "" && e.Slot >= 0:
		return fmt.Sprintf("%s (name=%s, slot=%d)", msg, e.Name, e.Slot)
	case e.Name != "":
		return fmt.Sprintf("%s (name=%s)", msg, e.Name)
	case e.Slot >= 0:
		return fmt.Sprintf("%s (slot=%d)", msg, e.Slot)
	}
	return msg
}

// Is matches another *Error with the same code, so callers can write
// errors.Is(err, &engine.Error{Code: engine.ErrCodeLookup}).
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsConfigError reports whether err is a configuration error.
// Uses errors.As to handle wrapped errors.
func IsConfigError(err error) bool {
	return hasCode(err, ErrCodeConfig)
}

// IsContextError reports whether err is a hook-context error.
func IsContextError(err error) bool {
	return hasCode(err, ErrCodeContext)
}

// IsDuplicateTriggerError reports whether err is a duplicate trigger name error.
func IsDuplicateTriggerError(err error) bool {
	return hasCode(err, ErrCodeDuplicateTrigger)
}

// IsLookupError reports whether err is a debug-target lookup error.
func IsLookupError(err error) bool {
	return hasCode(err, ErrCodeLookup)
}

// NewConfigError creates an Error for malformed configuration.
func NewConfigError(hook string, slot int, name, message string) *Error {
	return &Error{Code: ErrCodeConfig, Hook: hook, Slot: slot, Name: name, Message: message}
}

// NewContextError creates an Error for a hook used outside its context.
func NewContextError(hook, message string) *Error {
	return &Error{Code: ErrCodeContext, Hook: hook, Slot: -1, Message: message}
}

// NewDuplicateTriggerError creates an Error for a trigger name claimed by two slots.
func NewDuplicateTriggerError(name string, firstSlot, slot int) *Error {
	return &Error{
		Code:    ErrCodeDuplicateTrigger,
		Hook:    "UseTrigger",
		Message: fmt.Sprintf("trigger name already used by slot %d in this pass", firstSlot),
		Slot:    slot,
		Name:    name,
		Details: map[string]string{
			"first_slot": fmt.Sprintf("%d", firstSlot),
		},
	}
}

// NewLookupError creates an Error for an unknown debug listener target.
func NewLookupError(target string) *Error {
	return &Error{
		Code:    ErrCodeLookup,
		Hook:    "AddDebugListener",
		Slot:    -1,
		Name:    target,
		Message: fmt.Sprintf("no stream registered with this name; use %q to observe every stream", AppTarget),
	}
}
