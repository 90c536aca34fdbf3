// Package engine implements the tripwire hook registry and stream
// composition runtime.
//
// A host hands Runtime.Register a builder function. The builder receives a
// Pass and issues hooks in order: UseStream declares event sources,
// UseTrigger opens a rule whose setup binds an event (UseEvent or
// UseCustomEvent), an optional condition (UseCondition) and an action
// (UseAction), and CreateEmitter contributes synthetic emit functions.
//
// ARCHITECTURE:
//
// Slot-Indexed Identity:
// The Runtime owns three slot registries (streams, triggers, emitters).
// Each Register call rewinds their cursors and each hook takes the next
// slot of its registry. A slot populated by an earlier pass is reused, so
// re-running an unchanged builder returns the same nodes and never wires a
// trigger twice. Identity is only stable if hooks are issued in the same
// order on every pass.
//
// Push-Based Composition:
// Stream nodes are lazy bus Sources: setup runs when the first subscriber
// attaches and the teardown runs when the last one leaves. Every stream is
// merged into the App Stream and every emitter into the Emit Stream. A
// trigger filters its upstream by event type, then by its condition, and
// subscribes its action exactly once.
//
// Event Loop:
// Delivery is synchronous on whichever goroutine emits. Producers running
// on their own goroutines (timers) hand emissions to the Runtime's loop
// with Post; Run and Drain execute posted callbacks FIFO on one goroutine.
//
// Logical Clock:
// Every emitted event is stamped with a monotonic seq from Clock.Next.
// Wall-clock time is never used for ordering.
//
// Registration errors are *Error values returned from the hook that raised
// them. Nothing on the emission path returns an error; an action that
// panics propagates to the caller of the emit.
package engine
