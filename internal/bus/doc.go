// Package bus implements the push-based broadcast primitives the runtime
// composes its event graph from.
//
// Three Stream implementations exist:
//
//   - Source: a lazily started producer. The producer function runs when the
//     first subscriber attaches and its stop function runs when the last one
//     detaches. A Source created WithMemory caches the most recent event and
//     replays it to late subscribers before any live event.
//   - Merge: a dynamic fan-in. Sources can be added at any time; while the
//     merge has subscribers it holds one subscription per upstream.
//     Upstream completion never completes a Merge.
//   - Filtered: a per-subscriber predicate view over another Stream.
//
// Delivery is synchronous on the emitting goroutine, in emission order, to
// a snapshot of the subscribers taken at emission time. Subscriber lists
// are mutex-guarded, but the package assumes a single emitting goroutine
// per source for ordering guarantees.
//
// Taps (SetTap) observe every event passing through a Source or Merge
// without counting as a subscriber: a tap never starts a lazy Source.
package bus
