// Package store provides SQLite-backed storage for tripwire traces.
//
// A trace is the record of one registration run:
//   - Runs: one row per Register call (run id, app name)
//   - Events: every event observed on the App Stream
//   - Firings: every trigger action invocation, linked to its event
//
// # Ordering
//
// All ordering uses seq INTEGER from the runtime's logical clock, never
// timestamps. Reads are ORDER BY seq ASC with a deterministic tie-breaker,
// so the same run always reads back identically.
//
// # Idempotency
//
// Writes use ON CONFLICT DO NOTHING on the natural keys:
//   - events: (run_id, seq)
//   - firings: (run_id, trigger_name, event_seq), since a trigger fires at
//     most once per event
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Payloads are stored as canonical JSON (event.MarshalPayload).
package store
