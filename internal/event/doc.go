// Package event provides the foundational event types for tripwire.
//
// Every other internal package imports event; event imports nothing
// internal. An Event is what flows through streams, merges, filters and
// into trigger actions:
//
//	event.Event{Type: "count", Payload: 4, Stream: "counter", Seq: 12}
//
// Stream names and explicit trigger names are normalised with NormalizeName
// so that "Door Sensor" and "door-sensor" refer to the same stream.
//
// Payloads are arbitrary Go values. MarshalPayload produces a canonical
// JSON encoding (sorted keys, NFC strings, no HTML escaping) used by the
// trace store and golden snapshots so identical payloads always serialise
// to identical bytes.
package event
