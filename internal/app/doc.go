// Package app loads declarative tripwire applications.
//
// An app file is YAML listing streams, triggers and emitters:
//
//	name: thermostat
//	streams:
//	  - name: sensor
//	    kind: script
//	    memory: true
//	    event_types: [reading]
//	    emit:
//	      - { type: reading, payload: 19 }
//	      - { type: reading, payload: 23, after: 1s }
//	triggers:
//	  - name: too-hot
//	    event: reading
//	    condition: 'payload > 21'
//	    action: { log: "temperature high", emit: alarm }
//	emitters:
//	  - types: [alarm]
//
// Conditions and filters are CUE expressions (see package expr).
//
// Compile turns a Definition into an engine.Builder. Hooks are issued in a
// fixed order (emitters, then streams, then triggers, each in file order)
// so re-registering the same definition resolves to the same nodes.
package app
