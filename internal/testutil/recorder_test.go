package testutil

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tripwire/internal/event"
)

func TestRecorder_Timeline(t *testing.T) {
	r := NewRecorder()

	reading := event.Event{Type: "reading", Payload: 22, Stream: "sensor", Seq: 1}
	r.Listen(reading)
	r.OnTriggerFired("too-hot", reading)
	r.OnStreamError("sensor", errors.New("unplugged"))

	entries := r.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, EntryEvent, entries[0].Kind)
	assert.Equal(t, EntryFired, entries[1].Kind)
	assert.Equal(t, "too-hot", entries[1].Trigger)
	assert.Equal(t, EntryError, entries[2].Kind)
	assert.EqualError(t, entries[2].Err, "unplugged")

	assert.Equal(t, []event.Event{reading}, r.Events())
	assert.Equal(t, []string{"too-hot"}, r.Fired())
	assert.Equal(t, 1, r.FiredCount("too-hot"))
	assert.Equal(t, 0, r.FiredCount("other"))

	r.Reset()
	assert.Empty(t, r.Entries())
}

func TestFixedRunIDGenerator(t *testing.T) {
	assert.Equal(t, "run-7", NewFixedRunIDGenerator("run-7").Generate())
	assert.Equal(t, "run-7", NewFixedRunIDGenerator("run-7").Generate())
	assert.Equal(t, "test-run-default", NewFixedRunIDGenerator("").Generate())
}
