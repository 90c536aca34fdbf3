package store

import (
	"fmt"

	"github.com/roach88/tripwire/internal/event"
)

// marshalPayload converts an event payload to canonical JSON TEXT for
// storage, so identical runs store byte-identical rows.
func marshalPayload(payload any) (string, error) {
	data, err := event.MarshalPayload(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}
