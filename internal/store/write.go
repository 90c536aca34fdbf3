package store

import (
	"context"
	"fmt"

	"github.com/roach88/tripwire/internal/event"
)

// Run is one registration run.
type Run struct {
	ID         string `json:"id"`
	App        string `json:"app"`
	CreatedSeq int64  `json:"created_seq"`
}

// Firing is one trigger action invocation.
type Firing struct {
	RunID    string `json:"run_id"`
	Seq      int64  `json:"seq"` // Firing ordinal within the run
	Trigger  string `json:"trigger"`
	EventSeq int64  `json:"event_seq"`
}

// WriteRun inserts a run record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
func (s *Store) WriteRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, app, created_seq)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, run.ID, run.App, run.CreatedSeq)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// WriteEvent inserts an event observed in run runID.
// Uses ON CONFLICT DO NOTHING on (run_id, seq); rewriting an event is a
// no-op.
//
// Note: The run must exist (foreign key constraint).
func (s *Store) WriteEvent(ctx context.Context, runID string, ev event.Event) error {
	payload, err := marshalPayload(ev.Payload)
	if err != nil {
		return fmt.Errorf("write event %d: %w", ev.Seq, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (run_id, seq, stream, event_type, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, runID, ev.Seq, ev.Stream, string(ev.Type), payload)
	if err != nil {
		return fmt.Errorf("write event %d: %w", ev.Seq, err)
	}
	return nil
}

// WriteFiring inserts a firing and reports whether a new row was written.
// Uses ON CONFLICT(run_id, trigger_name, event_seq) DO NOTHING: a trigger
// fires at most once per event.
//
// Note: The run must exist (foreign key constraint).
func (s *Store) WriteFiring(ctx context.Context, f Firing) (inserted bool, err error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO firings (run_id, seq, trigger_name, event_seq)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, trigger_name, event_seq) DO NOTHING
	`, f.RunID, f.Seq, f.Trigger, f.EventSeq)
	if err != nil {
		return false, fmt.Errorf("write firing: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write firing: rows affected: %w", err)
	}
	return n > 0, nil
}
