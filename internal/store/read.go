package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// EventRecord is a stored event. Payload is the canonical JSON written by
// WriteEvent.
type EventRecord struct {
	RunID   string          `json:"run_id"`
	Seq     int64           `json:"seq"`
	Stream  string          `json:"stream"`
	Type    string          `json:"event_type"`
	Payload json.RawMessage `json:"payload"`
}

// FiringFilter narrows ReadFirings. Zero value matches everything in the
// run.
type FiringFilter struct {
	Trigger string
}

// ReadRun returns a run by id.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	var run Run
	err := s.db.QueryRowContext(ctx, `
		SELECT id, app, created_seq FROM runs WHERE id = ?
	`, id).Scan(&run.ID, &run.App, &run.CreatedSeq)
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

// ReadRuns returns every run, oldest first.
//
// Returns an empty slice (not nil) if there are none.
func (s *Store) ReadRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, app, created_seq
		FROM runs
		ORDER BY created_seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.App, &run.CreatedSeq); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LatestRun returns the most recently created run.
// Returns sql.ErrNoRows if the store is empty.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	var run Run
	err := s.db.QueryRowContext(ctx, `
		SELECT id, app, created_seq
		FROM runs
		ORDER BY created_seq DESC, rowid DESC
		LIMIT 1
	`).Scan(&run.ID, &run.App, &run.CreatedSeq)
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

// ReadEvents returns the events of a run in seq order.
//
// Returns an empty slice (not nil) if the run has none.
func (s *Store) ReadEvents(ctx context.Context, runID string) ([]EventRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, stream, event_type, payload
		FROM events
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []EventRecord{}
	for rows.Next() {
		var (
			rec     EventRecord
			payload string
		)
		if err := rows.Scan(&rec.RunID, &rec.Seq, &rec.Stream, &rec.Type, &payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		rec.Payload = json.RawMessage(payload)
		events = append(events, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// ReadFirings returns the firings of a run ordered by the event that
// caused them, then by firing order.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ReadFirings(ctx context.Context, runID string, filter FiringFilter) ([]Firing, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if filter.Trigger != "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT run_id, seq, trigger_name, event_seq
			FROM firings
			WHERE run_id = ? AND trigger_name = ?
			ORDER BY event_seq ASC, seq ASC
		`, runID, filter.Trigger)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT run_id, seq, trigger_name, event_seq
			FROM firings
			WHERE run_id = ?
			ORDER BY event_seq ASC, seq ASC
		`, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("query firings: %w", err)
	}
	defer rows.Close()

	firings := []Firing{}
	for rows.Next() {
		var f Firing
		if err := rows.Scan(&f.RunID, &f.Seq, &f.Trigger, &f.EventSeq); err != nil {
			return nil, fmt.Errorf("scan firing: %w", err)
		}
		firings = append(firings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate firings: %w", err)
	}
	return firings, nil
}
