package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/roach88/tripwire/internal/event"
)

// Recorder writes a runtime's activity into the store. Use Listen as the
// App Stream debug listener and the Recorder itself as the engine
// Observer.
//
// Listener and observer callbacks cannot return errors, so write failures
// are logged and collected; check Err when the run ends.
type Recorder struct {
	store  *Store
	ctx    context.Context
	runID  string
	logger *slog.Logger

	mu      sync.Mutex
	firings int64
	errs    []error
}

// NewRecorder writes the run record and returns a recorder for it.
func NewRecorder(ctx context.Context, s *Store, run Run, logger *slog.Logger) (*Recorder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := s.WriteRun(ctx, run); err != nil {
		return nil, err
	}
	return &Recorder{store: s, ctx: ctx, runID: run.ID, logger: logger}, nil
}

// RunID returns the run being recorded.
func (r *Recorder) RunID() string {
	return r.runID
}

// Listen records an event.
func (r *Recorder) Listen(ev event.Event) {
	if err := r.store.WriteEvent(r.ctx, r.runID, ev); err != nil {
		r.fail(err)
	}
}

// OnTriggerFired implements engine.Observer.
func (r *Recorder) OnTriggerFired(trigger string, ev event.Event) {
	r.mu.Lock()
	r.firings++
	seq := r.firings
	r.mu.Unlock()

	_, err := r.store.WriteFiring(r.ctx, Firing{
		RunID:    r.runID,
		Seq:      seq,
		Trigger:  trigger,
		EventSeq: ev.Seq,
	})
	if err != nil {
		r.fail(err)
	}
}

// OnStreamError implements engine.Observer. Stream errors are not stored.
func (r *Recorder) OnStreamError(stream string, err error) {
	r.logger.Warn("stream error during recorded run", "run_id", r.runID, "stream", stream, "error", err)
}

// Err returns every write failure so far, joined.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return errors.Join(r.errs...)
}

func (r *Recorder) fail(err error) {
	r.logger.Error("trace write failed", "run_id", r.runID, "error", err)
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}
