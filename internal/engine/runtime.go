package engine

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/roach88/tripwire/internal/bus"
	"github.com/roach88/tripwire/internal/event"
	"github.com/roach88/tripwire/internal/slot"
)

// AppTarget is the debug listener target naming the App Stream.
// It is reserved and cannot be used as a stream name.
const AppTarget = "app"

// Runtime is the composition root. It exclusively owns the stream, trigger
// and emitter registries, the Emitter Map and the two merged streams.
//
// Thread-safety model:
//   - Register and the Pass hooks: one goroutine, one pass at a time
//   - Post: safe from any goroutine
//   - Run / Drain: one goroutine; emissions from posted callbacks are
//     delivered there
//   - UseEmitter: safe from any goroutine
//   - AddDebugListener: the registering goroutine; listeners may be
//     replaced while events flow
//
// Independent Runtimes share nothing.
type Runtime struct {
	logger   *slog.Logger
	observer Observer
	runIDs   RunIDGenerator
	clock    *Clock
	loop     *loop

	streams  *slot.Registry[*StreamNode]
	triggers *slot.Registry[*TriggerNode]
	emitters *slot.Registry[*EmitterNode]

	appStream  *bus.Merge
	emitStream *bus.Merge

	mu         sync.Mutex // Guards emitterMap and appTap
	emitterMap map[event.Type]EmitFunc
	appTap     bus.Tap

	pass *Pass // Active pass, nil between registrations
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithObserver sets the observer notified of trigger firings and stream
// errors.
func WithObserver(o Observer) Option {
	return func(r *Runtime) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithRunIDGenerator sets the run id source. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(r *Runtime) {
		if g != nil {
			r.runIDs = g
		}
	}
}

// WithClock sets the logical clock stamping events.
// Used to resume a trace from a known seq.
func WithClock(c *Clock) Option {
	return func(r *Runtime) {
		if c != nil {
			r.clock = c
		}
	}
}

// New creates an empty Runtime.
func New(opts ...Option) *Runtime {
	r := &Runtime{
		logger:     slog.Default(),
		observer:   NopObserver{},
		runIDs:     UUIDv7Generator{},
		clock:      NewClock(),
		loop:       newLoop(),
		streams:    slot.New[*StreamNode](),
		triggers:   slot.New[*TriggerNode](),
		emitters:   slot.New[*EmitterNode](),
		appStream:  bus.NewMerge(),
		emitStream: bus.NewMerge(),
		emitterMap: make(map[event.Type]EmitFunc),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Registration is the composed runtime state returned by Register. It is
// the only sanctioned way for a host to reach the graph.
type Registration struct {
	// RunID identifies this registration pass.
	RunID string

	// AppStream is the fan-in of every registered stream.
	AppStream *bus.Merge

	// EmitStream is the fan-in of every emitter's output.
	EmitStream *bus.Merge

	// Emitters is a copy of the Emitter Map at the end of the pass.
	Emitters map[event.Type]EmitFunc

	// Streams holds the stream nodes in slot order, duplicates removed.
	Streams []*StreamNode

	// Triggers holds the trigger nodes in slot order.
	Triggers []*TriggerNode
}

// Builder describes an application by issuing hooks on the pass.
type Builder func(p *Pass) error

// Register runs builder exactly once in a fresh composition pass.
//
// All three registry cursors are rewound first, so a builder that issues
// the same hooks in the same order as an earlier Register resolves to the
// same nodes. The first error returned by a hook (and passed back by the
// builder) aborts the registration.
//
// Calling Register from inside a builder is a context error.
func (r *Runtime) Register(builder Builder) (*Registration, error) {
	if builder == nil {
		return nil, NewConfigError("Register", -1, "", "builder is nil")
	}
	if r.pass != nil {
		return nil, NewContextError("Register", "a registration pass is already running")
	}

	r.streams.Reset()
	r.triggers.Reset()
	r.emitters.Reset()

	p := newPass(r, r.runIDs.Generate())
	r.pass = p
	defer func() {
		p.closed = true
		r.pass = nil
	}()

	r.logger.Debug("registration pass starting", "run_id", p.runID)

	if err := builder(p); err != nil {
		r.logger.Debug("registration pass failed", "run_id", p.runID, "error", err)
		return nil, fmt.Errorf("register %s: %w", p.runID, err)
	}

	reg := &Registration{
		RunID:      p.runID,
		AppStream:  r.appStream,
		EmitStream: r.emitStream,
		Emitters:   r.emitterSnapshot(),
		Streams:    r.streams.Unique(),
		Triggers:   r.triggers.Entries(),
	}

	r.logger.Debug("registration pass complete",
		"run_id", p.runID,
		"streams", len(reg.Streams),
		"triggers", len(reg.Triggers),
		"emitters", len(reg.Emitters),
	)

	return reg, nil
}

// Clock returns the logical clock stamping events.
func (r *Runtime) Clock() *Clock {
	return r.clock
}

// AppStream returns the fan-in of every registered stream.
func (r *Runtime) AppStream() *bus.Merge {
	return r.appStream
}

// EmitStream returns the fan-in of every emitter's output.
func (r *Runtime) EmitStream() *bus.Merge {
	return r.emitStream
}

// Post queues fn for the event loop. Safe from any goroutine.
// Returns false once the runtime is stopped.
func (r *Runtime) Post(fn func()) bool {
	return r.loop.post(fn)
}

// Run executes posted callbacks in FIFO order until ctx is done or Stop is
// called. Must be called from exactly one goroutine.
func (r *Runtime) Run(ctx context.Context) error {
	r.logger.Info("runtime loop starting")

	err := r.loop.run(ctx)
	if err != nil {
		r.logger.Info("runtime loop stopping: context done", "error", err)
		r.loop.close()
		return err
	}

	r.logger.Info("runtime loop stopping: stopped")
	return nil
}

// Drain runs every queued callback, including callbacks queued while
// draining, and returns how many ran. Intended for tests and for
// stepping a script to completion without Run.
func (r *Runtime) Drain() int {
	return r.loop.drain()
}

// Pending returns the number of queued callbacks.
func (r *Runtime) Pending() int {
	return r.loop.len()
}

// Stop closes the loop. Run returns and further Posts are refused.
func (r *Runtime) Stop() {
	r.loop.close()
}

func (r *Runtime) emitterSnapshot() map[event.Type]EmitFunc {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.emitterMap)
}

// Pass is the composition context of one Register call. It carries the
// active trigger scope and the trigger names claimed so far; the registry
// cursors live on the Runtime.
//
// A Pass is only valid while its builder runs. Hooks on a finished pass
// return a context error.
type Pass struct {
	rt     *Runtime
	runID  string
	closed bool

	scope        *triggerScope  // Open trigger setup, nil outside UseTrigger
	triggerNames map[string]int // Trigger name -> slot claimed this pass
}

func newPass(r *Runtime, runID string) *Pass {
	return &Pass{
		rt:           r,
		runID:        runID,
		triggerNames: make(map[string]int),
	}
}

// RunID returns the id of the registration this pass belongs to.
func (p *Pass) RunID() string {
	return p.runID
}

// Logger returns the runtime's logger.
func (p *Pass) Logger() *slog.Logger {
	return p.rt.logger
}

// Post queues fn on the runtime's event loop.
func (p *Pass) Post(fn func()) bool {
	return p.rt.Post(fn)
}

func (p *Pass) active(hook string) error {
	if p.closed {
		return NewContextError(hook, "registration pass has ended")
	}
	return nil
}
