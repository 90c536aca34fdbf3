package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tripwire/internal/app"
	"github.com/roach88/tripwire/internal/engine"
	"github.com/roach88/tripwire/internal/event"
	"github.com/roach88/tripwire/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	For      time.Duration

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// RunSummary is printed when a run ends.
type RunSummary struct {
	RunID    string         `json:"run_id"`
	App      string         `json:"app"`
	Database string         `json:"database,omitempty"`
	Events   int            `json:"events"`
	Firings  map[string]int `json:"firings"`
	Errors   []string       `json:"stream_errors,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <app.yaml>",
		Short: "Run an app",
		Long: `Register an app and run its event loop.

Every event on the App Stream is logged at debug level and, with --db,
recorded together with trigger firings into a SQLite trace database
(created if it doesn't exist). The run ends after --for, or on Ctrl-C.

Example:
  tripwire run ./thermostat.yaml --for 10s
  tripwire run ./thermostat.yaml --db ./traces.db --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.settings()
			if !cmd.Flags().Changed("db") {
				opts.Database = cfg.DB
			}
			if !cmd.Flags().Changed("for") {
				opts.For = cfg.RunFor
			}
			return runApp(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace database (default: no recording)")
	cmd.Flags().DurationVar(&opts.For, "for", 0, "stop after this long (default: until interrupted)")

	return cmd
}

// runTally counts what a run produced.
type runTally struct {
	mu      sync.Mutex
	events  int
	firings map[string]int
	errors  []string
}

func (t *runTally) Listen(event.Event) {
	t.mu.Lock()
	t.events++
	t.mu.Unlock()
}

func (t *runTally) OnTriggerFired(trigger string, _ event.Event) {
	t.mu.Lock()
	t.firings[trigger]++
	t.mu.Unlock()
}

func (t *runTally) OnStreamError(stream string, err error) {
	t.mu.Lock()
	t.errors = append(t.errors, fmt.Sprintf("%s: %v", stream, err))
	t.mu.Unlock()
}

func runApp(opts *RunOptions, path string, cmd *cobra.Command) error {
	if opts.For < 0 {
		return NewExitError(ExitCommandError, "--for must not be negative")
	}

	logger := opts.logger(cmd.ErrOrStderr())
	formatter := opts.formatter(cmd)

	def, err := app.Load(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load app", err)
	}
	logger.Info("app loaded", "app", def.Name, "path", path)

	runIDs := opts.RunIDs
	if runIDs == nil {
		runIDs = engine.UUIDv7Generator{}
	}
	runID := runIDs.Generate()

	// Parent context for signals and --for; use the command's context if set
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.For > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.For)
		defer cancel()
	}

	tally := &runTally{firings: make(map[string]int)}
	observers := engine.Observers{tally}
	listeners := []func(event.Event){tally.Listen}

	var recorder *store.Recorder
	if opts.Database != "" {
		logger.Info("opening database", "path", opts.Database)
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()

		recorder, err = store.NewRecorder(ctx, st, store.Run{ID: runID, App: def.Name}, logger)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
		observers = append(observers, recorder)
		listeners = append(listeners, recorder.Listen)
	}

	rt := engine.New(
		engine.WithLogger(logger),
		engine.WithObserver(observers),
		engine.WithRunIDGenerator(engine.NewFixedGenerator(runID)),
	)

	builder, err := def.Compile(rt, app.WithLogger(logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to compile app", err)
	}
	if _, err := rt.Register(builder); err != nil {
		return WrapExitError(ExitCommandError, "failed to register app", err)
	}

	err = rt.AddDebugListener(engine.AppTarget, func(ev event.Event) {
		logger.Debug("event",
			"seq", ev.Seq,
			"stream", ev.Stream,
			"event_type", ev.Type,
			"payload", ev.Payload,
		)
		for _, l := range listeners {
			l(ev)
		}
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to tap app stream", err)
	}

	if opts.Format != "json" {
		formatter.Heading(fmt.Sprintf("Running %s", def.Name))
		formatter.Detail("run %s", runID)
		if opts.For == 0 {
			formatter.Detail("Press Ctrl-C to stop.")
		}
	}

	if err := rt.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "runtime error", err)
	}
	rt.Stop()
	logger.Info("runtime stopped", "run_id", runID)

	summary := tally.summary(runID, def.Name, opts.Database)
	if recorder != nil {
		if err := recorder.Err(); err != nil {
			_ = outputRunSummary(formatter, summary)
			return WrapExitError(ExitFailure, "trace recording failed", err)
		}
	}
	return outputRunSummary(formatter, summary)
}

func (t *runTally) summary(runID, appName, db string) RunSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	firings := make(map[string]int, len(t.firings))
	for k, v := range t.firings {
		firings[k] = v
	}
	return RunSummary{
		RunID:    runID,
		App:      appName,
		Database: db,
		Events:   t.events,
		Firings:  firings,
		Errors:   append([]string(nil), t.errors...),
	}
}

func outputRunSummary(formatter *OutputFormatter, s RunSummary) error {
	if formatter.Format == "json" {
		return formatter.JSON(CLIResponse{Status: "ok", Data: s, RunID: s.RunID})
	}

	formatter.Heading("Summary")
	formatter.Detail("Events:  %d", s.Events)
	names := make([]string, 0, len(s.Firings))
	for name := range s.Firings {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		formatter.Detail("Fired:   %s x%d", name, s.Firings[name])
	}
	for _, e := range s.Errors {
		formatter.Fail("stream error %s", e)
	}
	if s.Database != "" {
		formatter.Detail("Trace:   %s (run %s)", s.Database, s.RunID)
	}
	return nil
}

var _ engine.Observer = (*runTally)(nil)
