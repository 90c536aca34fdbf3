package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/tripwire/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - defaults to the latest run
	Trigger  string // optional - filter to a specific trigger
}

// TimelineEntry is a single line of the trace timeline: an event, or a
// trigger firing on the event just before it.
type TimelineEntry struct {
	Seq       int64           `json:"seq"`
	Kind      string          `json:"kind"` // "event" or "fired"
	Stream    string          `json:"stream,omitempty"`
	EventType string          `json:"event_type,omitempty"`
	Trigger   string          `json:"trigger,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	RunID    string          `json:"run_id"`
	App      string          `json:"app"`
	Timeline []TimelineEntry `json:"timeline"`
	Stats    TraceStats      `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Events   int            `json:"events"`
	Firings  int            `json:"firings"`
	Triggers map[string]int `json:"triggers"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show a recorded run",
		Long: `Show the timeline of a run recorded with 'tripwire run --db'.

Each event is listed in seq order, followed by the triggers that fired
on it. With --trigger, only that trigger's firings and the events that
caused them are shown.

Examples:
  tripwire trace --db ./traces.db
  tripwire trace --db ./traces.db --run 0192f6c1-...
  tripwire trace --db ./traces.db --trigger too-hot --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("db") {
				opts.Database = opts.settings().DB
			}
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace database")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to show (default: latest run)")
	cmd.Flags().StringVar(&opts.Trigger, "trigger", "", "filter to a specific trigger")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	if opts.Database == "" {
		return NewExitError(ExitCommandError, "no trace database: pass --db or set db in the config")
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var run store.Run
	if opts.RunID != "" {
		run, err = st.ReadRun(ctx, opts.RunID)
	} else {
		run, err = st.LatestRun(ctx)
	}
	if errors.Is(err, sql.ErrNoRows) {
		if opts.RunID != "" {
			return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", opts.RunID))
		}
		if opts.Format == "json" {
			return formatter.JSON(CLIResponse{Status: "ok", Data: TraceResult{Timeline: []TimelineEntry{}}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
		return nil
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	events, err := st.ReadEvents(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}
	firings, err := st.ReadFirings(ctx, run.ID, store.FiringFilter{Trigger: opts.Trigger})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read firings", err)
	}

	result := TraceResult{
		RunID:    run.ID,
		App:      run.App,
		Timeline: buildTimeline(events, firings, opts.Trigger != ""),
		Stats:    TraceStats{Triggers: make(map[string]int)},
	}
	for _, entry := range result.Timeline {
		switch entry.Kind {
		case "event":
			result.Stats.Events++
		case "fired":
			result.Stats.Firings++
			result.Stats.Triggers[entry.Trigger]++
		}
	}

	if opts.Format == "json" {
		return formatter.JSON(CLIResponse{Status: "ok", Data: result, RunID: run.ID})
	}
	return outputTraceText(formatter, result)
}

// buildTimeline interleaves events and firings: each event is followed by
// the firings it caused. When onlyFired is set, events without firings are
// dropped.
func buildTimeline(events []store.EventRecord, firings []store.Firing, onlyFired bool) []TimelineEntry {
	byEvent := make(map[int64][]store.Firing)
	for _, f := range firings {
		byEvent[f.EventSeq] = append(byEvent[f.EventSeq], f)
	}

	timeline := []TimelineEntry{}
	for _, ev := range events {
		fired := byEvent[ev.Seq]
		if onlyFired && len(fired) == 0 {
			continue
		}

		timeline = append(timeline, TimelineEntry{
			Seq:       ev.Seq,
			Kind:      "event",
			Stream:    ev.Stream,
			EventType: ev.Type,
			Payload:   ev.Payload,
		})
		for _, f := range fired {
			timeline = append(timeline, TimelineEntry{
				Seq:     ev.Seq,
				Kind:    "fired",
				Trigger: f.Trigger,
			})
		}
	}
	return timeline
}

// outputTraceText outputs the trace result as text.
func outputTraceText(formatter *OutputFormatter, result TraceResult) error {
	w := formatter.Writer

	formatter.Heading(fmt.Sprintf("Trace for run: %s", result.RunID))
	formatter.Detail("App: %s", result.App)
	fmt.Fprintln(w)

	formatter.Heading("=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, entry := range result.Timeline {
		switch entry.Kind {
		case "event":
			fmt.Fprintf(w, "  [%d] %s/%s %s\n", entry.Seq, entry.Stream, entry.EventType, string(entry.Payload))
		case "fired":
			fmt.Fprintf(w, "       -> %s\n", entry.Trigger)
		}
	}
	fmt.Fprintln(w)

	formatter.Heading("=== Stats ===")
	fmt.Fprintf(w, "  Events:  %d\n", result.Stats.Events)
	fmt.Fprintf(w, "  Firings: %d\n", result.Stats.Firings)
	names := make([]string, 0, len(result.Stats.Triggers))
	for name := range result.Stats.Triggers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "    %s: %d\n", name, result.Stats.Triggers[name])
	}

	return nil
}
