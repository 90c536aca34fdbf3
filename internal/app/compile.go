package app

import (
	"fmt"
	"log/slog"

	"github.com/roach88/tripwire/internal/engine"
	"github.com/roach88/tripwire/internal/event"
	"github.com/roach88/tripwire/internal/expr"
)

// Option configures Compile.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	scheduler Scheduler
}

// WithLogger sets the logger used by log actions and predicate failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithScheduler sets the timer source of script delays and interval
// streams. Default: WallClock.
func WithScheduler(s Scheduler) Option {
	return func(o *options) {
		if s != nil {
			o.scheduler = s
		}
	}
}

type compiledTrigger struct {
	index     int
	def       TriggerDef
	filter    *expr.Expr
	condition *expr.Expr
}

// label names the trigger in logs before the engine has named it.
func (c compiledTrigger) label() string {
	if c.def.Name != "" {
		return event.NormalizeName(c.def.Name)
	}
	return fmt.Sprintf("triggers[%d]", c.index)
}

// Compile prepares the definition for rt and returns its builder.
// Expressions are compiled once here, not on every pass.
func (d *Definition) Compile(rt *engine.Runtime, opts ...Option) (engine.Builder, error) {
	o := options{logger: slog.Default(), scheduler: WallClock{}}
	for _, opt := range opts {
		opt(&o)
	}

	triggers := make([]compiledTrigger, len(d.Triggers))
	for i, t := range d.Triggers {
		c := compiledTrigger{index: i, def: t}
		var err error
		if t.Filter != "" {
			if c.filter, err = expr.Compile(t.Filter); err != nil {
				return nil, engine.NewConfigError("Compile", i, t.Name, fmt.Sprintf("filter: %v", err))
			}
		}
		if t.Condition != "" {
			if c.condition, err = expr.Compile(t.Condition); err != nil {
				return nil, engine.NewConfigError("Compile", i, t.Name, fmt.Sprintf("condition: %v", err))
			}
		}
		triggers[i] = c
	}

	return func(p *engine.Pass) error {
		for i, e := range d.Emitters {
			if _, err := p.CreateEmitter(emitterSetup(e.Types)); err != nil {
				return fmt.Errorf("emitters[%d]: %w", i, err)
			}
		}

		for i, s := range d.Streams {
			config, err := streamConfig(rt, s, o.scheduler)
			if err != nil {
				return fmt.Errorf("streams[%d]: %w", i, err)
			}
			if _, err := p.UseStream(config); err != nil {
				return fmt.Errorf("streams[%d]: %w", i, err)
			}
		}

		for _, c := range triggers {
			if _, err := p.UseNamedTrigger(c.def.Name, c.setup(rt, o.logger)); err != nil {
				return fmt.Errorf("triggers[%d]: %w", c.index, err)
			}
		}
		return nil
	}, nil
}

func streamConfig(rt *engine.Runtime, s StreamDef, sched Scheduler) (engine.StreamConfig, error) {
	config := engine.StreamConfig{
		Name:       s.Name,
		Memory:     s.Memory,
		EventTypes: s.Types(),
	}

	switch s.Kind {
	case KindScript:
		config.Setup = scriptSetup(s.Emit, sched)
	case KindInterval:
		var t event.Type
		if len(s.EventTypes) > 0 {
			t = event.Type(s.EventTypes[0])
		}
		config.Setup = intervalSetup(t, s.Every, s.Count, sched)
	case KindEmitBridge:
		return rt.EmitStreamBridge(s.Name, s.Memory, s.Types()...), nil
	default:
		return config, engine.NewConfigError("UseStream", -1, s.Name, fmt.Sprintf("unknown stream kind %q", s.Kind))
	}
	return config, nil
}

func emitterSetup(types []string) engine.EmitterSetup {
	return func(emit func(event.Type, any)) []engine.EmitterEntry {
		entries := make([]engine.EmitterEntry, 0, len(types))
		for _, t := range types {
			et := event.Type(t)
			entries = append(entries, engine.EmitterEntry{
				Type: et,
				Fn:   func(payload any) { emit(et, payload) },
			})
		}
		return entries
	}
}

func (c compiledTrigger) setup(rt *engine.Runtime, logger *slog.Logger) engine.TriggerSetup {
	return func(p *engine.Pass) error {
		et := event.Type(c.def.Event)

		var err error
		if c.filter != nil {
			err = p.UseCustomEvent(et, c.filter.Predicate(logger))
		} else {
			err = p.UseEvent(et)
		}
		if err != nil {
			return err
		}

		if c.condition != nil {
			if err := p.UseCondition(c.condition.Predicate(logger)); err != nil {
				return err
			}
		}

		return p.UseAction(c.action(rt, logger))
	}
}

func (c compiledTrigger) action(rt *engine.Runtime, logger *slog.Logger) engine.Action {
	def := c.def.Action
	name := c.label()

	return func(ev event.Event) {
		if def.Log != "" {
			logger.Info(def.Log,
				"trigger", name,
				"event_type", ev.Type,
				"stream", ev.Stream,
				"seq", ev.Seq,
				"payload", ev.Payload,
			)
		}

		if def.Emit == "" {
			return
		}
		emit := rt.UseEmitter(event.Type(def.Emit))
		if emit == nil {
			logger.Warn("no emitter registered for action", "trigger", name, "event_type", def.Emit)
			return
		}
		payload := def.Payload
		if payload == nil {
			payload = ev.Payload
		}
		emit(payload)
	}
}
