package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tripwire/internal/event"
)

func greaterThan(n int) func(event.Event) bool {
	return func(ev event.Event) bool {
		v, ok := ev.Payload.(int)
		return ok && v > n
	}
}

func TestTrigger_FiresForEventsPassingCondition(t *testing.T) {
	rt := newTestRuntime(t)
	counter := &manualStream{}

	var fired []event.Event
	reg, err := rt.Register(func(p *Pass) error {
		if _, err := p.UseStream(counter.config("counter", false, "count")); err != nil {
			return err
		}
		_, err := p.UseTrigger(func(p *Pass) error {
			if err := p.UseEvent("count"); err != nil {
				return err
			}
			if err := p.UseCondition(greaterThan(3)); err != nil {
				return err
			}
			return p.UseAction(func(ev event.Event) { fired = append(fired, ev) })
		})
		return err
	})
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		counter.emit(t, "count", i)
	}

	require.Len(t, fired, 2)
	assert.Equal(t, event.Type("count"), fired[0].Type)
	assert.Equal(t, 4, fired[0].Payload)
	assert.Equal(t, event.Type("count"), fired[1].Type)
	assert.Equal(t, 5, fired[1].Payload)

	node := reg.Triggers[0]
	assert.Equal(t, StateWired, node.State())
	assert.Equal(t, "counter", node.Upstream())
	assert.Equal(t, event.Type("count"), node.EventType())
	assert.Equal(t, int64(2), node.Fired())
}

func TestTrigger_FiltersOtherEventTypes(t *testing.T) {
	rt := newTestRuntime(t)
	s := &manualStream{}

	var fired []any
	_, err := rt.Register(func(p *Pass) error {
		if _, err := p.UseStream(s.config("mixed", false, "a", "b")); err != nil {
			return err
		}
		_, err := p.UseTrigger(func(p *Pass) error {
			if err := p.UseEvent("b"); err != nil {
				return err
			}
			return p.UseAction(func(ev event.Event) { fired = append(fired, ev.Payload) })
		})
		return err
	})
	require.NoError(t, err)

	s.emit(t, "a", 1)
	s.emit(t, "b", 2)
	s.emit(t, "a", 3)

	assert.Equal(t, []any{2}, fired)
}

func TestTrigger_CustomEvent(t *testing.T) {
	rt := newTestRuntime(t)
	s := &manualStream{}

	var fired []any
	_, err := rt.Register(func(p *Pass) error {
		if _, err := p.UseStream(s.config("n", false, "n")); err != nil {
			return err
		}
		_, err := p.UseTrigger(func(p *Pass) error {
			even := func(ev event.Event) bool { return ev.Payload.(int)%2 == 0 }
			if err := p.UseCustomEvent("n", even); err != nil {
				return err
			}
			return p.UseAction(func(ev event.Event) { fired = append(fired, ev.Payload) })
		})
		return err
	})
	require.NoError(t, err)

	for i := 1; i <= 4; i++ {
		s.emit(t, "n", i)
	}
	assert.Equal(t, []any{2, 4}, fired)
}

func TestTrigger_FallsBackToAppStream(t *testing.T) {
	rt := newTestRuntime(t)
	late := &manualStream{}

	var fired []any
	reg, err := rt.Register(func(p *Pass) error {
		if _, err := p.UseTrigger(func(p *Pass) error {
			if err := p.UseEvent("ping"); err != nil {
				return err
			}
			return p.UseAction(func(ev event.Event) { fired = append(fired, ev.Payload) })
		}); err != nil {
			return err
		}
		_, err := p.UseStream(late.config("late", false, "ping"))
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, AppTarget, reg.Triggers[0].Upstream())
	assert.Equal(t, 1, late.starts, "app stream subscription starts streams added later")

	late.emit(t, "ping", "pong")
	assert.Equal(t, []any{"pong"}, fired)
}

func TestTrigger_PrefersEarliestDeclaringStream(t *testing.T) {
	rt := newTestRuntime(t)
	first, second := &manualStream{}, &manualStream{}

	var fired []string
	reg, err := rt.Register(func(p *Pass) error {
		if _, err := p.UseStream(first.config("first", false, "x")); err != nil {
			return err
		}
		if _, err := p.UseStream(second.config("second", false, "x")); err != nil {
			return err
		}
		_, err := p.UseTrigger(func(p *Pass) error {
			if err := p.UseEvent("x"); err != nil {
				return err
			}
			return p.UseAction(func(ev event.Event) { fired = append(fired, ev.Stream) })
		})
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, "first", reg.Triggers[0].Upstream())
	assert.Equal(t, 0, second.starts, "other streams stay idle")
	first.emit(t, "x", nil)
	assert.Equal(t, []string{"first"}, fired)
}

func TestTrigger_WiredOnceAcrossPasses(t *testing.T) {
	rt := newTestRuntime(t)
	s := &manualStream{}
	setups := 0

	fired := 0
	builder := func(p *Pass) error {
		if _, err := p.UseStream(s.config("s", false, "x")); err != nil {
			return err
		}
		_, err := p.UseTrigger(func(p *Pass) error {
			setups++
			if err := p.UseEvent("x"); err != nil {
				return err
			}
			return p.UseAction(func(event.Event) { fired++ })
		})
		return err
	}

	for i := 0; i < 3; i++ {
		_, err := rt.Register(builder)
		require.NoError(t, err)
	}

	s.emit(t, "x", 1)
	assert.Equal(t, 3, setups, "setup runs every pass")
	assert.Equal(t, 1, fired, "one subscription per trigger")
	assert.Equal(t, 1, s.starts)
}

func TestUseEvent_RequiresTriggerContext(t *testing.T) {
	rt := newTestRuntime(t)

	var outside, inside error
	_, err := rt.Register(func(p *Pass) error {
		outside = p.UseEvent("x")
		_, err := p.UseTrigger(func(p *Pass) error {
			inside = p.UseEvent("x")
			return p.UseAction(func(event.Event) {})
		})
		return err
	})
	require.NoError(t, err)

	assert.True(t, IsContextError(outside))
	assert.NoError(t, inside)
}

func TestRoleHooks_OutsideTrigger(t *testing.T) {
	rt := newTestRuntime(t)

	_, err := rt.Register(func(p *Pass) error {
		assert.True(t, IsContextError(p.UseCustomEvent("x", func(event.Event) bool { return true })))
		assert.True(t, IsContextError(p.UseCondition(func(event.Event) bool { return true })))
		assert.True(t, IsContextError(p.UseAction(func(event.Event) {})))
		return nil
	})
	require.NoError(t, err)
}

func TestUseTrigger_Nested(t *testing.T) {
	rt := newTestRuntime(t)

	_, err := rt.Register(func(p *Pass) error {
		_, err := p.UseTrigger(func(p *Pass) error {
			_, err := p.UseTrigger(func(*Pass) error { return nil })
			return err
		})
		return err
	})

	require.Error(t, err)
	assert.True(t, IsContextError(err))
}

func TestUseTrigger_ConfigErrors(t *testing.T) {
	noop := func(event.Event) {}
	always := func(event.Event) bool { return true }

	tests := []struct {
		name  string
		setup TriggerSetup
		msg   string
	}{
		{
			name:  "missing event",
			setup: func(p *Pass) error { return p.UseAction(noop) },
			msg:   "trigger has no event",
		},
		{
			name:  "missing action",
			setup: func(p *Pass) error { return p.UseEvent("x") },
			msg:   "trigger has no action",
		},
		{
			name: "second event",
			setup: func(p *Pass) error {
				if err := p.UseEvent("x"); err != nil {
					return err
				}
				return p.UseEvent("y")
			},
			msg: "already has an event",
		},
		{
			name: "second condition",
			setup: func(p *Pass) error {
				if err := p.UseCondition(always); err != nil {
					return err
				}
				return p.UseCondition(always)
			},
			msg: "already has a condition",
		},
		{
			name: "second action",
			setup: func(p *Pass) error {
				if err := p.UseAction(noop); err != nil {
					return err
				}
				return p.UseAction(noop)
			},
			msg: "already has an action",
		},
		{
			name:  "empty event type",
			setup: func(p *Pass) error { return p.UseEvent("") },
			msg:   "event type is required",
		},
		{
			name:  "nil setup",
			setup: nil,
			msg:   "trigger has no setup",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := newTestRuntime(t)
			_, err := rt.Register(func(p *Pass) error {
				_, err := p.UseTrigger(tt.setup)
				return err
			})
			require.Error(t, err)
			assert.True(t, IsConfigError(err), "got %v", err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestUseNamedTrigger_Duplicate(t *testing.T) {
	rt := newTestRuntime(t)
	setup := func(p *Pass) error {
		if err := p.UseEvent("x"); err != nil {
			return err
		}
		return p.UseAction(func(event.Event) {})
	}

	_, err := rt.Register(func(p *Pass) error {
		if _, err := p.UseNamedTrigger("Too Hot", setup); err != nil {
			return err
		}
		_, err := p.UseNamedTrigger("too-hot", setup)
		return err
	})

	require.Error(t, err)
	assert.True(t, IsDuplicateTriggerError(err))
	assert.Contains(t, err.Error(), "name=too-hot, slot=1")
}

func TestUseNamedTrigger_DuplicateLeavesSlotFree(t *testing.T) {
	rt := newTestRuntime(t)
	setup := func(p *Pass) error {
		if err := p.UseEvent("x"); err != nil {
			return err
		}
		return p.UseAction(func(event.Event) {})
	}
	builder := func(first, second string) Builder {
		return func(p *Pass) error {
			if _, err := p.UseNamedTrigger(first, setup); err != nil {
				return err
			}
			_, err := p.UseNamedTrigger(second, setup)
			return err
		}
	}

	_, err := rt.Register(builder("a", "a"))
	require.Error(t, err)
	assert.True(t, IsDuplicateTriggerError(err))

	reg, err := rt.Register(builder("a", "b"))
	require.NoError(t, err)
	require.Len(t, reg.Triggers, 2)
	assert.Equal(t, "a", reg.Triggers[0].Name)
	assert.Equal(t, "b", reg.Triggers[1].Name)
	assert.Equal(t, 1, reg.Triggers[1].Index)
}

func TestUseNamedTrigger_SameNameAcrossPassesIsFine(t *testing.T) {
	rt := newTestRuntime(t)
	builder := func(p *Pass) error {
		_, err := p.UseNamedTrigger("alarm", func(p *Pass) error {
			if err := p.UseEvent("x"); err != nil {
				return err
			}
			return p.UseAction(func(event.Event) {})
		})
		return err
	}

	_, err := rt.Register(builder)
	require.NoError(t, err)
	reg, err := rt.Register(builder)
	require.NoError(t, err)
	assert.Equal(t, "alarm", reg.Triggers[0].Name)
}

func TestTrigger_ObserverRunsBeforeAction(t *testing.T) {
	obs := &recordingObserver{}
	rt := newTestRuntime(t, WithObserver(obs))
	s := &manualStream{}

	var seenAtAction int
	_, err := rt.Register(func(p *Pass) error {
		if _, err := p.UseStream(s.config("s", false, "x")); err != nil {
			return err
		}
		_, err := p.UseNamedTrigger("watch", func(p *Pass) error {
			if err := p.UseEvent("x"); err != nil {
				return err
			}
			return p.UseAction(func(event.Event) { seenAtAction = len(obs.fired) })
		})
		return err
	})
	require.NoError(t, err)

	s.emit(t, "x", 1)
	assert.Equal(t, []string{"watch"}, obs.fired)
	assert.Equal(t, 1, seenAtAction)
}

func TestTrigger_ActionPanicPropagates(t *testing.T) {
	rt := newTestRuntime(t)
	s := &manualStream{}

	_, err := rt.Register(func(p *Pass) error {
		if _, err := p.UseStream(s.config("s", false, "x")); err != nil {
			return err
		}
		_, err := p.UseTrigger(func(p *Pass) error {
			if err := p.UseEvent("x"); err != nil {
				return err
			}
			return p.UseAction(func(event.Event) { panic("action failed") })
		})
		return err
	})
	require.NoError(t, err)

	assert.PanicsWithValue(t, "action failed", func() { s.emit(t, "x", 1) })
}

func TestTriggerState_String(t *testing.T) {
	assert.Equal(t, "INIT", StateInit.String())
	assert.Equal(t, "CONDITION_BOUND", StateConditionBound.String())
	assert.Equal(t, "WIRED", StateWired.String())
	assert.Equal(t, "TriggerState(9)", TriggerState(9).String())
}
