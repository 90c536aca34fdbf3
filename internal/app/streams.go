package app

import (
	"sync"
	"time"

	"github.com/roach88/tripwire/internal/engine"
	"github.com/roach88/tripwire/internal/event"
)

// Scheduler runs fn once after d. Implementations may call fn on any
// goroutine; stream setups hand the result back to the event loop.
type Scheduler interface {
	After(d time.Duration, fn func()) (cancel func())
}

// WallClock schedules with real timers.
type WallClock struct{}

// After implements Scheduler with time.AfterFunc.
func (WallClock) After(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

// activation tracks one run of a stream setup so the teardown can stop
// pending timers and late callbacks become no-ops.
type activation struct {
	mu      sync.Mutex
	stopped bool
	cancel  func()
}

func (a *activation) schedule(s Scheduler, d time.Duration, fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	a.cancel = s.After(d, fn)
}

func (a *activation) live() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.stopped
}

func (a *activation) stop() {
	a.mu.Lock()
	a.stopped = true
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// scriptSetup emits the steps in order. Each step is posted to the loop,
// after its delay if it has one, and the next step is armed once it has
// been emitted.
func scriptSetup(steps []ScriptStep, sched Scheduler) engine.StreamSetup {
	return func(p engine.StreamParams) engine.Teardown {
		a := &activation{}

		var step func(i int)
		step = func(i int) {
			if i >= len(steps) {
				return
			}
			s := steps[i]
			emit := func() {
				p.Post(func() {
					if !a.live() {
						return
					}
					p.Emit(event.Type(s.Type), s.Payload)
					step(i + 1)
				})
			}
			if s.After > 0 {
				a.schedule(sched, s.After, emit)
				return
			}
			emit()
		}
		step(0)

		return a.stop
	}
}

// intervalSetup emits t with the tick number (1, 2, ...) every period and
// completes after count ticks when count is positive.
func intervalSetup(t event.Type, every time.Duration, count int, sched Scheduler) engine.StreamSetup {
	return func(p engine.StreamParams) engine.Teardown {
		a := &activation{}
		n := 0

		var arm func()
		arm = func() {
			a.schedule(sched, every, func() {
				p.Post(func() {
					if !a.live() {
						return
					}
					n++
					p.Emit(t, n)
					if count > 0 && n >= count {
						p.Done()
						return
					}
					arm()
				})
			})
		}
		arm()

		return a.stop
	}
}
