package engine

import "github.com/roach88/tripwire/internal/event"

// Observer is notified of runtime activity. Calls happen synchronously on
// the emitting goroutine; OnTriggerFired runs before the action.
type Observer interface {
	OnTriggerFired(trigger string, ev event.Event)
	OnStreamError(stream string, err error)
}

// NopObserver ignores everything.
type NopObserver struct{}

func (NopObserver) OnTriggerFired(string, event.Event) {}
func (NopObserver) OnStreamError(string, error)        {}

// Observers fans notifications out to several observers in order.
type Observers []Observer

func (os Observers) OnTriggerFired(trigger string, ev event.Event) {
	for _, o := range os {
		o.OnTriggerFired(trigger, ev)
	}
}

func (os Observers) OnStreamError(stream string, err error) {
	for _, o := range os {
		o.OnStreamError(stream, err)
	}
}
