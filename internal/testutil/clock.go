package testutil

import (
	"sort"
	"sync"
	"time"
)

// VirtualClock is a manually advanced clock for scheduling timers in
// tests.
//
// Timers registered with After fire only when the test calls Step or
// Advance, in due-time order; timers due at the same instant fire in
// registration order. The same sequence of calls always produces the
// same firing order.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
// Callbacks run outside the lock and may register further timers.
type VirtualClock struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int64
	timers []*virtualTimer
}

type virtualTimer struct {
	due time.Duration
	seq int64
	fn  func()
}

// NewVirtualClock creates a clock at virtual time 0.
func NewVirtualClock() *VirtualClock {
	return &VirtualClock{}
}

// After schedules fn to run once the clock reaches now+d.
// The returned cancel removes the timer if it has not fired.
func (c *VirtualClock) After(d time.Duration, fn func()) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if d < 0 {
		d = 0
	}
	c.seq++
	t := &virtualTimer{due: c.now + d, seq: c.seq, fn: fn}
	c.timers = append(c.timers, t)
	sort.SliceStable(c.timers, func(i, j int) bool {
		if c.timers[i].due != c.timers[j].due {
			return c.timers[i].due < c.timers[j].due
		}
		return c.timers[i].seq < c.timers[j].seq
	})

	return func() { c.remove(t) }
}

// Now returns the elapsed virtual time.
func (c *VirtualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Pending returns the number of timers not yet fired.
func (c *VirtualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Step jumps to the earliest timer and fires it.
// Returns false if no timer is pending.
func (c *VirtualClock) Step() bool {
	c.mu.Lock()
	if len(c.timers) == 0 {
		c.mu.Unlock()
		return false
	}
	t := c.timers[0]
	c.timers = c.timers[1:]
	if t.due > c.now {
		c.now = t.due
	}
	c.mu.Unlock()

	t.fn()
	return true
}

// Advance moves the clock forward by d, firing every timer that falls due
// on the way. Returns the number of timers fired.
func (c *VirtualClock) Advance(d time.Duration) int {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()

	fired := 0
	for {
		c.mu.Lock()
		if len(c.timers) == 0 || c.timers[0].due > target {
			c.now = target
			c.mu.Unlock()
			return fired
		}
		c.mu.Unlock()

		c.Step()
		fired++
	}
}

func (c *VirtualClock) remove(t *virtualTimer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.timers {
		if existing == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return
		}
	}
}
