package engine

import (
	"context"
	"sync"
)

// loop is the host event loop: a thread-safe FIFO of callbacks executed on
// a single goroutine.
//
// The queue is unbounded so a callback may post further callbacks (a timer
// re-arming itself, an action emitting into another stream) without
// blocking.
//
// Post is safe from any goroutine. Run and Drain must only be called from
// one goroutine at a time; every stream emission made from a callback is
// then delivered on that goroutine.
type loop struct {
	mu     sync.Mutex
	tasks  []func()
	closed bool
	signal chan struct{} // Signals task availability (buffered, size 1)
}

func newLoop() *loop {
	return &loop{
		tasks:  make([]func(), 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// post appends fn to the queue. Returns false if the loop is closed.
func (q *loop) post(fn func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || fn == nil {
		return false
	}

	q.tasks = append(q.tasks, fn)

	// Non-blocking: a buffer of 1 coalesces signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// tryNext removes and returns the front task without blocking.
func (q *loop) tryNext() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return nil, false
	}

	fn := q.tasks[0]
	// Release the closure for GC
	q.tasks[0] = nil

	if len(q.tasks) == 1 {
		q.tasks = q.tasks[:0]
	} else {
		q.tasks = q.tasks[1:]
	}

	return fn, true
}

func (q *loop) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *loop) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// close stops accepting tasks and wakes a blocked run.
func (q *loop) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}

// run executes tasks until ctx is done or the loop is closed.
// Tasks still queued at close are discarded.
func (q *loop) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if q.isClosed() {
			return nil
		}

		if fn, ok := q.tryNext(); ok {
			fn()
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.signal:
		}
	}
}

// drain runs queued tasks, including ones posted while draining, until the
// queue is empty. Returns the number of tasks run.
func (q *loop) drain() int {
	n := 0
	for {
		fn, ok := q.tryNext()
		if !ok {
			return n
		}
		fn()
		n++
	}
}
