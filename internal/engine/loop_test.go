package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop_DrainFIFO(t *testing.T) {
	q := newLoop()

	var got []int
	for i := 1; i <= 3; i++ {
		i := i
		require.True(t, q.post(func() { got = append(got, i) }))
	}

	assert.Equal(t, 3, q.len())
	assert.Equal(t, 3, q.drain())
	assert.Equal(t, []int{1, 2, 3}, got)
	assert.Equal(t, 0, q.len())
}

func TestLoop_DrainRunsTasksPostedWhileDraining(t *testing.T) {
	q := newLoop()

	var got []string
	q.post(func() {
		got = append(got, "first")
		q.post(func() { got = append(got, "nested") })
	})
	q.post(func() { got = append(got, "second") })

	assert.Equal(t, 3, q.drain())
	assert.Equal(t, []string{"first", "second", "nested"}, got)
}

func TestLoop_PostAfterClose(t *testing.T) {
	q := newLoop()
	q.close()
	q.close() // idempotent

	assert.False(t, q.post(func() {}))
}

func TestLoop_PostNil(t *testing.T) {
	q := newLoop()
	assert.False(t, q.post(nil))
}

func TestLoop_RunStopsOnContext(t *testing.T) {
	q := newLoop()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- q.run(ctx) }()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("run did not stop on context cancellation")
	}
}

func TestLoop_RunExecutesPostsFromOtherGoroutines(t *testing.T) {
	q := newLoop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const producers = 10
	const perProducer = 50

	var mu sync.Mutex
	count := 0
	finished := make(chan struct{})

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.post(func() {
					mu.Lock()
					count++
					if count == producers*perProducer {
						close(finished)
					}
					mu.Unlock()
				})
			}
		}()
	}

	done := make(chan error, 1)
	go func() { done <- q.run(ctx) }()

	wg.Wait()
	select {
	case <-finished:
	case <-ctx.Done():
		t.Fatal("not every posted task ran")
	}

	q.close()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("run did not return after close")
	}
}
