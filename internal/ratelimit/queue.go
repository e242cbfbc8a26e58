// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ratelimit serializes outbound calls to a throughput-limited API.
// Implements: prd012-literature (R5);
//
//	docs/ARCHITECTURE § Literature Search.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Queue is an unbounded FIFO drained by a single worker goroutine. The
// worker enforces a minimum delay between consecutive dequeues, so N
// queued calls complete no faster than (N-1) * minDelay. Callers block on
// their own item's completion; many pipeline invocations can share one
// Queue and still get in-order, throttled delivery.
type Queue struct {
	minDelay time.Duration

	mu     sync.Mutex
	cond   *sync.Cond
	items  []*item
	closed bool

	stopped chan struct{}
}

type item struct {
	run  func()
	done chan struct{}
}

// New creates a Queue and starts its worker. minDelay is the minimum gap
// between consecutive dequeues.
func New(minDelay time.Duration) *Queue {
	q := &Queue{
		minDelay: minDelay,
		stopped:  make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.worker()
	return q
}

// Enqueue appends fn to the queue and returns a channel that is closed
// after fn has run. A closed queue runs fn immediately in the caller's
// goroutine so no work is silently dropped.
func (q *Queue) Enqueue(fn func()) <-chan struct{} {
	it := &item{run: fn, done: make(chan struct{})}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		fn()
		close(it.done)
		return it.done
	}
	q.items = append(q.items, it)
	q.mu.Unlock()
	q.cond.Signal()

	return it.done
}

// Len reports the number of queued, not-yet-run items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops the worker after the remaining items have drained.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	q.cond.Signal()
	<-q.stopped
}

func (q *Queue) worker() {
	var lastRun time.Time

	for {
		q.mu.Lock()
		for len(q.items) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.items) == 0 {
			q.mu.Unlock()
			close(q.stopped)
			return
		}
		it := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()

		if !lastRun.IsZero() {
			if wait := q.minDelay - time.Since(lastRun); wait > 0 {
				time.Sleep(wait)
			}
		}
		lastRun = time.Now()

		it.run()
		close(it.done)
	}
}

// Do enqueues fn and waits for its result. If ctx is cancelled first, Do
// returns ctx.Err() immediately, but the queued fn still runs in its turn:
// cancellation is cooperative and already-queued work completes (and may
// populate caches) rather than being torn down.
func Do[T any](ctx context.Context, q *Queue, fn func() (T, error)) (T, error) {
	var (
		result T
		err    error
	)
	done := q.Enqueue(func() {
		result, err = fn()
	})

	select {
	case <-done:
		return result, err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
