// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRunsInFIFOOrder(t *testing.T) {
	q := New(0)
	defer q.Close()

	var (
		mu  sync.Mutex
		got []int
	)
	var chans []<-chan struct{}
	for i := 0; i < 5; i++ {
		i := i
		chans = append(chans, q.Enqueue(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	for _, ch := range chans {
		<-ch
	}

	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestQueueEnforcesMinDelay(t *testing.T) {
	const (
		n     = 4
		delay = 25 * time.Millisecond
	)
	q := New(delay)
	defer q.Close()

	start := time.Now()
	var last <-chan struct{}
	for i := 0; i < n; i++ {
		last = q.Enqueue(func() {})
	}
	<-last
	elapsed := time.Since(start)

	// N dequeues are separated by at least (N-1) * delay.
	assert.GreaterOrEqual(t, elapsed, (n-1)*delay)
}

func TestDoReturnsResult(t *testing.T) {
	q := New(0)
	defer q.Close()

	got, err := Do(context.Background(), q, func() (string, error) {
		return "hits", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "hits", got)
}

func TestDoPropagatesError(t *testing.T) {
	q := New(0)
	defer q.Close()

	_, err := Do(context.Background(), q, func() (int, error) {
		return 0, fmt.Errorf("upstream unavailable")
	})
	assert.ErrorContains(t, err, "upstream unavailable")
}

func TestDoCancelledCallerStillRuns(t *testing.T) {
	q := New(10 * time.Millisecond)
	defer q.Close()

	// Occupy the worker so the second item sits in the queue.
	blocker := make(chan struct{})
	q.Enqueue(func() { <-blocker })

	ran := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Do(ctx, q, func() (int, error) {
		close(ran)
		return 1, nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	// The abandoned item still runs in its turn.
	close(blocker)
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("queued function never ran after caller cancellation")
	}
}

func TestCloseDrainsPendingItems(t *testing.T) {
	q := New(0)

	var (
		mu    sync.Mutex
		count int
	)
	for i := 0; i < 10; i++ {
		q.Enqueue(func() {
			mu.Lock()
			count++
			mu.Unlock()
		})
	}
	q.Close()

	assert.Equal(t, 10, count)
	assert.Equal(t, 0, q.Len())
}

func TestEnqueueAfterCloseRunsInline(t *testing.T) {
	q := New(0)
	q.Close()

	ran := false
	<-q.Enqueue(func() { ran = true })
	assert.True(t, ran)
}
