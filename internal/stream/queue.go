// Package stream runs the per-connection push loop: an authentication gate
// followed by a producer and a consumer sharing a bounded queue.
package stream

import (
	"context"
	"sync"
)

// Queue is a bounded FIFO that evicts its oldest entry instead of blocking
// when full. Pop blocks until an item is available.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	size  int
	wake  chan struct{}
}

// NewQueue creates a queue holding at most size items. size must be
// positive.
func NewQueue[T any](size int) *Queue[T] {
	if size <= 0 {
		panic("stream: queue size must be positive")
	}
	return &Queue[T]{
		items: make([]T, 0, size),
		size:  size,
		wake:  make(chan struct{}, 1),
	}
}

// Push appends v. When the queue is full the oldest item is removed first
// and returned with dropped set.
func (q *Queue[T]) Push(v T) (evicted T, dropped bool) {
	q.mu.Lock()
	if len(q.items) == q.size {
		evicted = q.items[0]
		var zero T
		q.items[0] = zero
		q.items = q.items[1:]
		dropped = true
	}
	q.items = append(q.items, v)
	q.mu.Unlock()

	q.signal()
	return evicted, dropped
}

// Pop removes and returns the oldest item, waiting until one exists or ctx
// is done.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			v := q.items[0]
			var zero T
			q.items[0] = zero
			q.items = q.items[1:]
			more := len(q.items) > 0
			q.mu.Unlock()
			if more {
				q.signal()
			}
			return v, nil
		}
		q.mu.Unlock()

		select {
		case <-q.wake:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// Len returns the current number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int {
	return q.size
}

func (q *Queue[T]) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
