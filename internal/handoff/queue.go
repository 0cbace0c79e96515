// Package handoff provides a bounded queue for passing frames between goroutines.
//
// Producers never block: when the queue is full the oldest item is evicted to
// make room, so consumers always see the freshest data available.
package handoff

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrTimedOut is returned by Pop when no item arrived within the timeout.
	ErrTimedOut = errors.New("handoff: pop timed out")
	// ErrClosed is returned by Pop once the queue is closed and drained.
	ErrClosed = errors.New("handoff: queue closed")
)

// Queue is a fixed-capacity FIFO with drop-oldest overflow.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	head   int
	count  int
	closed bool

	// ready holds at most one pending wakeup. A push that lands between a
	// consumer's empty check and its wait leaves the token behind.
	ready     chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	dropped atomic.Uint64
}

// New creates a queue holding at most capacity items (minimum 1).
func New[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{
		items: make([]T, capacity),
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Push appends item without blocking. When the queue is full the oldest item
// is evicted first and Push reports true. Items pushed after Close are discarded.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}

	evicted := false
	if q.count == len(q.items) {
		var zero T
		q.items[q.head] = zero
		q.head = (q.head + 1) % len(q.items)
		q.count--
		evicted = true
	}
	q.items[(q.head+q.count)%len(q.items)] = item
	q.count++
	q.mu.Unlock()

	if evicted {
		q.dropped.Add(1)
	}
	q.signal()
	return evicted
}

// Pop removes the oldest item. If the queue is empty it waits up to timeout
// for a push. A negative timeout waits indefinitely; zero does not wait.
func (q *Queue[T]) Pop(timeout time.Duration) (T, error) {
	if timeout < 0 {
		return q.wait(context.Background(), nil)
	}
	if timeout == 0 {
		item, ok, closed := q.tryPop()
		if ok {
			return item, nil
		}
		if closed {
			return item, ErrClosed
		}
		return item, ErrTimedOut
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	return q.wait(context.Background(), timer.C)
}

// PopContext is Pop bounded by ctx instead of a timeout.
func (q *Queue[T]) PopContext(ctx context.Context) (T, error) {
	return q.wait(ctx, nil)
}

func (q *Queue[T]) wait(ctx context.Context, expired <-chan time.Time) (T, error) {
	for {
		item, ok, closed := q.tryPop()
		if ok {
			return item, nil
		}
		if closed {
			return item, ErrClosed
		}

		select {
		case <-q.ready:
		case <-q.done:
		case <-expired:
			if item, ok, _ := q.tryPop(); ok {
				return item, nil
			}
			return item, ErrTimedOut
		case <-ctx.Done():
			return item, ctx.Err()
		}
	}
}

func (q *Queue[T]) tryPop() (item T, ok bool, closed bool) {
	q.mu.Lock()
	if q.count == 0 {
		closed = q.closed
		q.mu.Unlock()
		return item, false, closed
	}

	var zero T
	item = q.items[q.head]
	q.items[q.head] = zero
	q.head = (q.head + 1) % len(q.items)
	q.count--
	more := q.count > 0
	q.mu.Unlock()

	// Hand the wakeup on so another consumer drains the remainder.
	if more {
		q.signal()
	}
	return item, true, false
}

func (q *Queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Close stops accepting items and wakes all waiting consumers. Items already
// queued are still returned by Pop before it reports ErrClosed.
func (q *Queue[T]) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
		close(q.done)
	})
}

// Len returns the number of queued items. The value may be stale immediately.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the maximum number of items the queue holds.
func (q *Queue[T]) Cap() int {
	return len(q.items)
}

// Dropped returns the number of items evicted by overflow.
func (q *Queue[T]) Dropped() uint64 {
	return q.dropped.Load()
}
