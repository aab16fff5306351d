// Package handoff provides a blocking queue that hands the most recently sent
// value from a producer to one of its waiting consumers.
//
// Unlike a FIFO, a Queue keeps only the latest pending value: a receiver that
// wakes after several sends gets the last one and the older ones are dropped.
// Each Send wakes exactly one waiting receiver, and a value sent while
// receivers are blocked belongs to them: a receiver that arrives later
// cannot take it.
package handoff

import (
	"context"
	"sync"
)

// Queue is a condition-variable backed handoff queue.
//
// All methods are safe for concurrent use by multiple goroutines. The zero
// value is not ready for use; construct via New.
type Queue[T any] struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items []T

	sent     uint64 // number of Send calls so far
	reserved bool   // the pending value was sent while receivers were blocked
	waiting  int
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	q := &Queue[T]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Send stores v and wakes one waiting receiver, if any. Send never blocks.
func (q *Queue[T]) Send(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.sent++
	if q.waiting > 0 {
		q.reserved = true
	}
	q.mu.Unlock()
	q.cond.Signal()
}

// Receive blocks until a value is available or ctx is done. It returns the
// most recently sent value and discards any older ones still buffered.
// A value sent while other receivers were already blocked is left to them.
// On cancellation it returns the zero value and ctx.Err(); a value that is
// already pending for the caller wins over a cancellation.
func (q *Queue[T]) Receive(ctx context.Context) (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) > 0 && !q.reserved {
		return q.drain(), nil
	}

	// Wake every waiter on cancellation; the ones that are not
	// cancelled re-check the predicate and go back to sleep.
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	since := q.sent
	q.waiting++
	defer func() { q.waiting-- }()
	for {
		// only a send made after we started waiting is ours.
		if len(q.items) > 0 && q.sent > since {
			return q.drain(), nil
		}
		if err := ctx.Err(); err != nil {
			var zero T
			return zero, err
		}
		if len(q.items) > 0 {
			// the signal was meant for an earlier receiver; pass it on.
			q.cond.Signal()
		}
		q.cond.Wait() // releases and re-acquires q.mu
	}
}

// TryReceive returns the latest value without blocking. ok is false when
// nothing is pending or the pending value belongs to blocked receivers.
func (q *Queue[T]) TryReceive() (v T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 || q.reserved {
		return v, false
	}
	return q.drain(), true
}

// Discard drops buffered values that no receiver is waiting for and reports
// whether anything was dropped. Values sent to blocked receivers are kept.
func (q *Queue[T]) Discard() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 || q.reserved {
		return false
	}
	clear(q.items)
	q.items = q.items[:0]
	return true
}

// Len returns the number of values buffered since the last receive.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Waiting returns the number of goroutines blocked in Receive.
func (q *Queue[T]) Waiting() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.waiting
}

// drain must be called with q.mu held and q.items non-empty.
func (q *Queue[T]) drain() T {
	v := q.items[len(q.items)-1]
	clear(q.items)
	q.items = q.items[:0]
	q.reserved = false
	return v
}
