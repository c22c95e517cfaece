package concurrency

import (
	"context"
	"sync"
	"sync/atomic"
)

const defaultWorkQueueCapacity = 256

// WorkQueue is an unbounded multi-producer multi-consumer queue. Push NEVER
// blocks and never drops: items that do not fit the channel buffer go to an
// overflow slice. Consumers may poll with TryPop or block with PopWithContext.
//
// Ordering is FIFO per buffer: the channel buffer is drained before overflow.
type WorkQueue[T any] struct {
	ch       chan T
	mu       sync.Mutex
	overflow []T

	pushCount atomic.Int64
	popCount  atomic.Int64
}

// NewWorkQueue creates a queue with the default fast-path capacity.
func NewWorkQueue[T any]() *WorkQueue[T] {
	return NewWorkQueueWithCapacity[T](defaultWorkQueueCapacity)
}

// NewWorkQueueWithCapacity creates a queue with the given fast-path capacity.
func NewWorkQueueWithCapacity[T any](capacity int) *WorkQueue[T] {
	if capacity <= 0 {
		capacity = defaultWorkQueueCapacity
	}
	return &WorkQueue[T]{ch: make(chan T, capacity)}
}

// Push adds an item. It never blocks.
func (q *WorkQueue[T]) Push(item T) {
	q.pushCount.Add(1)

	select {
	case q.ch <- item:
		return
	default:
	}

	q.mu.Lock()
	q.overflow = append(q.overflow, item)
	q.mu.Unlock()
}

// TryPop removes an item without blocking.
func (q *WorkQueue[T]) TryPop() (T, bool) {
	select {
	case item := <-q.ch:
		q.popCount.Add(1)
		return item, true
	default:
	}

	if item, ok := q.drainOverflow(); ok {
		q.popCount.Add(1)
		return item, true
	}

	var zero T
	return zero, false
}

// PopWithContext removes an item, blocking until one is available or ctx is done.
func (q *WorkQueue[T]) PopWithContext(ctx context.Context) (T, error) {
	if item, ok := q.TryPop(); ok {
		return item, nil
	}

	select {
	case item := <-q.ch:
		q.popCount.Add(1)
		return item, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (q *WorkQueue[T]) drainOverflow() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.overflow) == 0 {
		return zero, false
	}
	item := q.overflow[0]
	q.overflow[0] = zero
	q.overflow = q.overflow[1:]
	if len(q.overflow) == 0 {
		q.overflow = nil
	}
	return item, true
}

// Len returns the number of queued items.
func (q *WorkQueue[T]) Len() int {
	q.mu.Lock()
	n := len(q.ch) + len(q.overflow)
	q.mu.Unlock()
	return n
}

// Drain removes and returns every queued item.
func (q *WorkQueue[T]) Drain() []T {
	var items []T
	for {
		item, ok := q.TryPop()
		if !ok {
			return items
		}
		items = append(items, item)
	}
}

// WorkQueueStats contains queue counters.
type WorkQueueStats struct {
	Pending   int
	PushCount int64
	PopCount  int64
}

// Stats returns queue statistics.
func (q *WorkQueue[T]) Stats() WorkQueueStats {
	return WorkQueueStats{
		Pending:   q.Len(),
		PushCount: q.pushCount.Load(),
		PopCount:  q.popCount.Load(),
	}
}
