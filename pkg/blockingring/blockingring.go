// Package blockingring provides a bounded blocking FIFO queue backed by a
// preallocated ring buffer. It offers the same blocking contract and error
// values as package blockingqueue, but performs no per-element allocation:
// the buffer is sized to capacity once at creation and head/tail cursors
// wrap around it.
package blockingring

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/i5heu/GoBoundedQueue/internal/queue"
	"github.com/i5heu/GoBoundedQueue/pkg/blockingqueue"
)

var _ queue.BlockingQueue[*int] = (*RingQueue[*int])(nil)

// RingQueue is a bounded blocking FIFO queue over a fixed circular buffer.
// Create instances with New; the zero value is not usable.
type RingQueue[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	buf    []T
	head   int // index of the next item to dequeue
	tail   int // index of the next free slot
	count  int
	closed bool
}

// New creates an empty ring queue holding at most capacity items.
// A non-positive capacity selects blockingqueue.DefaultCapacity.
func New[T any](capacity int) *RingQueue[T] {
	if capacity <= 0 {
		capacity = blockingqueue.DefaultCapacity
	}
	q := &RingQueue[T]{buf: make([]T, capacity)}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends item at the tail, blocking while the queue is full.
// Cancelling ctx while blocked returns blockingqueue.ErrInterrupted and
// leaves the queue untouched. A nil ctx behaves like context.Background().
func (q *RingQueue[T]) Enqueue(ctx context.Context, item T) error {
	if q == nil {
		return blockingqueue.ErrNilQueue
	}
	if isNil(item) {
		return blockingqueue.ErrNilItem
	}
	if ctx == nil {
		ctx = context.Background()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if q.closed {
			return blockingqueue.ErrClosed
		}
		if q.count < len(q.buf) {
			break
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", blockingqueue.ErrInterrupted, err)
		}
		q.wait(q.notFull, ctx)
	}

	q.put(item)
	q.notEmpty.Signal()
	return nil
}

// TryEnqueue appends item without blocking; blockingqueue.ErrFull when at capacity.
func (q *RingQueue[T]) TryEnqueue(item T) error {
	if q == nil {
		return blockingqueue.ErrNilQueue
	}
	if isNil(item) {
		return blockingqueue.ErrNilItem
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return blockingqueue.ErrClosed
	}
	if q.count == len(q.buf) {
		return blockingqueue.ErrFull
	}

	q.put(item)
	q.notEmpty.Signal()
	return nil
}

// Dequeue removes and returns the oldest item, blocking while the queue is empty.
func (q *RingQueue[T]) Dequeue(ctx context.Context) (T, error) {
	var zero T
	if q == nil {
		return zero, blockingqueue.ErrNilQueue
	}
	if ctx == nil {
		ctx = context.Background()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if q.closed {
			return zero, blockingqueue.ErrClosed
		}
		if q.count > 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("%w: %w", blockingqueue.ErrInterrupted, err)
		}
		q.wait(q.notEmpty, ctx)
	}

	v := q.take()
	q.notFull.Signal()
	return v, nil
}

// TryDequeue removes the oldest item without blocking; blockingqueue.ErrEmpty when empty.
func (q *RingQueue[T]) TryDequeue() (T, error) {
	var zero T
	if q == nil {
		return zero, blockingqueue.ErrNilQueue
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return zero, blockingqueue.ErrClosed
	}
	if q.count == 0 {
		return zero, blockingqueue.ErrEmpty
	}

	v := q.take()
	q.notFull.Signal()
	return v, nil
}

// Peek returns the oldest item without removing it; it never blocks.
func (q *RingQueue[T]) Peek() (T, error) {
	var zero T
	if q == nil {
		return zero, blockingqueue.ErrNilQueue
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return zero, blockingqueue.ErrClosed
	}
	if q.count == 0 {
		return zero, blockingqueue.ErrEmpty
	}
	return q.buf[q.head], nil
}

// Len returns the number of queued items at the moment of the call.
// Advisory only: concurrent operations may change the state before the
// caller acts on the result.
func (q *RingQueue[T]) Len() int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the fixed maximum capacity.
func (q *RingQueue[T]) Cap() int {
	if q == nil {
		return 0
	}
	return len(q.buf)
}

// IsEmpty reports whether the queue held no items at the moment of the call.
func (q *RingQueue[T]) IsEmpty() bool {
	return q.Len() == 0
}

// IsFull reports whether the queue was at capacity at the moment of the call.
func (q *RingQueue[T]) IsFull() bool {
	if q == nil {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count == len(q.buf)
}

// Clear discards every queued item and wakes all blocked producers.
func (q *RingQueue[T]) Clear() error {
	if q == nil {
		return blockingqueue.ErrNilQueue
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return blockingqueue.ErrClosed
	}
	q.release()
	q.notFull.Broadcast()
	return nil
}

// Close permanently shuts the queue down and wakes every blocked waiter,
// which fails with blockingqueue.ErrClosed. A second Close returns
// blockingqueue.ErrClosed.
func (q *RingQueue[T]) Close() error {
	if q == nil {
		return blockingqueue.ErrNilQueue
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return blockingqueue.ErrClosed
	}
	q.closed = true
	q.release()
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
	return nil
}

// IsClosed reports whether Close has been called.
func (q *RingQueue[T]) IsClosed() bool {
	if q == nil {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// put stores item at the tail cursor. Caller must hold q.mu and have
// verified count < len(buf).
func (q *RingQueue[T]) put(item T) {
	q.buf[q.tail] = item
	q.tail++
	if q.tail == len(q.buf) {
		q.tail = 0
	}
	q.count++
}

// take removes the item at the head cursor, zeroing the slot so the buffer
// keeps no payload alive. Caller must hold q.mu and have verified count > 0.
func (q *RingQueue[T]) take() T {
	var zero T
	v := q.buf[q.head]
	q.buf[q.head] = zero
	q.head++
	if q.head == len(q.buf) {
		q.head = 0
	}
	q.count--
	return v
}

// release zeroes all occupied slots and resets the cursors. Caller must hold q.mu.
func (q *RingQueue[T]) release() {
	var zero T
	for i, n := q.head, q.count; n > 0; n-- {
		q.buf[i] = zero
		i++
		if i == len(q.buf) {
			i = 0
		}
	}
	q.head = 0
	q.tail = 0
	q.count = 0
}

// wait blocks on cond until signaled or ctx is cancelled; caller must hold
// q.mu and re-check its predicate on return. Same watcher pattern as
// blockingqueue: a goroutine broadcasts on the condition when ctx fires.
func (q *RingQueue[T]) wait(cond *sync.Cond, ctx context.Context) {
	if ctx.Done() == nil {
		cond.Wait()
		return
	}

	woken := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			q.mu.Lock()
			cond.Broadcast()
			q.mu.Unlock()
		case <-woken:
		}
	}()

	cond.Wait()
	close(woken)
}

// isNil reports whether item is a nil value of a nil-able kind.
func isNil(item any) bool {
	if item == nil {
		return true
	}
	switch rv := reflect.ValueOf(item); rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return rv.IsNil()
	}
	return false
}
