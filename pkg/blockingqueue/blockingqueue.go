// Package blockingqueue provides a bounded, mutex-and-condition-variable
// based FIFO queue for producer/consumer handoff between goroutines.
//
// The queue favors simplicity and auditability over raw throughput: a single
// mutex guards all state, and two condition variables partition wake-ups by
// intent (notEmpty for consumers, notFull for producers) so a dequeue never
// wakes another consumer and an enqueue never wakes another producer.
package blockingqueue

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/i5heu/GoBoundedQueue/internal/queue"
)

var _ queue.BlockingQueue[*int] = (*Queue[*int])(nil)

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 100

var (
	// ErrNilQueue is returned when an operation is invoked on a nil queue.
	ErrNilQueue = errors.New("blockingqueue: nil queue")

	// ErrNilItem is returned when a nil payload is enqueued. Only nil-able
	// kinds (pointer, interface, map, slice, chan, func) can trigger it.
	ErrNilItem = errors.New("blockingqueue: nil item")

	// ErrClosed is returned by every operation after Close, and to waiters
	// that were blocked when Close was called.
	ErrClosed = errors.New("blockingqueue: queue is closed")

	// ErrEmpty is returned by Peek and TryDequeue when the queue holds no items.
	ErrEmpty = errors.New("blockingqueue: queue is empty")

	// ErrFull is returned by TryEnqueue when the queue is at capacity.
	ErrFull = errors.New("blockingqueue: queue is full")

	// ErrInterrupted is returned when a blocked Enqueue or Dequeue is aborted
	// by context cancellation. The context's own error is wrapped, so
	// errors.Is matches both ErrInterrupted and e.g. context.Canceled.
	ErrInterrupted = errors.New("blockingqueue: wait interrupted")
)

// node is one link in the queue's chain. The queue exclusively owns its
// nodes; payloads are only borrowed and are handed back on dequeue.
type node[T any] struct {
	value T
	next  *node[T]
}

// Queue is a bounded blocking FIFO queue. The zero value is not usable;
// create instances with New.
//
// Invariants, holding whenever q.mu is released:
//
//	count == 0  <=>  head == nil  <=>  tail == nil
//	0 <= count <= capacity
//	walking head via next visits exactly count nodes and ends at tail
type Queue[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond // wait side: consumers blocked on an empty queue
	notFull  *sync.Cond // wait side: producers blocked on a full queue

	head     *node[T]
	tail     *node[T]
	count    int
	capacity int
	closed   bool
}

// New creates an empty queue holding at most capacity items.
// A non-positive capacity selects DefaultCapacity.
func New[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	q := &Queue[T]{capacity: capacity}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends item at the tail, blocking while the queue is full.
//
// The wait re-checks its predicate on every wake, so spurious wake-ups and
// wake-ups consumed by another producer are tolerated. Cancelling ctx while
// blocked returns ErrInterrupted (wrapping ctx.Err()) and leaves the queue
// untouched; the item is neither dropped nor retried. A nil ctx behaves like
// context.Background().
func (q *Queue[T]) Enqueue(ctx context.Context, item T) error {
	if q == nil {
		return ErrNilQueue
	}
	if isNil(item) {
		return ErrNilItem
	}
	if ctx == nil {
		ctx = context.Background()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if q.closed {
			return ErrClosed
		}
		if q.count < q.capacity {
			break
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrInterrupted, err)
		}
		q.wait(q.notFull, ctx)
	}

	q.append(item)
	q.notEmpty.Signal()
	return nil
}

// TryEnqueue appends item at the tail without blocking.
// It returns ErrFull when the queue is at capacity.
func (q *Queue[T]) TryEnqueue(item T) error {
	if q == nil {
		return ErrNilQueue
	}
	if isNil(item) {
		return ErrNilItem
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	if q.count == q.capacity {
		return ErrFull
	}

	q.append(item)
	q.notEmpty.Signal()
	return nil
}

// Dequeue removes and returns the oldest item, blocking while the queue is
// empty. Ownership of the payload passes back to the caller. Cancelling ctx
// while blocked returns ErrInterrupted with the queue left unmodified.
func (q *Queue[T]) Dequeue(ctx context.Context) (T, error) {
	var zero T
	if q == nil {
		return zero, ErrNilQueue
	}
	if ctx == nil {
		ctx = context.Background()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if q.closed {
			return zero, ErrClosed
		}
		if q.count > 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("%w: %w", ErrInterrupted, err)
		}
		q.wait(q.notEmpty, ctx)
	}

	v := q.detachHead()
	q.notFull.Signal()
	return v, nil
}

// TryDequeue removes and returns the oldest item without blocking.
// It returns ErrEmpty when the queue holds no items.
func (q *Queue[T]) TryDequeue() (T, error) {
	var zero T
	if q == nil {
		return zero, ErrNilQueue
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return zero, ErrClosed
	}
	if q.count == 0 {
		return zero, ErrEmpty
	}

	v := q.detachHead()
	q.notFull.Signal()
	return v, nil
}

// Peek returns the oldest item without removing it. It never blocks and
// returns ErrEmpty when the queue holds no items.
func (q *Queue[T]) Peek() (T, error) {
	var zero T
	if q == nil {
		return zero, ErrNilQueue
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return zero, ErrClosed
	}
	if q.count == 0 {
		return zero, ErrEmpty
	}
	return q.head.value, nil
}

// Len returns the number of queued items at the moment of the call.
// The result is advisory: concurrent operations may change the state before
// the caller acts on it. Callers that need atomicity must use the blocking
// operations directly. A nil queue reports 0.
func (q *Queue[T]) Len() int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the fixed maximum capacity.
func (q *Queue[T]) Cap() int {
	if q == nil {
		return 0
	}
	return q.capacity
}

// IsEmpty reports whether the queue held no items at the moment of the call.
// Advisory only, like Len. A nil queue reports true.
func (q *Queue[T]) IsEmpty() bool {
	return q.Len() == 0
}

// IsFull reports whether the queue was at capacity at the moment of the call.
// Advisory only, like Len. A nil queue reports false.
func (q *Queue[T]) IsFull() bool {
	if q == nil {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count == q.capacity
}

// Clear discards every queued item and wakes all blocked producers, since
// capacity has been freed for each of them. Payloads are dropped, not
// destroyed: the queue never owned them. Consumers are not woken; the queue
// is empty afterwards.
func (q *Queue[T]) Clear() error {
	if q == nil {
		return ErrNilQueue
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	q.releaseChain()
	q.notFull.Broadcast()
	return nil
}

// Close permanently shuts the queue down. The chain is released, every
// blocked producer and consumer is woken and fails with ErrClosed, and all
// subsequent operations return ErrClosed. Close is terminal: a second call
// returns ErrClosed. It is safe to call concurrently with other operations.
func (q *Queue[T]) Close() error {
	if q == nil {
		return ErrNilQueue
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	q.closed = true
	q.releaseChain()
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
	return nil
}

// IsClosed reports whether Close has been called.
func (q *Queue[T]) IsClosed() bool {
	if q == nil {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// append links a new node at the tail. Caller must hold q.mu and have
// verified count < capacity.
func (q *Queue[T]) append(item T) {
	n := &node[T]{value: item}
	if q.tail == nil {
		q.head = n
	} else {
		q.tail.next = n
	}
	q.tail = n
	q.count++
}

// detachHead unlinks and returns the head payload. Caller must hold q.mu and
// have verified count > 0. The node drops its references so the queue keeps
// nothing of the payload alive.
func (q *Queue[T]) detachHead() T {
	n := q.head
	q.head = n.next
	if q.head == nil {
		q.tail = nil
	}
	var zero T
	v := n.value
	n.value = zero
	n.next = nil
	q.count--
	return v
}

// releaseChain drops every node. Caller must hold q.mu.
func (q *Queue[T]) releaseChain() {
	var zero T
	for n := q.head; n != nil; {
		next := n.next
		n.value = zero
		n.next = nil
		n = next
	}
	q.head = nil
	q.tail = nil
	q.count = 0
}

// wait blocks on cond until signaled or ctx is cancelled. Caller must hold
// q.mu and must re-check its predicate on return: the wake may be spurious,
// another waiter may have consumed the state change, or the context may have
// fired. Cancellation is delivered by a short-lived watcher goroutine that
// broadcasts on the condition, the same way a signal handler would interrupt
// a native condition wait.
func (q *Queue[T]) wait(cond *sync.Cond, ctx context.Context) {
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

// isNil reports whether item is a nil pointer, interface, map, slice, chan
// or func. Values of non-nil-able kinds are never rejected.
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
