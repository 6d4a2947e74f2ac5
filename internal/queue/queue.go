package queue

import "context"

// BlockingQueue is the operation surface every queue implementation in this
// repository provides. The bench harness stores implementations behind this
// interface at runtime, and each implementation package carries a `var _`
// assertion against it to catch signature drift at compile time.
type BlockingQueue[T any] interface {
	// Enqueue appends an item at the tail, blocking while the queue is full.
	// Cancelling ctx aborts the wait with an interruption error.
	Enqueue(ctx context.Context, item T) error

	// Dequeue removes and returns the oldest item, blocking while the queue
	// is empty. Cancelling ctx aborts the wait with an interruption error.
	Dequeue(ctx context.Context) (T, error)

	// TryEnqueue appends an item without blocking; it fails when full.
	TryEnqueue(item T) error

	// TryDequeue removes the oldest item without blocking; it fails when empty.
	TryDequeue() (T, error)

	// Peek returns the oldest item without removing it; it fails when empty.
	Peek() (T, error)

	// Len returns the number of queued items at the moment of the call.
	Len() int

	// Cap returns the fixed maximum capacity.
	Cap() int

	// IsEmpty reports whether the queue held no items at the moment of the call.
	IsEmpty() bool

	// IsFull reports whether the queue was at capacity at the moment of the call.
	IsFull() bool

	// Clear discards all queued items and wakes every blocked producer.
	Clear() error

	// Close permanently shuts the queue down and wakes every blocked waiter.
	Close() error

	// IsClosed reports whether Close has been called.
	IsClosed() bool
}
