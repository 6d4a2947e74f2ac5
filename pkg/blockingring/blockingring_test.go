package blockingring

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i5heu/GoBoundedQueue/pkg/blockingqueue"
)

func TestNewDefaultCapacity(t *testing.T) {
	q := New[int](0)
	assert.Equal(t, blockingqueue.DefaultCapacity, q.Cap())

	q = New[int](3)
	assert.Equal(t, 3, q.Cap())
	assert.True(t, q.IsEmpty())
}

// TestFIFOOrderWithWraparound drives the cursors past the end of the buffer
// several times and checks strict FIFO order throughout.
func TestFIFOOrderWithWraparound(t *testing.T) {
	q := New[int](4)
	ctx := context.Background()

	next := 0
	expect := 0
	for round := 0; round < 10; round++ {
		for q.Len() < q.Cap() {
			require.NoError(t, q.Enqueue(ctx, next))
			next++
		}
		// Drain half, keeping the rest queued across the wrap.
		for i := 0; i < q.Cap()/2; i++ {
			v, err := q.Dequeue(ctx)
			require.NoError(t, err)
			assert.Equal(t, expect, v)
			expect++
		}
	}
	for !q.IsEmpty() {
		v, err := q.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, expect, v)
		expect++
	}
	assert.Equal(t, next, expect)
}

func TestTryVariantsAndPeek(t *testing.T) {
	q := New[string](2)

	_, err := q.TryDequeue()
	assert.ErrorIs(t, err, blockingqueue.ErrEmpty)
	_, err = q.Peek()
	assert.ErrorIs(t, err, blockingqueue.ErrEmpty)

	require.NoError(t, q.TryEnqueue("a"))
	require.NoError(t, q.TryEnqueue("b"))
	assert.ErrorIs(t, q.TryEnqueue("c"), blockingqueue.ErrFull)

	v, err := q.Peek()
	require.NoError(t, err)
	assert.Equal(t, "a", v)
	assert.Equal(t, 2, q.Len())
}

func TestNilChecks(t *testing.T) {
	q := New[*int](2)
	assert.ErrorIs(t, q.TryEnqueue(nil), blockingqueue.ErrNilItem)

	var nilQ *RingQueue[int]
	assert.ErrorIs(t, nilQ.TryEnqueue(1), blockingqueue.ErrNilQueue)
	_, err := nilQ.TryDequeue()
	assert.ErrorIs(t, err, blockingqueue.ErrNilQueue)
}

func TestBackpressure(t *testing.T) {
	q := New[int](1)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, 1))

	enqueued := make(chan error, 1)
	go func() {
		enqueued <- q.Enqueue(ctx, 2)
	}()

	select {
	case err := <-enqueued:
		t.Fatalf("enqueue on a full ring returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	v, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	require.NoError(t, <-enqueued)
	v, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestInterruptedWait(t *testing.T) {
	q := New[int](2)
	ctx, cancel := context.WithCancel(context.Background())

	result := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(ctx)
		result <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-result:
		assert.ErrorIs(t, err, blockingqueue.ErrInterrupted)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled dequeue did not return")
	}
}

func TestClearWakesBlockedProducers(t *testing.T) {
	q := New[int](1)
	require.NoError(t, q.TryEnqueue(1))

	enqueued := make(chan error, 1)
	go func() {
		enqueued <- q.Enqueue(context.Background(), 2)
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Clear())

	select {
	case err := <-enqueued:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Clear did not wake the blocked producer")
	}

	v, err := q.TryDequeue()
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestClose(t *testing.T) {
	q := New[int](2)
	require.NoError(t, q.TryEnqueue(1))
	require.NoError(t, q.Close())
	assert.True(t, q.IsClosed())
	assert.Equal(t, 0, q.Len())

	assert.ErrorIs(t, q.TryEnqueue(2), blockingqueue.ErrClosed)
	_, err := q.TryDequeue()
	assert.ErrorIs(t, err, blockingqueue.ErrClosed)
	assert.ErrorIs(t, q.Close(), blockingqueue.ErrClosed)
}

func TestConcurrentNoLossNoDuplication(t *testing.T) {
	const (
		numProducers     = 4
		numConsumers     = 4
		itemsPerProducer = 500
		totalItems       = numProducers * itemsPerProducer
	)

	q := New[int](32)
	ctx := context.Background()

	var prodWg sync.WaitGroup
	prodWg.Add(numProducers)
	for p := 0; p < numProducers; p++ {
		go func(p int) {
			defer prodWg.Done()
			for i := 0; i < itemsPerProducer; i++ {
				if err := q.Enqueue(ctx, p*itemsPerProducer+i); err != nil {
					t.Errorf("producer %d: %v", p, err)
					return
				}
			}
		}(p)
	}

	var mu sync.Mutex
	seen := make(map[int]int, totalItems)
	reserved := 0

	var consWg sync.WaitGroup
	consWg.Add(numConsumers)
	for c := 0; c < numConsumers; c++ {
		go func() {
			defer consWg.Done()
			for {
				mu.Lock()
				if reserved == totalItems {
					mu.Unlock()
					return
				}
				reserved++
				mu.Unlock()

				v, err := q.Dequeue(ctx)
				if err != nil {
					t.Errorf("consumer: %v", err)
					return
				}
				mu.Lock()
				seen[v]++
				mu.Unlock()
			}
		}()
	}

	prodWg.Wait()
	consWg.Wait()

	require.Len(t, seen, totalItems)
	for v, n := range seen {
		if n != 1 {
			t.Fatalf("item %d observed %d times", v, n)
		}
	}
}

func BenchmarkEnqueueDequeue(b *testing.B) {
	q := New[int](1024)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = q.Enqueue(ctx, i)
		_, _ = q.Dequeue(ctx)
	}
}
