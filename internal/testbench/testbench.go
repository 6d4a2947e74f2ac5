package testbench

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/i5heu/GoBoundedQueue/internal/queue"
)

// Config describes the concurrency of a load run: how many producers, how
// many consumers.
type Config struct {
	NumProducers int
	NumConsumers int
}

// RunTimedTest spawns producers and consumers that run for the specified
// duration, measuring how many items are actually enqueued/dequeued in that
// window. When the window expires the shared context is cancelled: blocked
// producers fail out of their enqueue (an interrupted enqueue never inserts,
// so it is not counted as produced), and consumers switch to draining the
// queue non-blockingly until it is empty.
// Returns the total items produced, total consumed, and the actual elapsed time.
func RunTimedTest[T any](
	q queue.BlockingQueue[T],
	cfg Config,
	testDuration time.Duration,
	valueGenerator func(int) T,
) (producedCount int64, consumedCount int64, elapsed time.Duration) {

	ctx, cancel := context.WithTimeout(context.Background(), testDuration)
	defer cancel()

	var totalProduced int64
	var totalConsumed int64
	var msgIndex int64

	start := time.Now()

	var prodWg sync.WaitGroup
	prodWg.Add(cfg.NumProducers)
	for i := 0; i < cfg.NumProducers; i++ {
		go func() {
			defer prodWg.Done()
			for {
				idx := atomic.AddInt64(&msgIndex, 1) - 1
				if err := q.Enqueue(ctx, valueGenerator(int(idx))); err != nil {
					return
				}
				atomic.AddInt64(&totalProduced, 1)
			}
		}()
	}

	var consWg sync.WaitGroup
	consWg.Add(cfg.NumConsumers)
	for i := 0; i < cfg.NumConsumers; i++ {
		go func() {
			defer consWg.Done()
			for {
				if _, err := q.Dequeue(ctx); err == nil {
					atomic.AddInt64(&totalConsumed, 1)
					continue
				}
				// Window expired. Wait for producers to stop, then drain
				// whatever they managed to insert.
				prodWg.Wait()
				for {
					if _, err := q.TryDequeue(); err != nil {
						return
					}
					atomic.AddInt64(&totalConsumed, 1)
				}
			}
		}()
	}

	prodWg.Wait()
	consWg.Wait()

	elapsed = time.Since(start)
	producedCount = atomic.LoadInt64(&totalProduced)
	consumedCount = atomic.LoadInt64(&totalConsumed)
	return producedCount, consumedCount, elapsed
}
