package main

import (
	"os"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

// progressWatchdog monitors progress and fails the test if no progress is made for 15 seconds.
type progressWatchdog struct {
	t            *testing.T
	label        string
	lastProgress atomic.Int64
	done         chan struct{}
}

func newWatchdog(t *testing.T, label string) *progressWatchdog {
	wd := &progressWatchdog{
		t:     t,
		label: label,
		done:  make(chan struct{}),
	}
	wd.lastProgress.Store(time.Now().UnixNano())
	return wd
}

func (wd *progressWatchdog) Start() {
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				last := wd.lastProgress.Load()
				elapsed := time.Since(time.Unix(0, last))
				if elapsed > 15*time.Second {
					wd.t.Errorf("No progress in the last 15 seconds (%s test likely stuck).", wd.label)
					return
				}
			case <-wd.done:
				return
			}
		}
	}()
}

func (wd *progressWatchdog) Progress() {
	wd.lastProgress.Store(time.Now().UnixNano())
}

func (wd *progressWatchdog) Stop() {
	close(wd.done)
}

// withAllQueues is a test helper that loops over all implementations
// and calls the test function for each one as a subtest.
func withAllQueues(t *testing.T, fn func(t *testing.T, impl Implementation)) {
	t.Helper()
	for _, impl := range getImplementations() {
		impl := impl
		t.Run(impl.name, func(t *testing.T) {
			fn(t, impl)
		})
	}
}

// getEnvInt reads an integer from an environment variable with a default value.
func getEnvInt(name string, defaultVal int) int {
	if v := os.Getenv(name); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return i
		}
	}
	return defaultVal
}

// Test size configuration via environment variables:
//   FIFO_TEST_SIZE    - Items per single-producer ordering test (default: 10000)
//   FIFO_CONCURRENCY  - Goroutines per side in load tests (default: 16)
//   FIFO_LOAD_ITEMS   - Items per producer in load tests (default: 2000)

func getTestSize() int {
	return getEnvInt("FIFO_TEST_SIZE", 10000)
}

func getConcurrency() int {
	return getEnvInt("FIFO_CONCURRENCY", 16)
}

func getLoadItems() int {
	return getEnvInt("FIFO_LOAD_ITEMS", 2000)
}
