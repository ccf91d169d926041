// Package clocktest drives a clockwork fake clock for tests of code that
// sleeps on it from several goroutines.
package clocktest

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

// MaxSteps bounds Drive so a test that never finishes fails instead of hanging.
const MaxSteps = 100000

// Drive advances fc by step each time exactly waiters goroutines are blocked
// on it, until done is closed. Because every goroutine under test is parked
// on the clock before each advance, the simulation is deterministic.
func Drive(tb testing.TB, fc *clockwork.FakeClock, waiters int, step time.Duration, done <-chan struct{}) {
	tb.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-done:
			cancel()
		case <-ctx.Done():
		}
	}()

	for i := 0; i < MaxSteps; i++ {
		if err := fc.BlockUntilContext(ctx, waiters); err != nil {
			return
		}
		fc.Advance(step)
	}
	tb.Fatalf("clocktest: not done after %d steps of %v", MaxSteps, step)
}

// Settle waits until exactly waiters goroutines are blocked on fc, or fails
// after a real-time grace period.
func Settle(tb testing.TB, fc *clockwork.FakeClock, waiters int) {
	tb.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fc.BlockUntilContext(ctx, waiters); err != nil {
		tb.Fatalf("clocktest: waiting for %d sleepers: %v", waiters, err)
	}
}
