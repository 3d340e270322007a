// Package testutil holds small helpers shared by tests.
package testutil

import (
	"runtime"
	"testing"
	"time"
)

// AssertNoGoroutineLeaks checks that the goroutine count returns to baseline
// within the deadline. Pass a margin for runtime-internal goroutines.
func AssertNoGoroutineLeaks(t *testing.T, baseline, margin int, deadline time.Duration) {
	t.Helper()
	stop := time.Now().Add(deadline)
	for time.Now().Before(stop) {
		if runtime.NumGoroutine() <= baseline+margin {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Errorf("goroutine leak: baseline=%d, current=%d, margin=%d", baseline, runtime.NumGoroutine(), margin)
}

// WaitClosed fails the test if ch does not close within the deadline.
func WaitClosed(t *testing.T, ch <-chan struct{}, deadline time.Duration) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(deadline):
		t.Fatal("channel not closed within deadline")
	}
}
