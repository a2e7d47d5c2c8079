package analytics

import (
	"context"
	"testing"
	"time"
)

func TestSchedulerRefreshesAndStops(t *testing.T) {
	p := basicSmallProvider()
	store := NewStore(p, "test-salt")
	sched := NewScheduler(store, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	// The immediate tick refreshes before the first interval elapses.
	deadline := time.After(2 * time.Second)
	for store.Stale() {
		select {
		case <-deadline:
			t.Fatal("scheduler never refreshed the store")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop on context cancellation")
	}
}

func TestSchedulerMinimumInterval(t *testing.T) {
	store := NewStore(basicSmallProvider(), "test-salt")
	sched := NewScheduler(store, 0)
	if sched.interval != time.Second {
		t.Errorf("interval = %v, want the 1s floor", sched.interval)
	}
}
