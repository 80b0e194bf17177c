package main

import (
	"sync"
	"testing"
)

// TestMovementAccumulator_Accumulate_Basic tests running sums and counts
func TestMovementAccumulator_Accumulate_Basic(t *testing.T) {
	a := newMovementAccumulator()

	movement, events := a.accumulate(20)
	if movement != 20 || events != 1 {
		t.Errorf("expected (20,1), got (%d,%d)", movement, events)
	}

	movement, events = a.accumulate(35)
	if movement != 55 || events != 2 {
		t.Errorf("expected (55,2), got (%d,%d)", movement, events)
	}

	// A zero magnitude is still counted; filtering happens in the controller.
	movement, events = a.accumulate(0)
	if movement != 55 || events != 3 {
		t.Errorf("expected (55,3), got (%d,%d)", movement, events)
	}
}

// TestMovementAccumulator_Reset tests that both totals go back to zero together
func TestMovementAccumulator_Reset(t *testing.T) {
	a := newMovementAccumulator()
	a.accumulate(120)
	a.accumulate(7)

	a.reset()

	movement, events := a.snapshot()
	if movement != 0 || events != 0 {
		t.Errorf("expected (0,0) after reset, got (%d,%d)", movement, events)
	}

	// Accumulation restarts from zero.
	movement, events = a.accumulate(10)
	if movement != 10 || events != 1 {
		t.Errorf("expected (10,1) after reset, got (%d,%d)", movement, events)
	}
}

// TestMovementAccumulator_Snapshot_NoMutation tests that snapshot is read-only
func TestMovementAccumulator_Snapshot_NoMutation(t *testing.T) {
	a := newMovementAccumulator()
	a.accumulate(42)

	for i := 0; i < 3; i++ {
		movement, events := a.snapshot()
		if movement != 42 || events != 1 {
			t.Fatalf("snapshot %d: expected (42,1), got (%d,%d)", i, movement, events)
		}
	}
}

// TestMovementAccumulator_Concurrent tests thread safety of accumulate
func TestMovementAccumulator_Concurrent(t *testing.T) {
	a := newMovementAccumulator()

	const workers = 10
	const perWorker = 100

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				a.accumulate(3)
			}
		}()
	}
	wg.Wait()

	movement, events := a.snapshot()
	if events != workers*perWorker {
		t.Errorf("expected %d events, got %d", workers*perWorker, events)
	}
	if movement != 3*workers*perWorker {
		t.Errorf("expected movement %d, got %d", 3*workers*perWorker, movement)
	}
}

// TestMovementAccumulator_ConcurrentReset tests that resets never split the pair
func TestMovementAccumulator_ConcurrentReset(t *testing.T) {
	a := newMovementAccumulator()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for j := 0; j < 500; j++ {
			a.accumulate(5)
		}
	}()
	go func() {
		defer wg.Done()
		for j := 0; j < 50; j++ {
			a.reset()
		}
	}()
	wg.Wait()

	// Every accumulate adds exactly 5 per event, so the pair stays proportional
	// no matter where the resets landed.
	movement, events := a.snapshot()
	if movement != int64(events)*5 {
		t.Errorf("movement/events out of step: movement=%d events=%d", movement, events)
	}
}
