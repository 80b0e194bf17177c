package main

import "sync"

// movementAccumulator holds the running movement totals since the last cue.
//
// Thread-safe: the evdev reader and the IPC server may feed samples into the
// same controller concurrently. Both fields only change together under mu.
type movementAccumulator struct {
	mu         sync.Mutex
	movement   int64
	eventCount int
}

// newMovementAccumulator creates an empty accumulator
func newMovementAccumulator() *movementAccumulator {
	return &movementAccumulator{}
}

// accumulate adds magnitude to the running movement and counts one sample.
// It returns the totals as they were right after the update.
//
// magnitude is always |dx|+|dy|, so it is never negative.
func (a *movementAccumulator) accumulate(magnitude int64) (movement int64, events int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.movement += magnitude
	a.eventCount++

	return a.movement, a.eventCount
}

// reset zeroes both totals in one critical section.
func (a *movementAccumulator) reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.movement = 0
	a.eventCount = 0
}

// snapshot returns both totals as a consistent pair.
func (a *movementAccumulator) snapshot() (movement int64, events int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.movement, a.eventCount
}
