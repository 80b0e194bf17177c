package main

import (
	"sync"
	"time"
)

// cooldownGate enforces a minimum wall-clock interval between cues.
//
// Before the first cue there is no "last trigger", so the first attempt is
// always allowed regardless of what now is.
type cooldownGate struct {
	mu        sync.Mutex
	period    time.Duration
	last      time.Time
	triggered bool
}

// cooldownDecision is the result of a trigger attempt.
// Remaining is only meaningful when Allowed is false and is used for logging.
type cooldownDecision struct {
	Allowed   bool
	Remaining time.Duration
}

// newCooldownGate creates a gate that has never fired
func newCooldownGate(period time.Duration) *cooldownGate {
	return &cooldownGate{period: period}
}

// tryTrigger allows the trigger if at least period has elapsed since the last
// allowed trigger. The last trigger time is updated only when allowed.
func (g *cooldownGate) tryTrigger(now time.Time) cooldownDecision {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.triggered {
		elapsed := now.Sub(g.last)
		if elapsed < g.period {
			return cooldownDecision{Allowed: false, Remaining: g.period - elapsed}
		}
	}

	g.last = now
	g.triggered = true
	return cooldownDecision{Allowed: true}
}

// remaining reports how long until a trigger would be allowed (0 if now).
func (g *cooldownGate) remaining(now time.Time) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.triggered {
		return 0
	}
	if left := g.period - now.Sub(g.last); left > 0 {
		return left
	}
	return 0
}

// lastTrigger returns the time of the last allowed trigger, if any.
func (g *cooldownGate) lastTrigger() (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.last, g.triggered
}
