package main

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

// mockPlayer is a test double for Player
type mockPlayer struct {
	mu        sync.Mutex
	played    []string
	err       error
	stopCalls int
}

func (m *mockPlayer) Play(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.played = append(m.played, path)
	return m.err
}

func (m *mockPlayer) Stop() {
	m.mu.Lock()
	m.stopCalls++
	m.mu.Unlock()
}

func (m *mockPlayer) playedPaths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.played...)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestController(t *testing.T, dir string) (*TriggerController, *mockPlayer) {
	t.Helper()
	p := &mockPlayer{}
	return NewTriggerController(dir, p, newTestLogger()), p
}

func mouse(dx, dy int32) MotionSample {
	return MotionSample{Device: "test-mouse", DX: dx, DY: dy, Class: DeviceMouse}
}

// TestTriggerController_ScenarioA tests the first trigger from a fresh controller
func TestTriggerController_ScenarioA(t *testing.T) {
	c, p := newTestController(t, "/sounds")
	t0 := time.Unix(1000, 0)

	var rr TriggerResult
	for i := 1; i <= eventCountLimit; i++ {
		rr = c.OnSample(mouse(20, 0), t0)
		if i < eventCountLimit && rr.Outcome != OutcomeAccumulated {
			t.Fatalf("sample %d: expected accumulated, got %v", i, rr.Outcome)
		}
	}

	if rr.Outcome != OutcomeTriggered {
		t.Fatalf("expected triggered on 6th sample, got %v", rr.Outcome)
	}
	if rr.Movement != 120 || rr.Events != 6 {
		t.Errorf("expected totals (120,6) at trigger, got (%d,%d)", rr.Movement, rr.Events)
	}
	if rr.Index != 1 {
		t.Errorf("expected index 1, got %d", rr.Index)
	}
	if rr.ID == "" {
		t.Errorf("expected trigger id to be set")
	}

	played := p.playedPaths()
	if len(played) != 1 || played[0] != "/sounds/file2.wav" {
		t.Errorf("expected one play of /sounds/file2.wav, got %v", played)
	}

	snap := c.Snapshot(t0)
	if snap.Movement != 0 || snap.Events != 0 {
		t.Errorf("expected reset to (0,0), got (%d,%d)", snap.Movement, snap.Events)
	}
}

// TestTriggerController_ScenarioB tests cooldown denial without reset, then recovery
func TestTriggerController_ScenarioB(t *testing.T) {
	c, p := newTestController(t, "/sounds")
	t0 := time.Unix(1000, 0)

	// Scenario A
	for i := 0; i < eventCountLimit; i++ {
		c.OnSample(mouse(20, 0), t0)
	}

	// Six more samples within the cooldown window.
	t1 := t0.Add(200 * time.Millisecond)
	var rr TriggerResult
	for i := 0; i < eventCountLimit; i++ {
		rr = c.OnSample(mouse(10, 0), t1)
	}
	if rr.Outcome != OutcomeCooldownDenied {
		t.Fatalf("expected cooldown denied, got %v", rr.Outcome)
	}
	if rr.Remaining != 800*time.Millisecond {
		t.Errorf("expected remaining 800ms, got %v", rr.Remaining)
	}
	if snap := c.Snapshot(t1); snap.Movement != 60 || snap.Events != 6 {
		t.Fatalf("expected (60,6) after denial, got (%d,%d)", snap.Movement, snap.Events)
	}

	// One more sample, still inside the window: grows and is denied again.
	t2 := t0.Add(900 * time.Millisecond)
	rr = c.OnSample(mouse(10, 0), t2)
	if rr.Outcome != OutcomeCooldownDenied {
		t.Fatalf("expected cooldown denied, got %v", rr.Outcome)
	}
	if rr.Movement != 70 || rr.Events != 7 {
		t.Errorf("expected (70,7), got (%d,%d)", rr.Movement, rr.Events)
	}

	// Once the period has elapsed, the next qualifying sample fires with whatever accrued.
	t3 := t0.Add(time.Second)
	rr = c.OnSample(mouse(0, -45), t3)
	if rr.Outcome != OutcomeTriggered {
		t.Fatalf("expected triggered after cooldown, got %v", rr.Outcome)
	}
	if rr.Movement != 115 || rr.Events != 8 {
		t.Errorf("expected (115,8) at trigger, got (%d,%d)", rr.Movement, rr.Events)
	}
	if rr.Index != 1 {
		t.Errorf("expected index 1, got %d", rr.Index)
	}
	if snap := c.Snapshot(t3); snap.Movement != 0 || snap.Events != 0 {
		t.Errorf("expected reset after trigger, got (%d,%d)", snap.Movement, snap.Events)
	}
	if n := len(p.playedPaths()); n != 2 {
		t.Errorf("expected 2 plays, got %d", n)
	}
}

// TestTriggerController_ScenarioC tests that only mouse-class samples count
func TestTriggerController_ScenarioC(t *testing.T) {
	c, _ := newTestController(t, "/sounds")
	now := time.Unix(1000, 0)

	samples := []MotionSample{
		{Device: "pad", DX: 50, DY: 50, Class: DeviceTrackpad},
		mouse(3, 4),
		{Device: "nub", DX: -8, DY: 2, Class: DeviceTrackpoint},
		mouse(-10, 0),
		{Device: "?", DX: 100, DY: 100, Class: DeviceUnknown},
		{Device: "pad", DX: 1, DY: 1, Class: DeviceTrackpad},
		mouse(0, 5),
	}

	for _, s := range samples {
		rr := c.OnSample(s, now)
		if s.Class != DeviceMouse && rr.Outcome != OutcomeFiltered {
			t.Errorf("expected %v sample to be filtered, got %v", s.Class, rr.Outcome)
		}
	}

	snap := c.Snapshot(now)
	if snap.Movement != 22 || snap.Events != 3 {
		t.Errorf("expected (22,3) from mouse samples only, got (%d,%d)", snap.Movement, snap.Events)
	}
}

// TestTriggerController_ZeroMotionDiscarded tests that zero samples never count
func TestTriggerController_ZeroMotionDiscarded(t *testing.T) {
	c, p := newTestController(t, "/sounds")
	now := time.Unix(1000, 0)

	for i := 0; i < 20; i++ {
		if rr := c.OnSample(mouse(0, 0), now); rr.Outcome != OutcomeFiltered {
			t.Fatalf("expected zero sample filtered, got %v", rr.Outcome)
		}
	}

	snap := c.Snapshot(now)
	if snap.Movement != 0 || snap.Events != 0 {
		t.Errorf("expected (0,0), got (%d,%d)", snap.Movement, snap.Events)
	}
	if n := len(p.playedPaths()); n != 0 {
		t.Errorf("expected no plays, got %d", n)
	}
}

// TestTriggerController_AccumulationInvariant tests sum of |dx|+|dy| and count
func TestTriggerController_AccumulationInvariant(t *testing.T) {
	c, _ := newTestController(t, "/sounds")
	now := time.Unix(1000, 0)

	moves := [][2]int32{{1, -2}, {-3, 0}, {0, 7}, {-4, -4}, {2, 2}}
	var want int64
	for _, m := range moves {
		want += abs64(m[0]) + abs64(m[1])
		c.OnSample(mouse(m[0], m[1]), now)
	}

	snap := c.Snapshot(now)
	if snap.Movement != want || snap.Events != len(moves) {
		t.Errorf("expected (%d,%d), got (%d,%d)", want, len(moves), snap.Movement, snap.Events)
	}
}

// TestTriggerController_PlaybackFailureStillResets tests that a failed play does not block reset
func TestTriggerController_PlaybackFailureStillResets(t *testing.T) {
	c, p := newTestController(t, "/sounds")
	p.err = errors.New("device busy")
	now := time.Unix(1000, 0)

	var rr TriggerResult
	for i := 0; i < eventCountLimit; i++ {
		rr = c.OnSample(mouse(100, 100), now)
	}

	if rr.Outcome != OutcomeTriggered {
		t.Fatalf("expected triggered, got %v", rr.Outcome)
	}
	if rr.PlayErr == nil {
		t.Errorf("expected PlayErr to be reported")
	}
	if rr.Index != maxFiles-1 {
		t.Errorf("expected clamped index %d, got %d", maxFiles-1, rr.Index)
	}
	if snap := c.Snapshot(now); snap.Movement != 0 || snap.Events != 0 {
		t.Errorf("expected reset after failed playback, got (%d,%d)", snap.Movement, snap.Events)
	}

	// Cooldown is consumed as well.
	if snap := c.Snapshot(now); snap.CooldownRemaining != cooldownPeriod {
		t.Errorf("expected full cooldown remaining, got %v", snap.CooldownRemaining)
	}
}

// TestTriggerController_NilPlayer tests that a missing player behaves like a failed play
func TestTriggerController_NilPlayer(t *testing.T) {
	c := NewTriggerController("/sounds", nil, newTestLogger())
	now := time.Unix(1000, 0)

	var rr TriggerResult
	for i := 0; i < eventCountLimit; i++ {
		rr = c.OnSample(mouse(1, 0), now)
	}
	if rr.Outcome != OutcomeTriggered || !errors.Is(rr.PlayErr, errPlayerClosed) {
		t.Fatalf("expected triggered with errPlayerClosed, got %v / %v", rr.Outcome, rr.PlayErr)
	}
}

// TestTriggerController_PathFailureKeepsCounters tests that an unusable path
// leaves totals growing and never consults the cooldown.
func TestTriggerController_PathFailureKeepsCounters(t *testing.T) {
	longDir := "/" + strings.Repeat("x", maxAssetPathLen)
	c, p := newTestController(t, longDir)
	now := time.Unix(1000, 0)

	var rr TriggerResult
	for i := 0; i < eventCountLimit+3; i++ {
		rr = c.OnSample(mouse(10, 0), now)
	}

	if rr.Outcome != OutcomePathFailed {
		t.Fatalf("expected path failure, got %v", rr.Outcome)
	}
	if !errors.Is(rr.Err, ErrAssetPathTooLong) {
		t.Errorf("expected ErrAssetPathTooLong, got %v", rr.Err)
	}
	if rr.Movement != 90 || rr.Events != 9 {
		t.Errorf("expected counters to keep growing to (90,9), got (%d,%d)", rr.Movement, rr.Events)
	}
	if n := len(p.playedPaths()); n != 0 {
		t.Errorf("expected no plays, got %d", n)
	}

	snap := c.Snapshot(now)
	if snap.HasTriggered {
		t.Errorf("expected cooldown gate untouched on path failure")
	}
}

// TestTriggerController_ConcurrentSources tests two sources feeding one controller
func TestTriggerController_ConcurrentSources(t *testing.T) {
	c, p := newTestController(t, "/sounds")
	now := time.Unix(1000, 0)

	var wg sync.WaitGroup
	for src := 0; src < 2; src++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				c.OnSample(mouse(1, 1), now)
			}
		}()
	}
	wg.Wait()

	// All samples share one instant, so the gate can fire only once.
	if n := len(p.playedPaths()); n != 1 {
		t.Errorf("expected exactly 1 play, got %d", n)
	}
}

// TestTriggerController_ClassFilteredBeforeZeroCheck tests the filter order
// through the debug log: a non-mouse sample is rejected for its class even
// when it carries no motion.
func TestTriggerController_ClassFilteredBeforeZeroCheck(t *testing.T) {
	var buf bytes.Buffer
	c := NewTriggerController("/sounds", &mockPlayer{}, newLogger(&buf, LogLevelDebug))
	now := time.Unix(1000, 0)

	res := c.OnSample(MotionSample{Device: "pad", Class: DeviceTrackpad}, now)
	if res.Outcome != OutcomeFiltered {
		t.Fatalf("expected filtered, got %v", res.Outcome)
	}
	if out := buf.String(); !strings.Contains(out, "ignoring motion") || !strings.Contains(out, "class=trackpad") {
		t.Errorf("expected class rejection to be logged, got %q", out)
	}

	buf.Reset()
	if res := c.OnSample(mouse(0, 0), now); res.Outcome != OutcomeFiltered {
		t.Fatalf("expected filtered, got %v", res.Outcome)
	}
	if buf.Len() != 0 {
		t.Errorf("expected zero-motion mouse sample to be dropped silently, got %q", buf.String())
	}

	if m, e := c.acc.snapshot(); m != 0 || e != 0 {
		t.Errorf("expected no accumulation, got (%d,%d)", m, e)
	}
}
