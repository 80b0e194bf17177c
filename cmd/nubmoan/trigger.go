package main

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// MotionSample is one relative pointer movement from a classified device.
type MotionSample struct {
	Device string // device identity (path) or source name for injected samples
	DX     int32
	DY     int32
	Class  DeviceClass
}

// TriggerOutcome says what onSample did with a sample.
type TriggerOutcome int

const (
	OutcomeFiltered       TriggerOutcome = iota // not a qualifying sample, state untouched
	OutcomeAccumulated                          // counted, threshold not reached
	OutcomePathFailed                           // threshold reached but no usable asset path
	OutcomeCooldownDenied                       // threshold reached, cooldown still active
	OutcomeTriggered                            // cue issued and totals reset
)

func (o TriggerOutcome) String() string {
	switch o {
	case OutcomeFiltered:
		return "filtered"
	case OutcomeAccumulated:
		return "accumulated"
	case OutcomePathFailed:
		return "path_failed"
	case OutcomeCooldownDenied:
		return "cooldown_denied"
	case OutcomeTriggered:
		return "triggered"
	default:
		return "unknown"
	}
}

// TriggerResult reports the decision for one sample. Movement and Events are
// the totals right after accumulation (zero for filtered samples).
type TriggerResult struct {
	ID        string // set for triggered cues
	Outcome   TriggerOutcome
	Movement  int64
	Events    int
	Index     int
	Path      string
	Remaining time.Duration
	PlayErr   error
	Err       error
	At        time.Time
}

// TriggerController owns the accumulator and cooldown state for the process
// and turns qualifying motion into sound cues.
//
// State lifecycle: created once at startup, lives until shutdown, never
// persisted. The accumulator and the gate each lock internally, so several
// event sources may call OnSample concurrently.
type TriggerController struct {
	acc      *movementAccumulator
	gate     *cooldownGate
	player   Player
	soundDir string
	logger   *slog.Logger
}

// NewTriggerController creates a controller playing sounds from soundDir.
func NewTriggerController(soundDir string, player Player, logger *slog.Logger) *TriggerController {
	if logger == nil {
		logger = slog.Default()
	}
	return &TriggerController{
		acc:      newMovementAccumulator(),
		gate:     newCooldownGate(cooldownPeriod),
		player:   player,
		soundDir: soundDir,
		logger:   logger,
	}
}

func abs64(v int32) int64 {
	x := int64(v)
	if x < 0 {
		return -x
	}
	return x
}

// OnSample processes one motion sample observed at now.
func (c *TriggerController) OnSample(s MotionSample, now time.Time) TriggerResult {
	res := TriggerResult{Outcome: OutcomeFiltered, At: now}

	// Only plain mice participate; trackpads, trackpoints and unknown devices are ignored.
	if s.Class != DeviceMouse {
		c.logger.Debug("ignoring motion", "dx", s.DX, "dy", s.DY, "device", s.Device, "class", s.Class)
		return res
	}

	// Zero-motion samples never reach the accumulator.
	if s.DX == 0 && s.DY == 0 {
		return res
	}

	c.logger.Debug("mouse moved", "dx", s.DX, "dy", s.DY, "device", s.Device)

	movement, events := c.acc.accumulate(abs64(s.DX) + abs64(s.DY))
	res.Movement = movement
	res.Events = events

	if events < eventCountLimit {
		res.Outcome = OutcomeAccumulated
		return res
	}

	res.Index = selectIntensity(movement)
	path, err := assetPath(c.soundDir, res.Index)
	if err != nil {
		// Totals are left as they are; the next qualifying sample retries.
		c.logger.Error("cannot resolve sound path", "error", err, "index", res.Index, "movement", movement, "events", events)
		res.Outcome = OutcomePathFailed
		res.Err = err
		return res
	}
	res.Path = path

	decision := c.gate.tryTrigger(now)
	if !decision.Allowed {
		c.logger.Debug("sound cooldown active", "remaining", decision.Remaining, "movement", movement, "events", events)
		res.Outcome = OutcomeCooldownDenied
		res.Remaining = decision.Remaining
		return res
	}

	res.ID = uuid.NewString()
	res.Outcome = OutcomeTriggered

	if c.player == nil {
		res.PlayErr = errPlayerClosed
	} else {
		res.PlayErr = c.player.Play(path)
	}
	if res.PlayErr != nil {
		c.logger.Error("failed to play sound", "file", path, "error", res.PlayErr, "movement", movement)
	} else {
		c.logger.Info("playing sound", "file", path, "movement", movement, "events", events, "id", res.ID)
	}

	// The cue counts as issued once the gate allowed it, even if playback failed.
	c.acc.reset()

	return res
}

// ControllerSnapshot is a read-only view of the controller state.
type ControllerSnapshot struct {
	Movement          int64
	Events            int
	CooldownRemaining time.Duration
	LastTrigger       time.Time
	HasTriggered      bool
}

// Snapshot returns the current totals and cooldown state.
func (c *TriggerController) Snapshot(now time.Time) ControllerSnapshot {
	movement, events := c.acc.snapshot()
	last, ok := c.gate.lastTrigger()
	return ControllerSnapshot{
		Movement:          movement,
		Events:            events,
		CooldownRemaining: c.gate.remaining(now),
		LastTrigger:       last,
		HasTriggered:      ok,
	}
}
