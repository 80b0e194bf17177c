package main

import (
	"context"
	"log/slog"
	"time"
)

// ============================================================================
// Central Daemon Loop
// ============================================================================
//
// Raw evdev events from the epoll reader are folded into motion frames,
// classified by the device registry and handed to the trigger controller.
// The IPC server feeds the same dispatcher from its own goroutines; the
// controller's state is guarded internally, so no loop-level lock is needed.
//
// ============================================================================

// motionDispatcher is the single entry point for motion samples from every
// source. It stamps samples with the current time and forwards results to
// the observers (state WebSocket).
type motionDispatcher struct {
	ctrl   *TriggerController
	notify func(TriggerResult)
	now    func() time.Time
}

func newMotionDispatcher(ctrl *TriggerController, notify func(TriggerResult)) *motionDispatcher {
	return &motionDispatcher{ctrl: ctrl, notify: notify, now: time.Now}
}

func (d *motionDispatcher) dispatch(s MotionSample) TriggerResult {
	res := d.ctrl.OnSample(s, d.now())
	if d.notify != nil {
		switch res.Outcome {
		case OutcomeTriggered, OutcomeCooldownDenied, OutcomePathFailed:
			d.notify(res)
		}
	}
	return res
}

func (d *motionDispatcher) snapshot() ControllerSnapshot {
	return d.ctrl.Snapshot(d.now())
}

// runDaemon consumes device events until ctx is canceled or events is closed.
func runDaemon(
	ctx context.Context,
	events <-chan deviceEvent,
	reg *deviceRegistry,
	d *motionDispatcher,
	logger *slog.Logger,
) {
	framer := newMotionFramer()

	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stopping (context canceled)")
			return

		case de, ok := <-events:
			if !ok {
				logger.Info("daemon stopping (events channel closed)")
				return
			}

			dx, dy, complete := framer.feed(de)
			if !complete {
				continue
			}

			d.dispatch(MotionSample{
				Device: de.Device,
				DX:     dx,
				DY:     dy,
				Class:  reg.classify(de.Device),
			})
		}
	}
}
