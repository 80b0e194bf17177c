package main

import "errors"

// Player starts playback of a sound file without waiting for it to finish.
//
// Play reports only whether playback could be started. Callers treat the
// result as informational; it never gates state changes.
type Player interface {
	Play(path string) error
	// Stop halts every playback still in flight. Used on shutdown.
	Stop()
}

var errPlayerClosed = errors.New("player stopped")
