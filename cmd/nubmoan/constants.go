package main

import "time"

// Linux input event types and codes (from <linux/input.h>)
const (
	EV_SYN = 0x00
	EV_KEY = 0x01
	EV_REL = 0x02

	SYN_REPORT  = 0x00
	SYN_DROPPED = 0x03

	REL_X     = 0x00
	REL_Y     = 0x01
	REL_WHEEL = 0x08
	REL_MAX   = 0x0f
)

// Trigger engine thresholds. Not configurable.
const (
	cooldownPeriod  = 1 * time.Second // Minimum interval between two cues
	stepSize        = 100             // Movement units per intensity step
	eventCountLimit = 6               // Qualifying samples before a cue is considered
	maxFiles        = 10              // Number of numbered sound assets (file1..file10)

	// maxAssetPathLen bounds the composed asset path, terminator included.
	maxAssetPathLen = 260
)

// Defaults for the daemon surfaces
const (
	defaultSoundDir     = "/usr/share/nubmoan/sounds"
	defaultIPCSocket    = "/tmp/nubmoan.sock"
	defaultStateWSAddr  = "127.0.0.1:3011"
	defaultExecCommand  = "paplay"
	defaultInputGlob    = "/dev/input/event*"
	defaultEventBufSize = 64
)
