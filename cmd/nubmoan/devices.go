package main

import (
	"strings"
	"sync"
)

// DeviceClass is the pointer-device classification used to filter motion.
type DeviceClass int

const (
	DeviceUnknown DeviceClass = iota
	DeviceMouse
	DeviceTrackpad
	DeviceTrackpoint
)

func (c DeviceClass) String() string {
	switch c {
	case DeviceMouse:
		return "mouse"
	case DeviceTrackpad:
		return "trackpad"
	case DeviceTrackpoint:
		return "trackpoint"
	default:
		return "unknown"
	}
}

// parseDeviceClass is the inverse of String. Unrecognized names map to unknown.
func parseDeviceClass(s string) DeviceClass {
	switch strings.ToLower(s) {
	case "mouse", "":
		return DeviceMouse
	case "trackpad", "touchpad":
		return DeviceTrackpad
	case "trackpoint":
		return DeviceTrackpoint
	default:
		return DeviceUnknown
	}
}

// Name fragments reported by kernel drivers for integrated pointing devices.
// Matching is case-sensitive, the way vendors spell them.
var (
	trackpadNamePatterns   = []string{"TouchPad", "Touchpad"}
	trackpointNamePatterns = []string{"TrackPoint"}
)

// classifyDeviceName derives a class from a device's reported name.
// Anything that reports relative motion and is not a trackpad or trackpoint
// is treated as a plain mouse.
func classifyDeviceName(name string) DeviceClass {
	for _, p := range trackpadNamePatterns {
		if strings.Contains(name, p) {
			return DeviceTrackpad
		}
	}
	for _, p := range trackpointNamePatterns {
		if strings.Contains(name, p) {
			return DeviceTrackpoint
		}
	}
	return DeviceMouse
}

// DeviceInfo describes one opened pointer device.
type DeviceInfo struct {
	Path  string // stable identity, e.g. /dev/input/event5
	Name  string // kernel-reported name
	Class DeviceClass
}

// deviceRegistry resolves a device identity to its classification.
// It is written once at startup and read by the event loop.
type deviceRegistry struct {
	mu      sync.RWMutex
	devices map[string]DeviceInfo
}

func newDeviceRegistry() *deviceRegistry {
	return &deviceRegistry{devices: make(map[string]DeviceInfo)}
}

// register adds or replaces a device, classifying it by name.
func (r *deviceRegistry) register(path, name string) DeviceInfo {
	info := DeviceInfo{Path: path, Name: name, Class: classifyDeviceName(name)}

	r.mu.Lock()
	r.devices[path] = info
	r.mu.Unlock()

	return info
}

// classify returns the class for a device identity; unknown if unregistered.
func (r *deviceRegistry) classify(path string) DeviceClass {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.devices[path]
	if !ok {
		return DeviceUnknown
	}
	return info.Class
}

// list returns all registered devices.
func (r *deviceRegistry) list() []DeviceInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]DeviceInfo, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	return out
}
