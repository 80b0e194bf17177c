package main

import (
	"bytes"
	"encoding/binary"
)

// inputEvent represents a Linux input event structure
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

var inputEventSize = binary.Size(inputEvent{})

// deviceEvent is an input event tagged with the device it came from.
type deviceEvent struct {
	Device string
	Event  inputEvent
}

// decodeInputEvents decodes as many whole input events as buf holds.
// A trailing partial record is ignored.
func decodeInputEvents(buf []byte, dst []inputEvent) []inputEvent {
	reader := bytes.NewReader(nil)
	for off := 0; off+inputEventSize <= len(buf); off += inputEventSize {
		reader.Reset(buf[off : off+inputEventSize])
		var ev inputEvent
		if err := binary.Read(reader, binary.LittleEndian, &ev); err != nil {
			// Skip malformed events
			continue
		}
		dst = append(dst, ev)
	}
	return dst
}

// motionFramer folds REL_X/REL_Y events into one motion tuple per device
// frame. The kernel reports each axis as its own event and closes the frame
// with SYN_REPORT.
//
// Not thread-safe: owned by the single event loop goroutine.
type motionFramer struct {
	pending map[string]*pendingMotion
}

type pendingMotion struct {
	dx, dy int32
	seen   bool

	// dropping is set after SYN_DROPPED: the kernel lost events, so everything
	// up to and including the next SYN_REPORT is discarded.
	dropping bool
}

func newMotionFramer() *motionFramer {
	return &motionFramer{pending: make(map[string]*pendingMotion)}
}

// feed consumes one event. It returns a completed (dx, dy) frame and true
// when ev closes a frame that carried relative X/Y motion.
func (f *motionFramer) feed(de deviceEvent) (dx, dy int32, ok bool) {
	ev := de.Event
	switch ev.Type {
	case EV_REL:
		if ev.Code != REL_X && ev.Code != REL_Y {
			// Wheel and other axes are not motion.
			return 0, 0, false
		}
		p := f.pending[de.Device]
		if p == nil {
			p = &pendingMotion{}
			f.pending[de.Device] = p
		}
		if p.dropping {
			return 0, 0, false
		}
		if ev.Code == REL_X {
			p.dx += ev.Value
		} else {
			p.dy += ev.Value
		}
		p.seen = true
		return 0, 0, false

	case EV_SYN:
		if ev.Code == SYN_DROPPED {
			f.pending[de.Device] = &pendingMotion{dropping: true}
			return 0, 0, false
		}
		if ev.Code != SYN_REPORT {
			return 0, 0, false
		}
		p := f.pending[de.Device]
		if p == nil || p.dropping || !p.seen {
			if p != nil {
				*p = pendingMotion{}
			}
			return 0, 0, false
		}
		dx, dy = p.dx, p.dy
		*p = pendingMotion{}
		return dx, dy, true
	}

	return 0, 0, false
}

// forget drops any partial frame for a device (e.g. after hang-up).
func (f *motionFramer) forget(device string) {
	delete(f.pending, device)
}
