package main

import (
	"encoding/json"
	"fmt"
	"time"
)

// ============================================================================
// IPC Requests
// ============================================================================
// Requests arrive over the IPC socket as line-delimited JSON envelopes:
//   {"type": "motion", "data": {"dx": 10, "dy": -4, "class": "mouse"}}
//   {"type": "status"}
// ============================================================================

// Request is a marker interface for IPC requests.
type Request interface {
	requestMarker()
}

// MotionRequest injects one motion sample as if it came from a device of Class.
// An empty Class means "mouse".
type MotionRequest struct {
	DX     int32  `json:"dx"`
	DY     int32  `json:"dy"`
	Class  string `json:"class,omitempty"`
	Source string `json:"source,omitempty"`
}

func (MotionRequest) requestMarker() {}

// StatusRequest asks for the current accumulator and cooldown state.
type StatusRequest struct{}

func (StatusRequest) requestMarker() {}

// RequestEnvelope wraps a request with a type discriminator for JSON marshaling
type RequestEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UnmarshalRequest deserializes a JSON envelope into a concrete Request
func UnmarshalRequest(data []byte) (Request, error) {
	var env RequestEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case "motion":
		var r MotionRequest
		if len(env.Data) == 0 {
			return nil, fmt.Errorf("motion: missing data")
		}
		if err := json.Unmarshal(env.Data, &r); err != nil {
			return nil, fmt.Errorf("unmarshal MotionRequest: %w", err)
		}
		return r, nil

	case "status":
		return StatusRequest{}, nil

	case "":
		return nil, fmt.Errorf("missing request type")

	default:
		return nil, fmt.Errorf("unknown request type: %s", env.Type)
	}
}

// MarshalRequest serializes a Request into a JSON envelope
func MarshalRequest(r Request) ([]byte, error) {
	var typ string
	var payload any

	switch v := r.(type) {
	case MotionRequest:
		typ, payload = "motion", v
	case StatusRequest:
		typ = "status"
	default:
		return nil, fmt.Errorf("unknown request type: %T", r)
	}

	env := RequestEnvelope{Type: typ}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", typ, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// ============================================================================
// IPC Responses
// ============================================================================

// IPCResponse represents the response sent back to IPC clients
type IPCResponse struct {
	Status string          `json:"status"`          // "ok" or "error"
	Error  string          `json:"error,omitempty"` // error message if status == "error"
	Data   json.RawMessage `json:"data,omitempty"`
}

// StatusData is the payload of a status response and of the ws state_init message.
type StatusData struct {
	Movement            int64      `json:"movement"`
	Events              int        `json:"events"`
	EventLimit          int        `json:"event_limit"`
	CooldownRemainingMS int64      `json:"cooldown_remaining_ms"`
	LastTrigger         *time.Time `json:"last_trigger,omitempty"`
	SoundDir            string     `json:"sound_dir"`
}

func newStatusData(snap ControllerSnapshot, soundDir string) StatusData {
	d := StatusData{
		Movement:            snap.Movement,
		Events:              snap.Events,
		EventLimit:          eventCountLimit,
		CooldownRemainingMS: snap.CooldownRemaining.Milliseconds(),
		SoundDir:            soundDir,
	}
	if snap.HasTriggered {
		t := snap.LastTrigger.UTC()
		d.LastTrigger = &t
	}
	return d
}

// MotionData is the payload of a motion response and of ws cue messages.
type MotionData struct {
	ID          string `json:"id,omitempty"`
	Outcome     string `json:"outcome"`
	Movement    int64  `json:"movement"`
	Events      int    `json:"events"`
	Index       int    `json:"index"`
	File        string `json:"file,omitempty"`
	RemainingMS int64  `json:"remaining_ms,omitempty"`
	Error       string `json:"error,omitempty"`
}

func newMotionData(res TriggerResult) MotionData {
	d := MotionData{
		ID:          res.ID,
		Outcome:     res.Outcome.String(),
		Movement:    res.Movement,
		Events:      res.Events,
		Index:       res.Index,
		File:        res.Path,
		RemainingMS: res.Remaining.Milliseconds(),
	}
	switch {
	case res.Err != nil:
		d.Error = res.Err.Error()
	case res.PlayErr != nil:
		d.Error = res.PlayErr.Error()
	}
	return d
}
