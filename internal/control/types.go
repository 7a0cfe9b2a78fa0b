// Package control contains the pure temperature-control core: the PID law,
// the heater/fan safety decision, and the hold state machine.
// This package has NO hardware, network, or time.Sleep dependencies.
// Time is always injectable via time.Time parameters.
package control

import "time"

// Channel identifies a fluorescence detection channel.
type Channel string

const (
	ChannelFAM Channel = "FAM"
	ChannelCY5 Channel = "CY5"
)

// State is the hold sequencer's top-level state.
type State string

const (
	StateSeeking   State = "SEEKING"
	StateHolding   State = "HOLDING"
	StateCapturing State = "CAPTURING"
	StateDone      State = "DONE"
)

// CapturePhase tracks progress through the image-capture sub-sequence.
// Phases only move forward within a hold.
type CapturePhase int

const (
	CaptureNone CapturePhase = iota
	CaptureAwaitingFAM
	CaptureAwaitingFAMAck
	CaptureAwaitingCY5
	CaptureAwaitingCY5Ack
	CaptureDone
)

func (p CapturePhase) String() string {
	switch p {
	case CaptureNone:
		return "NONE"
	case CaptureAwaitingFAM:
		return "AWAITING_FAM"
	case CaptureAwaitingFAMAck:
		return "AWAITING_FAM_ACK"
	case CaptureAwaitingCY5:
		return "AWAITING_CY5"
	case CaptureAwaitingCY5Ack:
		return "AWAITING_CY5_ACK"
	case CaptureDone:
		return "DONE"
	}
	return "UNKNOWN"
}

// EventType classifies what a hold tick produced.
type EventType string

const (
	EventTelemetry       EventType = "TELEMETRY"
	EventSetpointReached EventType = "SETPOINT_REACHED"
	EventCaptureRequest  EventType = "CAPTURE_REQUEST"
	EventCaptureAck      EventType = "CAPTURE_ACK"
	EventHoldComplete    EventType = "HOLD_COMPLETE"
)

// Event is something a hold tick wants reported to the host or observers.
type Event struct {
	Timestamp   time.Time
	Type        EventType
	Temperature float32
	Setpoint    float32
	// Elapsed is the run-relative time reported by telemetry lines.
	Elapsed time.Duration
	// Channel is set for capture requests and acknowledgments.
	Channel Channel
}

// Gains are the PID coefficients. Read-only during a run.
type Gains struct {
	Kp float32
	Kd float32
	Ki float32
}

// HoldSpec describes one hold. Immutable input to a Hold.
type HoldSpec struct {
	Setpoint float32
	Duration time.Duration
	// CaptureFAM and CaptureCY5 request an image on that channel once the
	// hold elapses. FAM is always taken first.
	CaptureFAM bool
	CaptureCY5 bool
}

// Timing controls telemetry cadence for a hold.
type Timing struct {
	// LogInterval is the spacing of telemetry events; zero disables them.
	LogInterval time.Duration
	// RunStart anchors telemetry elapsed time to the start of the program.
	RunStart time.Time
}

// Input is one control tick's worth of observations.
type Input struct {
	Time        time.Time
	Temperature float32
	// Acked is true when the host acknowledged the outstanding capture
	// request this tick.
	Acked bool
}

// LEDLevels are logical illumination intensities, 0 (off) to 255 (full).
type LEDLevels struct {
	FAM uint8
	CY5 uint8
}
