package control

import (
	"time"

	"github.com/chewxy/math32"
)

// Tolerance is the |error| below which the setpoint counts as reached, °C.
const Tolerance float32 = 1

// LEDFull is the logical intensity of an illuminated channel.
const LEDFull uint8 = 255

// Output is what one tick of a hold asks the caller to do.
type Output struct {
	Drive Drive
	PID   PIDResult
	// LEDs is non-nil when the illumination must change this tick.
	LEDs   *LEDLevels
	Events []Event
	// Done is set on the tick the hold finishes and on every tick after.
	Done bool
}

// Hold sequences a single temperature hold: seek the setpoint, dwell for the
// requested duration once within tolerance, then run the optional capture
// sub-sequence. The PID state belongs to the hold and starts at zero.
type Hold struct {
	spec   HoldSpec
	timing Timing
	pid    *PID

	state     State
	reached   bool
	reachedAt time.Time
	nextLog   time.Time
	phase     CapturePhase
	active    Channel
}

// NewHold creates a hold that starts seeking at the given time.
func NewHold(spec HoldSpec, gains Gains, maxPWM int, timing Timing, start time.Time) *Hold {
	return &Hold{
		spec:    spec,
		timing:  timing,
		pid:     NewPID(gains, maxPWM),
		state:   StateSeeking,
		nextLog: start,
		phase:   CaptureNone,
	}
}

// Process runs one control tick.
func (h *Hold) Process(in Input) Output {
	if h.state == StateDone {
		return Output{Drive: Off(), Done: true}
	}

	res := h.pid.Step(h.spec.Setpoint, in.Temperature)
	out := Output{
		PID:   res,
		Drive: Actuate(res.Output, res.Error),
	}

	// Latches once; drifting back out of tolerance does not restart the timer.
	if !h.reached && math32.Abs(res.Error) < Tolerance {
		h.reached = true
		h.reachedAt = in.Time
		h.state = StateHolding
		out.Events = append(out.Events, h.event(in, EventSetpointReached))
	}

	if h.timing.LogInterval > 0 && in.Time.Sub(h.nextLog) >= h.timing.LogInterval {
		h.nextLog = h.nextLog.Add(h.timing.LogInterval)
		ev := h.event(in, EventTelemetry)
		ev.Elapsed = h.nextLog.Sub(h.timing.RunStart)
		out.Events = append(out.Events, ev)
	}

	if h.reached && in.Time.Sub(h.reachedAt) > h.spec.Duration {
		h.advance(in, &out)
	}

	return out
}

// advance moves the capture sub-sequence forward by at most one step.
func (h *Hold) advance(in Input, out *Output) {
	switch h.phase {
	case CaptureAwaitingFAMAck, CaptureAwaitingCY5Ack:
		if !in.Acked {
			return
		}
		out.LEDs = &LEDLevels{}
		ev := h.event(in, EventCaptureAck)
		ev.Channel = h.active
		out.Events = append(out.Events, ev)
		h.active = ""
		if h.phase == CaptureAwaitingFAMAck && h.spec.CaptureCY5 {
			h.phase = CaptureAwaitingCY5
		} else {
			h.phase = CaptureDone
		}
		return

	case CaptureNone:
		switch {
		case h.spec.CaptureFAM:
			h.phase = CaptureAwaitingFAM
		case h.spec.CaptureCY5:
			h.phase = CaptureAwaitingCY5
		default:
			h.phase = CaptureDone
		}
	}

	switch h.phase {
	case CaptureAwaitingFAM:
		h.request(in, out, ChannelFAM, LEDLevels{FAM: LEDFull})
		h.phase = CaptureAwaitingFAMAck
	case CaptureAwaitingCY5:
		h.request(in, out, ChannelCY5, LEDLevels{CY5: LEDFull})
		h.phase = CaptureAwaitingCY5Ack
	case CaptureDone:
		h.state = StateDone
		out.Drive = Off()
		out.Done = true
		out.Events = append(out.Events, h.event(in, EventHoldComplete))
	}
}

func (h *Hold) request(in Input, out *Output, ch Channel, leds LEDLevels) {
	h.state = StateCapturing
	h.active = ch
	out.LEDs = &leds
	ev := h.event(in, EventCaptureRequest)
	ev.Channel = ch
	out.Events = append(out.Events, ev)
}

func (h *Hold) event(in Input, t EventType) Event {
	return Event{
		Timestamp:   in.Time,
		Type:        t,
		Temperature: in.Temperature,
		Setpoint:    h.spec.Setpoint,
	}
}

// AwaitingAck reports whether the hold is waiting for the host to finish an
// image capture.
func (h *Hold) AwaitingAck() bool {
	return h.phase == CaptureAwaitingFAMAck || h.phase == CaptureAwaitingCY5Ack
}

// State returns the sequencer state.
func (h *Hold) State() State {
	return h.state
}

// Phase returns the capture phase.
func (h *Hold) Phase() CapturePhase {
	return h.phase
}

// Reached reports whether the setpoint was reached and when.
func (h *Hold) Reached() (bool, time.Time) {
	return h.reached, h.reachedAt
}
