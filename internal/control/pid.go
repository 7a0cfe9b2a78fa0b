package control

import (
	"math"

	"github.com/chewxy/math32"
)

// Output bounds for the rescaled PID command.
const (
	// OutputFloor lets callers see how hard the loop wanted to cool even though
	// the heater is never driven negative.
	OutputFloor = -255

	// DutyMax is the largest duty value a heater or LED line accepts.
	DutyMax = 255

	// rescaleInputSpan is the raw PID range mapped onto [0, maxPWM].
	rescaleInputSpan = 1000
)

// PIDResult captures one controller step for telemetry and tests.
type PIDResult struct {
	Error      float32
	Derivative float32
	Integral   float32
	Raw        float32
	Output     int
}

// PID is a discrete, per-tick PID controller. The integral accumulates
// without bound until Reset.
// Not safe for concurrent use.
type PID struct {
	gains  Gains
	maxPWM int

	previousError float32
	integralError float32
}

// NewPID creates a controller with zeroed state.
func NewPID(gains Gains, maxPWM int) *PID {
	return &PID{gains: gains, maxPWM: maxPWM}
}

// Reset zeroes the error history.
func (p *PID) Reset() {
	p.previousError = 0
	p.integralError = 0
}

// Step advances the controller by one tick.
func (p *PID) Step(setpoint, measured float32) PIDResult {
	e := setpoint - measured
	derivative := e - p.previousError
	p.integralError += e
	p.previousError = e

	raw := p.gains.Kp*e + p.gains.Ki*p.integralError + p.gains.Kd*derivative

	return PIDResult{
		Error:      e,
		Derivative: derivative,
		Integral:   p.integralError,
		Raw:        raw,
		Output:     Rescale(raw, p.maxPWM),
	}
}

// Rescale truncates raw to an integer, maps [0, 1000] onto [0, maxPWM] with
// integer arithmetic, and clamps the result to [OutputFloor, maxPWM].
func Rescale(raw float32, maxPWM int) int {
	var v int64
	switch {
	case math32.IsNaN(raw):
		v = 0
	case raw >= math.MaxInt32:
		v = math.MaxInt32
	case raw <= math.MinInt32:
		v = math.MinInt32
	default:
		v = int64(raw)
	}

	mapped := v * int64(maxPWM) / rescaleInputSpan
	if mapped < OutputFloor {
		return OutputFloor
	}
	if mapped > int64(maxPWM) {
		return maxPWM
	}
	return int(mapped)
}
