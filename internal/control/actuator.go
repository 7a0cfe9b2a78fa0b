package control

// Fan hysteresis thresholds on the control error (setpoint - measured), °C.
const (
	// FanOnBelow turns the assist fan on once the block overshoots by more
	// than this many degrees.
	FanOnBelow float32 = -5
	// FanOffAbove turns the fan off once the block is below setpoint.
	FanOffAbove float32 = 0
)

// FanCommand is the fan action for one tick.
type FanCommand int

const (
	// FanHold leaves the fan as it is.
	FanHold FanCommand = iota
	FanOn
	FanOff
)

func (f FanCommand) String() string {
	switch f {
	case FanOn:
		return "ON"
	case FanOff:
		return "OFF"
	}
	return "HOLD"
}

// Drive is the actuator command for one tick. Out1 carries the heating duty;
// Out2 is the complementary line and is only ever driven low.
type Drive struct {
	Out1 uint8
	Out2 uint8
	Fan  FanCommand
}

// Actuate maps a rescaled PID output and the current error onto the heater
// lines and the fan. Negative outputs drive both lines to zero; cooling is
// only ever done by the fan.
func Actuate(output int, err float32) Drive {
	var d Drive

	switch {
	case err < FanOnBelow:
		d.Fan = FanOn
	case err > FanOffAbove:
		d.Fan = FanOff
	default:
		d.Fan = FanHold
	}

	if output < 0 {
		output = 0
	}
	if output > DutyMax {
		output = DutyMax
	}
	d.Out1 = uint8(output)
	d.Out2 = 0
	return d
}

// Off is the drive applied when a hold ends or the run aborts.
func Off() Drive {
	return Drive{Fan: FanOff}
}
