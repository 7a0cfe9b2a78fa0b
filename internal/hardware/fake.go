package hardware

import (
	"errors"

	"github.com/sweeney/thermal-cycler/internal/control"
)

// HeaterWrite is one recorded SetHeater call.
type HeaterWrite struct {
	Out1 uint8
	Out2 uint8
}

// FakeBoard is a test double that returns scripted temperatures and records
// every output write.
type FakeBoard struct {
	// Temperatures contains scripted readings. Each ReadTemperature call
	// consumes the next one; once exhausted the last is repeated.
	Temperatures []float32

	// TemperatureFunc, if set, is used instead of Temperatures.
	TemperatureFunc func() float32

	// index tracks current position in Temperatures
	index int

	// Reads counts ReadTemperature calls.
	Reads int

	// Heater records every SetHeater call.
	Heater []HeaterWrite

	// Fan is the current fan state; FanWrites records every SetFan call.
	Fan       bool
	FanWrites []bool

	// LEDs is the current logical LED state; LEDWrites records every call.
	LEDs      control.LEDLevels
	LEDWrites []control.LEDLevels

	// ReadError, if set, will be returned by ReadTemperature.
	ReadError error

	// WriteError, if set, will be returned by every output call.
	WriteError error

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeBoard creates a FakeBoard with the given scripted temperatures.
func NewFakeBoard(temps []float32) *FakeBoard {
	return &FakeBoard{Temperatures: temps}
}

// ReadTemperature returns the next scripted temperature.
func (f *FakeBoard) ReadTemperature() (float32, error) {
	f.Reads++
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	if f.TemperatureFunc != nil {
		return f.TemperatureFunc(), nil
	}
	if len(f.Temperatures) == 0 {
		return 0, errors.New("no temperatures configured")
	}

	t := f.Temperatures[f.index]
	if f.index < len(f.Temperatures)-1 {
		f.index++
	}
	return t, nil
}

// SetHeater records the heater duty.
func (f *FakeBoard) SetHeater(out1, out2 uint8) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Heater = append(f.Heater, HeaterWrite{Out1: out1, Out2: out2})
	return nil
}

// SetFan records the fan state.
func (f *FakeBoard) SetFan(on bool) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Fan = on
	f.FanWrites = append(f.FanWrites, on)
	return nil
}

// SetLEDs records the LED levels.
func (f *FakeBoard) SetLEDs(levels control.LEDLevels) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.LEDs = levels
	f.LEDWrites = append(f.LEDWrites, levels)
	return nil
}

// LastHeater returns the most recent heater write.
func (f *FakeBoard) LastHeater() (HeaterWrite, bool) {
	if len(f.Heater) == 0 {
		return HeaterWrite{}, false
	}
	return f.Heater[len(f.Heater)-1], true
}

// Close marks the board as closed.
func (f *FakeBoard) Close() error {
	f.Closed = true
	return nil
}

// Reset rewinds the script and clears recorded writes.
func (f *FakeBoard) Reset() {
	f.index = 0
	f.Reads = 0
	f.Heater = nil
	f.Fan = false
	f.FanWrites = nil
	f.LEDs = control.LEDLevels{}
	f.LEDWrites = nil
	f.Closed = false
}
