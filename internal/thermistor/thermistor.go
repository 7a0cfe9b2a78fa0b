// Package thermistor converts a thermistor bridge reading into degrees Celsius.
// The arithmetic is float32 throughout to match the instrument's calibration,
// which was fitted on a controller without double precision.
package thermistor

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
)

// Bridge constants for the 100 kΩ NTC thermistor fitted to the block.
const (
	// ReferenceResistance is the fixed resistor R0 in the bridge, in ohms.
	ReferenceResistance float32 = 14000

	// Steinhart–Hart coefficients.
	CoefficientA float32 = 0.8269925494 * 0.001
	CoefficientB float32 = 2.088185118 * 0.0001
	CoefficientC float32 = 0.8054469376 * 0.0000001

	// KelvinOffset converts kelvin to degrees Celsius.
	KelvinOffset float32 = 273.15

	// DefaultFullScale is the raw value of the supply rail on a 10-bit converter.
	DefaultFullScale float32 = 1023
)

// ErrImplausibleReading is returned when a reading cannot correspond to a real
// thermistor (open or shorted leg, or a non-finite result).
var ErrImplausibleReading = errors.New("thermistor: implausible reading")

// Reading is one pair of raw samples taken across the bridge.
// Reference and Sensing are in the same units as FullScale.
type Reading struct {
	Reference float32 // R0 leg
	Sensing   float32 // Rx leg
	FullScale float32 // raw value of the supply reference
}

// Resistance derives the sensing resistor's value in ohms from the bridge ratio.
func Resistance(r Reading) (float32, error) {
	fs := r.FullScale
	if fs <= 0 {
		return 0, fmt.Errorf("%w: full scale %v", ErrImplausibleReading, fs)
	}
	vout := r.Reference - r.Sensing
	ratio := vout / fs
	num := 0.5 - ratio
	den := 0.5 + ratio
	if num <= 0 || den <= 0 {
		return 0, fmt.Errorf("%w: bridge ratio %v out of range", ErrImplausibleReading, ratio)
	}
	rx := (ReferenceResistance * num) / den
	if rx <= 0 || math32.IsInf(rx, 0) || math32.IsNaN(rx) {
		return 0, fmt.Errorf("%w: resistance %v", ErrImplausibleReading, rx)
	}
	return rx, nil
}

// Celsius evaluates the Steinhart–Hart equation for a thermistor resistance.
func Celsius(rx float32) (float32, error) {
	if rx <= 0 {
		return 0, fmt.Errorf("%w: resistance %v", ErrImplausibleReading, rx)
	}
	lnR := math32.Log(rx)
	t := 1/(CoefficientA+(CoefficientB+(CoefficientC*lnR*lnR))*lnR) - KelvinOffset
	if math32.IsInf(t, 0) || math32.IsNaN(t) {
		return 0, fmt.Errorf("%w: temperature %v", ErrImplausibleReading, t)
	}
	return t, nil
}

// Temperature converts a bridge reading into degrees Celsius.
func Temperature(r Reading) (float32, error) {
	rx, err := Resistance(r)
	if err != nil {
		return 0, err
	}
	return Celsius(rx)
}

// Source produces raw bridge readings from hardware.
type Source interface {
	ReadBridge() (Reading, error)
}

// Sensor reads a Source and converts each reading to a temperature.
type Sensor struct {
	src Source
}

// NewSensor wraps a bridge source.
func NewSensor(src Source) *Sensor {
	return &Sensor{src: src}
}

// ReadTemperature takes one reading and returns degrees Celsius.
func (s *Sensor) ReadTemperature() (float32, error) {
	r, err := s.src.ReadBridge()
	if err != nil {
		return 0, fmt.Errorf("read bridge: %w", err)
	}
	return Temperature(r)
}
