//go:build !linux

package hardware

import (
	"errors"

	"github.com/sweeney/thermal-cycler/internal/control"
)

var errUnsupported = errors.New("hardware: not supported on this platform (requires Linux)")

// RealBoard is not available on non-Linux platforms.
type RealBoard struct{}

// NewRealBoard returns an error on non-Linux platforms.
func NewRealBoard(pins Pins) (*RealBoard, error) {
	return nil, errUnsupported
}

// ReadTemperature is not implemented on non-Linux platforms.
func (b *RealBoard) ReadTemperature() (float32, error) {
	return 0, errUnsupported
}

// SetHeater is not implemented on non-Linux platforms.
func (b *RealBoard) SetHeater(out1, out2 uint8) error {
	return errUnsupported
}

// SetFan is not implemented on non-Linux platforms.
func (b *RealBoard) SetFan(on bool) error {
	return errUnsupported
}

// SetLEDs is not implemented on non-Linux platforms.
func (b *RealBoard) SetLEDs(levels control.LEDLevels) error {
	return errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (b *RealBoard) Close() error {
	return nil
}
