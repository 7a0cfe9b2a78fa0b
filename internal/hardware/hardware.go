// Package hardware abstracts the thermal block: the thermistor bridge, the two
// heater control lines, the assist fan, and the two illumination LEDs.
// The real implementation drives a Linux board (periph.io for the ADC and PWM,
// GPIO character device for the fan). The fake records every write for tests,
// and the simulator models the block as a first-order thermal plant.
package hardware

import "github.com/sweeney/thermal-cycler/internal/control"

// Sensor reads the block temperature.
type Sensor interface {
	// ReadTemperature returns the block temperature in degrees Celsius.
	ReadTemperature() (float32, error)
}

// Outputs drives the heater, fan and LEDs.
type Outputs interface {
	// SetHeater sets the duty (0-255) of the two heater control lines.
	SetHeater(out1, out2 uint8) error

	// SetFan switches the assist fan.
	SetFan(on bool) error

	// SetLEDs sets the logical LED intensities; 255 is full brightness.
	SetLEDs(levels control.LEDLevels) error
}

// Board is a complete thermal block.
type Board interface {
	Sensor
	Outputs

	// Close turns everything off and releases resources.
	Close() error
}

// Default pin assignments (BCM numbering for GPIO, ADS1115 inputs for the bridge).
const (
	DefaultI2CBus           = ""
	DefaultADCAddress       = 0x48
	DefaultReferenceChannel = 0
	DefaultSensingChannel   = 1
	DefaultSupplyVolts      = 5.0
	DefaultHeaterPin1       = "GPIO12"
	DefaultHeaterPin2       = "GPIO13"
	DefaultFAMLEDPin        = "GPIO18"
	DefaultCY5LEDPin        = "GPIO19"
	DefaultFanChip          = "gpiochip0"
	DefaultFanLine          = 21
	DefaultPWMFrequencyHz   = 490
)

// Pins describes how the real board is wired.
type Pins struct {
	I2CBus           string
	ADCAddress       uint16
	ReferenceChannel int
	SensingChannel   int
	SupplyVolts      float64

	HeaterPin1     string
	HeaterPin2     string
	FAMLEDPin      string
	CY5LEDPin      string
	LEDActiveLow   bool
	PWMFrequencyHz int

	FanChip string
	FanLine int
}

// DefaultPins returns the standard wiring.
func DefaultPins() Pins {
	return Pins{
		I2CBus:           DefaultI2CBus,
		ADCAddress:       DefaultADCAddress,
		ReferenceChannel: DefaultReferenceChannel,
		SensingChannel:   DefaultSensingChannel,
		SupplyVolts:      DefaultSupplyVolts,
		HeaterPin1:       DefaultHeaterPin1,
		HeaterPin2:       DefaultHeaterPin2,
		FAMLEDPin:        DefaultFAMLEDPin,
		CY5LEDPin:        DefaultCY5LEDPin,
		LEDActiveLow:     true,
		PWMFrequencyHz:   DefaultPWMFrequencyHz,
		FanChip:          DefaultFanChip,
		FanLine:          DefaultFanLine,
	}
}

// physicalLevel converts a logical LED level to the level written to the pin.
func physicalLevel(level uint8, activeLow bool) uint8 {
	if activeLow {
		return control.DutyMax - level
	}
	return level
}
