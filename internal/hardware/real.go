//go:build linux

package hardware

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/host/v3"

	"github.com/sweeney/thermal-cycler/internal/control"
	"github.com/sweeney/thermal-cycler/internal/thermistor"
)

// adcSampleRate is the ADS1115 data rate requested for each bridge leg.
const adcSampleRate = 128 * physic.Hertz

var adcChannels = []ads1x15.Channel{
	ads1x15.Channel0,
	ads1x15.Channel1,
	ads1x15.Channel2,
	ads1x15.Channel3,
}

// RealBoard drives an actual thermal block.
type RealBoard struct {
	pins Pins
	freq physic.Frequency

	bus    i2c.BusCloser
	adc    *ads1x15.Dev
	refPin ads1x15.PinADC
	rxPin  ads1x15.PinADC

	heater1 gpio.PinIO
	heater2 gpio.PinIO
	famLED  gpio.PinIO
	cy5LED  gpio.PinIO

	chip *gpiocdev.Chip
	fan  *gpiocdev.Line

	sensor *thermistor.Sensor
}

// NewRealBoard opens the ADC, PWM pins and fan line and drives every output
// to its safe state (heater off, fan off, LEDs off).
func NewRealBoard(pins Pins) (*RealBoard, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init host drivers: %w", err)
	}

	b := &RealBoard{
		pins: pins,
		freq: physic.Frequency(pins.PWMFrequencyHz) * physic.Hertz,
	}
	if err := b.open(); err != nil {
		b.Close()
		return nil, err
	}
	b.sensor = thermistor.NewSensor(b)

	if err := b.SetHeater(0, 0); err != nil {
		b.Close()
		return nil, err
	}
	if err := b.SetLEDs(control.LEDLevels{}); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

func (b *RealBoard) open() error {
	bus, err := i2creg.Open(b.pins.I2CBus)
	if err != nil {
		return fmt.Errorf("open i2c bus %q: %w", b.pins.I2CBus, err)
	}
	b.bus = bus

	adc, err := ads1x15.NewADS1115(bus, &ads1x15.Opts{I2cAddress: b.pins.ADCAddress})
	if err != nil {
		return fmt.Errorf("open ads1115 at 0x%02x: %w", b.pins.ADCAddress, err)
	}
	b.adc = adc

	maxV := physic.ElectricPotential(b.pins.SupplyVolts * float64(physic.Volt))
	if b.refPin, err = b.adcPin(b.pins.ReferenceChannel, maxV); err != nil {
		return fmt.Errorf("reference leg: %w", err)
	}
	if b.rxPin, err = b.adcPin(b.pins.SensingChannel, maxV); err != nil {
		return fmt.Errorf("sensing leg: %w", err)
	}

	if b.heater1, err = pwmPin(b.pins.HeaterPin1); err != nil {
		return err
	}
	if b.heater2, err = pwmPin(b.pins.HeaterPin2); err != nil {
		return err
	}
	if b.famLED, err = pwmPin(b.pins.FAMLEDPin); err != nil {
		return err
	}
	if b.cy5LED, err = pwmPin(b.pins.CY5LEDPin); err != nil {
		return err
	}

	chip, err := gpiocdev.NewChip(b.pins.FanChip)
	if err != nil {
		return fmt.Errorf("open gpio chip: %w", err)
	}
	b.chip = chip

	fan, err := chip.RequestLine(b.pins.FanLine, gpiocdev.AsOutput(0))
	if err != nil {
		return fmt.Errorf("request fan line %d: %w", b.pins.FanLine, err)
	}
	b.fan = fan
	return nil
}

func (b *RealBoard) adcPin(channel int, maxV physic.ElectricPotential) (ads1x15.PinADC, error) {
	if channel < 0 || channel >= len(adcChannels) {
		return nil, fmt.Errorf("adc channel %d out of range", channel)
	}
	return b.adc.PinForChannel(adcChannels[channel], maxV, adcSampleRate, ads1x15.BestQuality)
}

func pwmPin(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("unknown pin %q", name)
	}
	return p, nil
}

// ReadBridge samples both bridge legs and scales them to 10-bit counts of the
// supply rail, the units the thermistor calibration was fitted in.
func (b *RealBoard) ReadBridge() (thermistor.Reading, error) {
	ref, err := b.refPin.Read()
	if err != nil {
		return thermistor.Reading{}, fmt.Errorf("read reference leg: %w", err)
	}
	rx, err := b.rxPin.Read()
	if err != nil {
		return thermistor.Reading{}, fmt.Errorf("read sensing leg: %w", err)
	}

	supply := b.pins.SupplyVolts * float64(physic.Volt)
	scale := float64(thermistor.DefaultFullScale) / supply
	return thermistor.Reading{
		Reference: float32(float64(ref.V) * scale),
		Sensing:   float32(float64(rx.V) * scale),
		FullScale: thermistor.DefaultFullScale,
	}, nil
}

// ReadTemperature returns the block temperature.
func (b *RealBoard) ReadTemperature() (float32, error) {
	return b.sensor.ReadTemperature()
}

// SetHeater sets the duty of both heater lines.
func (b *RealBoard) SetHeater(out1, out2 uint8) error {
	if err := b.setDuty(b.heater1, out1); err != nil {
		return fmt.Errorf("heater line 1: %w", err)
	}
	if err := b.setDuty(b.heater2, out2); err != nil {
		return fmt.Errorf("heater line 2: %w", err)
	}
	return nil
}

// SetFan switches the assist fan.
func (b *RealBoard) SetFan(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := b.fan.SetValue(v); err != nil {
		return fmt.Errorf("fan line: %w", err)
	}
	return nil
}

// SetLEDs sets both illumination LEDs, inverting for active-low wiring.
func (b *RealBoard) SetLEDs(levels control.LEDLevels) error {
	if err := b.setDuty(b.famLED, physicalLevel(levels.FAM, b.pins.LEDActiveLow)); err != nil {
		return fmt.Errorf("FAM LED: %w", err)
	}
	if err := b.setDuty(b.cy5LED, physicalLevel(levels.CY5, b.pins.LEDActiveLow)); err != nil {
		return fmt.Errorf("CY5 LED: %w", err)
	}
	return nil
}

func (b *RealBoard) setDuty(p gpio.PinIO, level uint8) error {
	switch level {
	case 0:
		return p.Out(gpio.Low)
	case control.DutyMax:
		return p.Out(gpio.High)
	}
	duty := gpio.Duty(int64(level) * int64(gpio.DutyMax) / control.DutyMax)
	return p.PWM(duty, b.freq)
}

// Close drives every output to its safe state and releases the hardware.
func (b *RealBoard) Close() error {
	var errs []error

	for _, p := range []gpio.PinIO{b.heater1, b.heater2} {
		if p != nil {
			if err := p.Out(gpio.Low); err != nil {
				errs = append(errs, fmt.Errorf("heater off: %w", err))
			}
		}
	}
	off := physicalLevel(0, b.pins.LEDActiveLow)
	for _, p := range []gpio.PinIO{b.famLED, b.cy5LED} {
		if p != nil {
			if err := b.setDuty(p, off); err != nil {
				errs = append(errs, fmt.Errorf("LED off: %w", err))
			}
		}
	}
	if b.fan != nil {
		if err := b.fan.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("fan off: %w", err))
		}
		if err := b.fan.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close fan line: %w", err))
		}
	}
	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	for _, p := range []ads1x15.PinADC{b.refPin, b.rxPin} {
		if p != nil {
			if err := p.Halt(); err != nil {
				errs = append(errs, fmt.Errorf("halt adc pin: %w", err))
			}
		}
	}
	if b.bus != nil {
		if err := b.bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close i2c bus: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
