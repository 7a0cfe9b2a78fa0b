package hardware

import (
	"time"

	"github.com/sweeney/thermal-cycler/internal/control"
)

// simStep is the largest integration step used by the plant model.
const simStep = 50 * time.Millisecond

// SimConfig describes the simulated block.
type SimConfig struct {
	// Ambient and Initial temperatures, °C.
	Ambient float64
	Initial float64
	// HeatRate is the heating rate at full duty, °C/s.
	HeatRate float64
	// LossRate is the passive loss coefficient towards ambient, 1/s.
	LossRate float64
	// FanRate is the additional loss coefficient with the fan on, 1/s.
	FanRate float64
}

// DefaultSimConfig returns a block that heats at roughly 2.4 °C/s at the
// stock duty ceiling and sheds heat quickly with the fan on.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		Ambient:  25,
		Initial:  25,
		HeatRate: 8,
		LossRate: 0.0005,
		FanRate:  0.2,
	}
}

// SimBoard models the block as a first-order thermal plant driven by the
// heater duty and the fan. Time comes from the injected clock, so the model
// runs as fast as the caller advances it.
type SimBoard struct {
	cfg  SimConfig
	now  func() time.Time
	temp float64
	last time.Time

	duty uint8
	fan  bool
	leds control.LEDLevels

	Closed bool
}

// NewSimBoard creates a simulated block at its initial temperature.
func NewSimBoard(cfg SimConfig, now func() time.Time) *SimBoard {
	return &SimBoard{
		cfg:  cfg,
		now:  now,
		temp: cfg.Initial,
		last: now(),
	}
}

func (s *SimBoard) advance() {
	t := s.now()
	remaining := t.Sub(s.last)
	s.last = t

	for remaining > 0 {
		step := remaining
		if step > simStep {
			step = simStep
		}
		remaining -= step

		loss := s.cfg.LossRate
		if s.fan {
			loss += s.cfg.FanRate
		}
		heat := s.cfg.HeatRate * float64(s.duty) / control.DutyMax
		s.temp += (heat - (s.temp-s.cfg.Ambient)*loss) * step.Seconds()
	}
}

// ReadTemperature advances the model to now and returns the block temperature.
func (s *SimBoard) ReadTemperature() (float32, error) {
	s.advance()
	return float32(s.temp), nil
}

// SetHeater applies the heating duty from now on. Only the first line heats.
func (s *SimBoard) SetHeater(out1, out2 uint8) error {
	s.advance()
	s.duty = out1
	return nil
}

// SetFan switches the modelled fan.
func (s *SimBoard) SetFan(on bool) error {
	s.advance()
	s.fan = on
	return nil
}

// SetLEDs records the LED levels.
func (s *SimBoard) SetLEDs(levels control.LEDLevels) error {
	s.leds = levels
	return nil
}

// Fan reports the modelled fan state.
func (s *SimBoard) Fan() bool {
	return s.fan
}

// LEDs reports the last LED levels.
func (s *SimBoard) LEDs() control.LEDLevels {
	return s.leds
}

// Close marks the board as closed.
func (s *SimBoard) Close() error {
	s.Closed = true
	return nil
}

// SimClock is a virtual clock whose Sleep advances time instantly.
type SimClock struct {
	t time.Time
}

// NewSimClock starts a virtual clock at the given time.
func NewSimClock(start time.Time) *SimClock {
	return &SimClock{t: start}
}

// Now returns the virtual time.
func (c *SimClock) Now() time.Time {
	return c.t
}

// Sleep advances the virtual time by d.
func (c *SimClock) Sleep(d time.Duration) {
	c.t = c.t.Add(d)
}
