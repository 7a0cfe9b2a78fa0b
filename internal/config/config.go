// Package config loads the instrument configuration: PID gains, the RT-PCR
// program, channel enablement, loop timing, wiring, and service endpoints.
// A loaded Config is treated as immutable for the duration of a run.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/thermal-cycler/internal/control"
	"github.com/sweeney/thermal-cycler/internal/hardware"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the instrument configuration.
type Config struct {
	Gains    GainsConfig    `yaml:"gains"`
	Program  ProgramConfig  `yaml:"program"`
	Channels ChannelsConfig `yaml:"channels"`
	Control  ControlConfig  `yaml:"control"`
	Hardware HardwareConfig `yaml:"hardware"`
	Host     HostConfig     `yaml:"host"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	HTTP     HTTPConfig     `yaml:"http"`
}

// GainsConfig contains the PID coefficients.
type GainsConfig struct {
	Kp float32 `yaml:"kp"`
	Kd float32 `yaml:"kd"`
	Ki float32 `yaml:"ki"`
}

// StepConfig is one temperature step of the program.
type StepConfig struct {
	Temp float32       `yaml:"temp"`
	Time time.Duration `yaml:"time"`
}

// ProgramConfig is the RT-PCR program: reverse transcription, hot start,
// then Cycles repetitions of denature and anneal.
type ProgramConfig struct {
	ReverseTranscription StepConfig `yaml:"reverse_transcription"`
	HotStart             StepConfig `yaml:"hot_start"`
	Denature             StepConfig `yaml:"denature"`
	Anneal               StepConfig `yaml:"anneal"`
	Cycles               int        `yaml:"cycles"`
}

// ChannelsConfig enables the fluorescence channels.
type ChannelsConfig struct {
	FAM bool `yaml:"fam"`
	CY5 bool `yaml:"cy5"`
}

// ControlConfig contains loop timing and actuator limits.
type ControlConfig struct {
	Interval    time.Duration `yaml:"interval"`     // control tick spacing
	LogInterval time.Duration `yaml:"log_interval"` // telemetry spacing
	MaxPWM      int           `yaml:"max_pwm"`      // heater duty ceiling, 0-255
}

// HardwareConfig describes how the board is wired.
type HardwareConfig struct {
	I2CBus           string  `yaml:"i2c_bus"`
	ADCAddress       uint16  `yaml:"adc_address"`
	ReferenceChannel int     `yaml:"reference_channel"`
	SensingChannel   int     `yaml:"sensing_channel"`
	SupplyVolts      float64 `yaml:"supply_volts"`
	HeaterPin1       string  `yaml:"heater_pin_1"`
	HeaterPin2       string  `yaml:"heater_pin_2"`
	FAMLEDPin        string  `yaml:"fam_led_pin"`
	CY5LEDPin        string  `yaml:"cy5_led_pin"`
	LEDActiveLow     bool    `yaml:"led_active_low"`
	PWMFrequencyHz   int     `yaml:"pwm_frequency_hz"`
	FanChip          string  `yaml:"fan_chip"`
	FanLine          int     `yaml:"fan_line"`
}

// HostConfig contains the acquisition host serial link settings.
type HostConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// MQTTConfig contains the telemetry mirror settings. An empty broker disables it.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`

	// Heartbeat is the interval between retained status snapshots; 0 disables.
	Heartbeat time.Duration `yaml:"heartbeat"`
}

// HTTPConfig contains the status server settings. An empty address disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the instrument's stock configuration.
func Default() *Config {
	pins := hardware.DefaultPins()
	return &Config{
		Gains: GainsConfig{Kp: 40, Kd: 800, Ki: 0},
		Program: ProgramConfig{
			ReverseTranscription: StepConfig{Temp: 55, Time: 0},
			HotStart:             StepConfig{Temp: 100, Time: 10 * time.Second},
			Denature:             StepConfig{Temp: 100, Time: 2 * time.Second},
			Anneal:               StepConfig{Temp: 55, Time: 2 * time.Second},
			Cycles:               40,
		},
		Channels: ChannelsConfig{FAM: true, CY5: true},
		Control: ControlConfig{
			Interval:    100 * time.Millisecond,
			LogInterval: time.Second,
			MaxPWM:      75,
		},
		Hardware: HardwareConfig{
			I2CBus:           pins.I2CBus,
			ADCAddress:       pins.ADCAddress,
			ReferenceChannel: pins.ReferenceChannel,
			SensingChannel:   pins.SensingChannel,
			SupplyVolts:      pins.SupplyVolts,
			HeaterPin1:       pins.HeaterPin1,
			HeaterPin2:       pins.HeaterPin2,
			FAMLEDPin:        pins.FAMLEDPin,
			CY5LEDPin:        pins.CY5LEDPin,
			LEDActiveLow:     pins.LEDActiveLow,
			PWMFrequencyHz:   pins.PWMFrequencyHz,
			FanChip:          pins.FanChip,
			FanLine:          pins.FanLine,
		},
		Host: HostConfig{
			Port:     "/dev/ttyACM0",
			BaudRate: 115200,
		},
		MQTT: MQTTConfig{
			Broker:    "",
			ClientID:  "thermal-cycler",
			Heartbeat: 15 * time.Minute,
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist it
// returns the defaults; fields missing from the file keep their defaults.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults fills zero values that have no meaningful zero.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Control.Interval == 0 {
		c.Control.Interval = def.Control.Interval
	}
	if c.Control.MaxPWM == 0 {
		c.Control.MaxPWM = def.Control.MaxPWM
	}
	if c.Hardware.ADCAddress == 0 {
		c.Hardware.ADCAddress = def.Hardware.ADCAddress
	}
	if c.Hardware.SupplyVolts == 0 {
		c.Hardware.SupplyVolts = def.Hardware.SupplyVolts
	}
	if c.Hardware.PWMFrequencyHz == 0 {
		c.Hardware.PWMFrequencyHz = def.Hardware.PWMFrequencyHz
	}
	if c.Hardware.FanChip == "" {
		c.Hardware.FanChip = def.Hardware.FanChip
	}
	if c.Host.BaudRate == 0 {
		c.Host.BaudRate = def.Host.BaudRate
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = def.MQTT.ClientID
	}
}

// Validate checks that the configuration can drive a run.
func (c *Config) Validate() error {
	if c.Control.Interval <= 0 {
		return fmt.Errorf("%w: control interval must be positive, got %v", ErrInvalid, c.Control.Interval)
	}
	if c.Control.LogInterval < 0 {
		return fmt.Errorf("%w: log interval must not be negative, got %v", ErrInvalid, c.Control.LogInterval)
	}
	if c.Control.MaxPWM < 0 || c.Control.MaxPWM > control.DutyMax {
		return fmt.Errorf("%w: max_pwm must be within 0-%d, got %d", ErrInvalid, control.DutyMax, c.Control.MaxPWM)
	}
	if c.Hardware.ReferenceChannel == c.Hardware.SensingChannel {
		return fmt.Errorf("%w: reference and sensing legs share ADC channel %d", ErrInvalid, c.Hardware.SensingChannel)
	}
	if c.Hardware.SupplyVolts <= 0 {
		return fmt.Errorf("%w: supply_volts must be positive", ErrInvalid)
	}
	if c.MQTT.Heartbeat < 0 {
		return fmt.Errorf("%w: heartbeat must not be negative, got %v", ErrInvalid, c.MQTT.Heartbeat)
	}
	return nil
}

// ControlGains returns the PID gains.
func (c *Config) ControlGains() control.Gains {
	return control.Gains{Kp: c.Gains.Kp, Kd: c.Gains.Kd, Ki: c.Gains.Ki}
}

// Pins returns the board wiring.
func (c *Config) Pins() hardware.Pins {
	h := c.Hardware
	return hardware.Pins{
		I2CBus:           h.I2CBus,
		ADCAddress:       h.ADCAddress,
		ReferenceChannel: h.ReferenceChannel,
		SensingChannel:   h.SensingChannel,
		SupplyVolts:      h.SupplyVolts,
		HeaterPin1:       h.HeaterPin1,
		HeaterPin2:       h.HeaterPin2,
		FAMLEDPin:        h.FAMLEDPin,
		CY5LEDPin:        h.CY5LEDPin,
		LEDActiveLow:     h.LEDActiveLow,
		PWMFrequencyHz:   h.PWMFrequencyHz,
		FanChip:          h.FanChip,
		FanLine:          h.FanLine,
	}
}
