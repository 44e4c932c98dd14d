package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SonarConfig holds the pins for one HC-SR04 ranging sensor.
type SonarConfig struct {
	TriggerPin int `yaml:"trigger_pin"`
	EchoPin    int `yaml:"echo_pin"`
}

// BusConfig holds the pins for one 3-bit parallel command bus.
// Bit 2 is the direction bit, bits 1:0 the intensity level.
type BusConfig struct {
	Bit2Pin int `yaml:"bit2_pin"`
	Bit1Pin int `yaml:"bit1_pin"`
	Bit0Pin int `yaml:"bit0_pin"`
}

// MotorConfig holds the pins for one H-bridge motor channel.
type MotorConfig struct {
	PwmPin     int `yaml:"pwm_pin"`
	ForwardPin int `yaml:"forward_pin"`
	ReversePin int `yaml:"reverse_pin"`
}

// AcquisitionConfig holds the ranging schedule parameters. Fixed at
// startup, not runtime-mutable.
type AcquisitionConfig struct {
	PingIntervalMs int `yaml:"ping_interval_ms"` // one sensor slot; full cycle = 3×
	MaxRangeCm     int `yaml:"max_range_cm"`     // beyond this, "no echo" is reported as absence
}

// SerialConfig describes the telemetry link to the host.
type SerialConfig struct {
	Device    string `yaml:"device"`
	BaudRate  int    `yaml:"baud_rate"`
	Separator string `yaml:"separator"` // single field separator character
}

// DefaultsConfig contains generic parameters (loop period, debug, mocks).
type DefaultsConfig struct {
	LoopPeriodMs int  `yaml:"loop_period_ms"` // main loop iteration period
	DebugLevel   int  `yaml:"debug_level"`    // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO     bool `yaml:"mock_gpio"`      // use mock GPIO (true=dev/test, false=real Raspberry Pi)
	MockSerial   bool `yaml:"mock_serial"`    // use mock serial port (log instead of writing)
}

// Config aggregates all application configuration.
type Config struct {
	FrontSonar  SonarConfig       `yaml:"front_sonar"`
	LeftSonar   SonarConfig       `yaml:"left_sonar"`
	RightSonar  SonarConfig       `yaml:"right_sonar"`
	Acquisition AcquisitionConfig `yaml:"acquisition"`
	SpeedBus    BusConfig         `yaml:"speed_bus"`
	TurnBus     BusConfig         `yaml:"turn_bus"`
	SpeedMotor  MotorConfig       `yaml:"speed_motor"`
	TurnMotor   MotorConfig       `yaml:"turn_motor"`
	Serial      SerialConfig      `yaml:"serial"`
	Defaults    DefaultsConfig    `yaml:"defaults"`
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	// Basic validation
	for name, s := range map[string]SonarConfig{
		"front_sonar": cfg.FrontSonar,
		"left_sonar":  cfg.LeftSonar,
		"right_sonar": cfg.RightSonar,
	} {
		if s.TriggerPin <= 0 || s.EchoPin <= 0 {
			return nil, fmt.Errorf("%s: trigger_pin and echo_pin are required", name)
		}
	}
	for name, b := range map[string]BusConfig{
		"speed_bus": cfg.SpeedBus,
		"turn_bus":  cfg.TurnBus,
	} {
		if b.Bit2Pin <= 0 || b.Bit1Pin <= 0 || b.Bit0Pin <= 0 {
			return nil, fmt.Errorf("%s: bit2_pin, bit1_pin and bit0_pin are required", name)
		}
	}
	for name, m := range map[string]MotorConfig{
		"speed_motor": cfg.SpeedMotor,
		"turn_motor":  cfg.TurnMotor,
	} {
		if m.PwmPin <= 0 || m.ForwardPin <= 0 || m.ReversePin <= 0 {
			return nil, fmt.Errorf("%s: pwm_pin, forward_pin and reverse_pin are required", name)
		}
	}

	// Defaults
	if cfg.Acquisition.PingIntervalMs <= 0 {
		cfg.Acquisition.PingIntervalMs = 33 // one slot per sensor, ~10 cycles/s
	}
	if cfg.Acquisition.MaxRangeCm <= 0 {
		cfg.Acquisition.MaxRangeCm = 200
	}
	if cfg.Acquisition.MaxRangeCm > 400 {
		return nil, fmt.Errorf("max_range_cm must be <= 400 (HC-SR04 limit), got %d", cfg.Acquisition.MaxRangeCm)
	}
	if cfg.Defaults.LoopPeriodMs <= 0 {
		cfg.Defaults.LoopPeriodMs = 2 // well below the ping interval
	}
	if cfg.Defaults.LoopPeriodMs >= cfg.Acquisition.PingIntervalMs {
		return nil, fmt.Errorf("loop_period_ms (%d) must be below ping_interval_ms (%d)",
			cfg.Defaults.LoopPeriodMs, cfg.Acquisition.PingIntervalMs)
	}
	if cfg.Serial.Device == "" {
		cfg.Serial.Device = "/dev/serial0"
	}
	if cfg.Serial.BaudRate <= 0 {
		cfg.Serial.BaudRate = 115200
	}
	if cfg.Serial.Separator == "" {
		cfg.Serial.Separator = "\t"
	}
	if len(cfg.Serial.Separator) != 1 {
		return nil, fmt.Errorf("serial.separator must be a single character, got %q", cfg.Serial.Separator)
	}

	return &cfg, nil
}

// PingInterval returns the per-sensor ranging slot duration T.
// A full round-robin cycle takes 3·T.
func (c *Config) PingInterval() time.Duration {
	return time.Duration(c.Acquisition.PingIntervalMs) * time.Millisecond
}

// LoopPeriod returns the main loop iteration period.
func (c *Config) LoopPeriod() time.Duration {
	return time.Duration(c.Defaults.LoopPeriodMs) * time.Millisecond
}

// SeparatorByte returns the telemetry field separator character.
func (c *Config) SeparatorByte() byte {
	return c.Serial.Separator[0]
}
