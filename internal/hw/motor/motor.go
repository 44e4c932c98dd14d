package motor

import (
	"fmt"
	"math"

	"github.com/cjeanneret/RoverGo/internal/hw/gpio"
)

// Direction selects one of the two drive patterns of an H-bridge channel.
// What each one means physically depends on the actuator: forward/backward
// for the speed motor, right/left for the turn motor.
type Direction int

const (
	Forward Direction = iota // direction bit 0
	Reverse                  // direction bit 1
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Reverse:
		return "reverse"
	default:
		return "neutral"
	}
}

// dutyPerPercent scales an intensity percent (0-100) onto the 8-bit PWM
// range (0-255). This factor is part of the actuator calibration; do not
// replace it with a different formula.
const dutyPerPercent = 2.55

// Config holds the hardware configuration for one motor channel:
// a PWM duty pin plus two direction-select lines on the H-bridge.
type Config struct {
	PwmPin     int
	ForwardPin int
	ReversePin int
}

// Motor drives one actuator channel (speed or turn). It holds no state
// beyond its pins: every Apply recomputes the full output, so repeated
// calls with the same arguments are idempotent.
type Motor struct {
	gpio gpio.Driver
	cfg  Config
}

// NewMotor creates a motor controller and configures its pins.
// The channel starts braked (both direction lines LOW, zero duty).
func NewMotor(g gpio.Driver, cfg Config) (*Motor, error) {
	if err := g.SetupPwmPin(cfg.PwmPin); err != nil {
		return nil, fmt.Errorf("setup pwm pin %d: %w", cfg.PwmPin, err)
	}
	if err := g.SetupPin(cfg.ForwardPin, gpio.Output); err != nil {
		return nil, err
	}
	if err := g.SetupPin(cfg.ReversePin, gpio.Output); err != nil {
		return nil, err
	}

	m := &Motor{gpio: g, cfg: cfg}
	if err := m.Brake(); err != nil {
		return nil, err
	}
	return m, nil
}

// Apply drives the channel with the given direction and intensity percent.
// Any direction other than the two recognized values falls back to the
// brake pattern (both lines LOW), the safe default when decoding yields
// an out-of-range or transient value.
func (m *Motor) Apply(dir Direction, percent int) error {
	var fwd, rev gpio.Level
	switch dir {
	case Forward:
		fwd, rev = gpio.High, gpio.Low
	case Reverse:
		fwd, rev = gpio.Low, gpio.High
	default:
		fwd, rev = gpio.Low, gpio.Low
	}

	if err := m.gpio.WritePin(m.cfg.ForwardPin, fwd); err != nil {
		return err
	}
	if err := m.gpio.WritePin(m.cfg.ReversePin, rev); err != nil {
		return err
	}
	return m.gpio.WritePwm(m.cfg.PwmPin, DutyFromPercent(percent))
}

// Brake drives the neutral pattern: both direction lines LOW, zero duty.
func (m *Motor) Brake() error {
	if err := m.gpio.WritePin(m.cfg.ForwardPin, gpio.Low); err != nil {
		return err
	}
	if err := m.gpio.WritePin(m.cfg.ReversePin, gpio.Low); err != nil {
		return err
	}
	return m.gpio.WritePwm(m.cfg.PwmPin, 0)
}

// DutyFromPercent converts an intensity percent to a PWM duty value,
// rounding and saturating to the PWM resolution.
func DutyFromPercent(percent int) uint32 {
	if percent <= 0 {
		return 0
	}
	duty := uint32(math.Round(float64(percent) * dutyPerPercent))
	if duty > gpio.PwmCycleLength {
		duty = gpio.PwmCycleLength
	}
	return duty
}
