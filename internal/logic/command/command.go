// Package command decodes the 3-bit parallel command buses coming from the
// radio receiver. Each bus carries one code: bits 1:0 select an intensity
// level, bit 2 selects the direction. Decoding is pure: the same code
// always yields the same command.
package command

import (
	"github.com/cjeanneret/RoverGo/internal/hw/gpio"
)

// intensityPercent maps the low two bits of a code to a duty percent.
// This exact table is a discretization contract with the transmitter and
// the host operator; do not replace it with a formula.
var intensityPercent = [4]int{0, 33, 67, 100}

// Command is one decoded bus value: a direction bit whose meaning depends
// on the bus (set = backward on the speed bus, left on the turn bus) and
// an intensity percent.
type Command struct {
	DirectionBit bool
	Percent      int
}

// Code packs three line states into bits 2, 1, 0 of a command code.
func Code(bit2, bit1, bit0 gpio.Level) uint8 {
	var code uint8
	if bit2 {
		code |= 1 << 2
	}
	if bit1 {
		code |= 1 << 1
	}
	if bit0 {
		code |= 1 << 0
	}
	return code
}

// Decode maps a command code (0..7) to a direction bit and an intensity
// percent. The direction bit is independent of the intensity bits.
func Decode(code uint8) Command {
	return Command{
		DirectionBit: code&(1<<2) != 0,
		Percent:      intensityPercent[code&0b11],
	}
}

// Bus reads one 3-bit parallel command bus. The lines are sampled raw,
// HIGH/LOW only; debouncing is up to the electrical design.
type Bus struct {
	gpio gpio.Driver
	// pin numbers for bits 2, 1, 0
	bit2, bit1, bit0 int
}

// NewBus creates a bus reader and configures its pins as inputs.
func NewBus(g gpio.Driver, bit2, bit1, bit0 int) (*Bus, error) {
	for _, pin := range []int{bit2, bit1, bit0} {
		if err := g.SetupPin(pin, gpio.Input); err != nil {
			return nil, err
		}
	}
	return &Bus{gpio: g, bit2: bit2, bit1: bit1, bit0: bit0}, nil
}

// Read samples the three lines once and decodes them.
func (b *Bus) Read() (Command, error) {
	l2, err := b.gpio.ReadPin(b.bit2)
	if err != nil {
		return Command{}, err
	}
	l1, err := b.gpio.ReadPin(b.bit1)
	if err != nil {
		return Command{}, err
	}
	l0, err := b.gpio.ReadPin(b.bit0)
	if err != nil {
		return Command{}, err
	}
	return Decode(Code(l2, l1, l0)), nil
}
