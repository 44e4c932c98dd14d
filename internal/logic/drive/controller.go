package drive

import (
	"github.com/cjeanneret/RoverGo/internal/debug"
	"github.com/cjeanneret/RoverGo/internal/hw/motor"
	"github.com/cjeanneret/RoverGo/internal/logic/command"
)

// Controller maps decoded bus commands onto the two motor channels.
// It's an intermediate layer between the main loop and the H-bridge
// hardware: a clear direction bit means forward on the speed channel and
// right on the turn channel.
type Controller struct {
	speed *motor.Motor
	turn  *motor.Motor
}

func NewController(speed, turn *motor.Motor) *Controller {
	return &Controller{
		speed: speed,
		turn:  turn,
	}
}

// ApplySpeed drives the speed channel: direction bit clear = forward,
// set = backward.
func (c *Controller) ApplySpeed(cmd command.Command) error {
	dir := direction(cmd)
	debug.Motor("speed", dir.String(), cmd.Percent)
	return c.speed.Apply(dir, cmd.Percent)
}

// ApplyTurn drives the turn channel: direction bit clear = right,
// set = left.
func (c *Controller) ApplyTurn(cmd command.Command) error {
	dir := direction(cmd)
	debug.Motor("turn", dir.String(), cmd.Percent)
	return c.turn.Apply(dir, cmd.Percent)
}

// Brake drives both channels to the neutral pattern. Used at shutdown.
func (c *Controller) Brake() error {
	if err := c.speed.Brake(); err != nil {
		return err
	}
	return c.turn.Brake()
}

func direction(cmd command.Command) motor.Direction {
	if cmd.DirectionBit {
		return motor.Reverse
	}
	return motor.Forward
}
