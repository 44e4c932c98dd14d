// Package vehicle runs the main control loop: every iteration lets the
// acquisition scheduler check its deadlines, then samples both command
// buses and drives the motors. Nothing here blocks; ranging completions
// preempt the loop on the sonar drivers' goroutines.
package vehicle

import (
	"context"
	"time"

	"github.com/cjeanneret/RoverGo/internal/debug"
	"github.com/cjeanneret/RoverGo/internal/logic/acquisition"
	"github.com/cjeanneret/RoverGo/internal/logic/command"
	"github.com/cjeanneret/RoverGo/internal/logic/drive"
)

// Vehicle ties the scheduler, the command buses and the drive controller
// together into one loop.
type Vehicle struct {
	sched    *acquisition.Scheduler
	drive    *drive.Controller
	speedBus *command.Bus
	turnBus  *command.Bus
	period   time.Duration
}

// New creates the vehicle loop. period is the loop iteration period; it
// must be well below the ping interval so deadlines are hit on time.
func New(sched *acquisition.Scheduler, driveCtrl *drive.Controller, speedBus, turnBus *command.Bus, period time.Duration) *Vehicle {
	return &Vehicle{
		sched:    sched,
		drive:    driveCtrl,
		speedBus: speedBus,
		turnBus:  turnBus,
		period:   period,
	}
}

// Run executes the control loop until ctx is cancelled. The system has no
// fatal-error path: hardware errors are logged and the loop keeps going,
// degrading to stale readings or a braked channel rather than halting.
// On shutdown both motors are braked and outstanding ranging is cancelled.
func (v *Vehicle) Run(ctx context.Context) error {
	debug.Section("Control Loop")
	ticker := time.NewTicker(v.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			debug.Info("Control loop stopping")
			v.sched.Shutdown()
			if err := v.drive.Brake(); err != nil {
				debug.Error(err)
			}
			return nil

		case now := <-ticker.C:
			v.sched.Tick(now)
			v.step()
		}
	}
}

// step samples both buses once and drives the motors accordingly.
func (v *Vehicle) step() {
	if cmd, err := v.speedBus.Read(); err != nil {
		debug.Error(err)
	} else if err := v.drive.ApplySpeed(cmd); err != nil {
		debug.Error(err)
	}

	if cmd, err := v.turnBus.Read(); err != nil {
		debug.Error(err)
	} else if err := v.drive.ApplyTurn(cmd); err != nil {
		debug.Error(err)
	}
}
