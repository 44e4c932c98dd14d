// Package acquisition schedules the three ranging sensors on a strict
// round-robin cycle. Each sensor gets one exclusive slot per cycle; a full
// cycle takes 3× the ping interval. The scheduler runs on the main loop,
// while completions arrive asynchronously from the sonar drivers, so every
// piece of shared state lives behind a single mutex so that the disarm,
// reset, arm sequence is atomic with respect to the completion path.
package acquisition

import (
	"sync"
	"time"

	"github.com/cjeanneret/RoverGo/internal/debug"
	"github.com/cjeanneret/RoverGo/internal/hw/sonar"
)

// SensorCount is the number of ranging sensors in the round-robin cycle.
const SensorCount = 3

// SensorID identifies one fixed-direction sensor. The numbering is part
// of the telemetry wire format and never changes.
type SensorID int

const (
	Front SensorID = iota
	Left
	Right
)

func (id SensorID) String() string {
	switch id {
	case Front:
		return "front"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "unknown"
	}
}

// Readings is the latest distance per sensor, indexed by SensorID.
// A value is authoritative only once that sensor's completion has fired in
// the current cycle; it is reset to 0 the instant the sensor is re-armed,
// so 0 mostly means "not yet measured". A genuine zero-distance echo is
// indistinguishable from that.
type Readings [SensorCount]int

// ReportFunc is invoked exactly once per completed cycle, right before the
// first sensor of the next cycle is armed, with the full triple of
// readings from the cycle that just ended.
type ReportFunc func(r Readings)

// Scheduler owns the round-robin state: per-sensor deadlines, the reading
// buffer and the single active sensor. Tick drives it from the main loop;
// the completion closures registered with each sonar driver feed results
// back in from their goroutines.
type Scheduler struct {
	rangers  [SensorCount]sonar.Ranger
	interval time.Duration
	report   ReportFunc

	mu        sync.Mutex
	deadlines [SensorCount]time.Time
	readings  Readings
	active    SensorID
	armedOnce bool // false until the very first arm; active is meaningless before
}

// NewScheduler wires the scheduler to its three sensors. Deadlines are
// staggered base+0·T, base+1·T, base+2·T so sensors never collide, and a
// completion closure is registered once with each driver.
func NewScheduler(rangers [SensorCount]sonar.Ranger, interval time.Duration, base time.Time, report ReportFunc) *Scheduler {
	s := &Scheduler{
		rangers:  rangers,
		interval: interval,
		report:   report,
	}
	for i := range s.deadlines {
		s.deadlines[i] = base.Add(time.Duration(i) * interval)
	}
	for i := range rangers {
		id := SensorID(i)
		rangers[i].SetCompletionFunc(func() { s.complete(id) })
	}
	return s
}

// Tick checks every sensor's deadline in id order and arms the first one
// that is due. Under nominal timing at most one deadline is due per call;
// if the clock skipped ahead and several are due at once, the lowest id
// wins the arbitration and the others only get their deadlines advanced,
// superseded until their next slot.
func (s *Scheduler) Tick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	armed := false
	for i := range s.deadlines {
		id := SensorID(i)
		if now.Before(s.deadlines[i]) {
			continue
		}

		// Reserve one slot per sensor in the 3-slot cycle.
		s.deadlines[i] = s.deadlines[i].Add(s.interval * SensorCount)

		if armed {
			debug.Verbose("Sensor %s: slot superseded until next cycle", id)
			continue
		}
		armed = true

		// A full cycle ends when sensor 0 re-arms right after sensor 2's
		// slot. Report before touching the buffer so the consumer sees
		// the complete triple from the cycle that just finished.
		if id == Front && s.armedOnce && s.active == Right && s.report != nil {
			s.report(s.readings)
		}

		// Disarm, reset, arm, in that order, atomically with respect to
		// completions, so a late echo can never land in the new slot.
		if s.armedOnce {
			s.rangers[s.active].CancelRanging()
		}
		s.readings[id] = 0
		s.active = id
		s.armedOnce = true
		s.rangers[id].StartRanging()
		debug.Arm(id.String())
	}
}

// complete is the completion handler for one sensor. It runs on the sonar
// driver's goroutine. Completions that are not for the currently armed
// sensor, or whose driver no longer reports a pending operation (timeout,
// cancelled, superseded), are dropped without touching the buffer.
func (s *Scheduler) complete(id SensorID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.armedOnce || id != s.active {
		return
	}
	ranger := s.rangers[id]
	if !ranger.Pending() {
		return
	}
	s.readings[id] = ranger.ReadElapsedDistance()
}

// Readings returns a snapshot of the latest distances.
func (s *Scheduler) Readings() Readings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readings
}

// Active returns the currently armed sensor. ok is false before the first
// arm, when no sensor is armed yet.
func (s *Scheduler) Active() (id SensorID, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, s.armedOnce
}

// Shutdown cancels any outstanding ranging. Called once when the main
// loop stops.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.armedOnce {
		s.rangers[s.active].CancelRanging()
	}
}
