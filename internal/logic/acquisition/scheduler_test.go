package acquisition

import (
	"testing"
	"time"

	"github.com/cjeanneret/RoverGo/internal/hw/sonar"
)

// fakeRanger is a scriptable sonar.Ranger for scheduler tests. Tests drive
// completions by hand, so no locking is needed.
type fakeRanger struct {
	complete sonar.CompletionFunc
	pending  bool
	distance int
	starts   int
	cancels  int
	startLog *[]SensorID // shared log of arm order across all fakes
	id       SensorID
}

func (f *fakeRanger) SetCompletionFunc(fn sonar.CompletionFunc) { f.complete = fn }

func (f *fakeRanger) StartRanging() {
	f.pending = true
	f.starts++
	if f.startLog != nil {
		*f.startLog = append(*f.startLog, f.id)
	}
}

func (f *fakeRanger) CancelRanging() {
	f.pending = false
	f.cancels++
}

func (f *fakeRanger) Pending() bool { return f.pending }

func (f *fakeRanger) ReadElapsedDistance() int { return f.distance }

// fire simulates a valid completion with the given distance.
func (f *fakeRanger) fire(cm int) {
	f.distance = cm
	f.complete()
}

// fireInvalid simulates a completion for a timed-out attempt: the driver
// clears pending before notifying.
func (f *fakeRanger) fireInvalid() {
	f.pending = false
	f.complete()
}

func newTestScheduler(t *testing.T, interval time.Duration, report ReportFunc) (*Scheduler, [SensorCount]*fakeRanger, *[]SensorID, time.Time) {
	t.Helper()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	startLog := &[]SensorID{}
	var fakes [SensorCount]*fakeRanger
	var rangers [SensorCount]sonar.Ranger
	for i := range fakes {
		fakes[i] = &fakeRanger{id: SensorID(i), startLog: startLog}
		rangers[i] = fakes[i]
	}
	s := NewScheduler(rangers, interval, base, report)
	return s, fakes, startLog, base
}

func TestScheduler_RoundRobinOrder(t *testing.T) {
	const interval = 30 * time.Millisecond
	s, _, startLog, base := newTestScheduler(t, interval, nil)

	// Tick at each staggered deadline over two full cycles.
	for i := 0; i < 6; i++ {
		s.Tick(base.Add(time.Duration(i) * interval))
	}

	want := []SensorID{Front, Left, Right, Front, Left, Right}
	if len(*startLog) != len(want) {
		t.Fatalf("got %d arms, want %d: %v", len(*startLog), len(want), *startLog)
	}
	for i, id := range want {
		if (*startLog)[i] != id {
			t.Errorf("arm %d = %v, want %v", i, (*startLog)[i], id)
		}
	}
}

func TestScheduler_SameSensorSpacingIsThreeIntervals(t *testing.T) {
	const interval = 30 * time.Millisecond
	s, fakes, _, base := newTestScheduler(t, interval, nil)

	// Tick well before 3T: sensor 0 must not re-arm.
	s.Tick(base)
	s.Tick(base.Add(2 * interval))
	if fakes[Front].starts != 1 {
		t.Fatalf("front starts = %d before 3T, want 1", fakes[Front].starts)
	}

	// Exactly 3T after its first slot, sensor 0 is due again.
	s.Tick(base.Add(3 * interval))
	if fakes[Front].starts != 2 {
		t.Errorf("front starts = %d at 3T, want 2", fakes[Front].starts)
	}
}

func TestScheduler_SingleActiveSensor(t *testing.T) {
	const interval = 30 * time.Millisecond
	s, fakes, _, base := newTestScheduler(t, interval, nil)

	if _, ok := s.Active(); ok {
		t.Error("no sensor should be active before the first deadline")
	}

	for i := 0; i < 3; i++ {
		s.Tick(base.Add(time.Duration(i) * interval))
		active, ok := s.Active()
		if !ok {
			t.Fatalf("tick %d: expected an active sensor", i)
		}
		if active != SensorID(i) {
			t.Errorf("tick %d: active = %v, want %v", i, active, SensorID(i))
		}
		// Every other sensor's request must have been disarmed.
		for j, f := range fakes {
			if SensorID(j) != active && f.pending {
				t.Errorf("tick %d: sensor %v still pending while %v is active", i, SensorID(j), active)
			}
		}
	}
}

func TestScheduler_ResetPrecedesArm(t *testing.T) {
	const interval = 30 * time.Millisecond
	s, fakes, _, base := newTestScheduler(t, interval, nil)

	s.Tick(base)
	fakes[Front].fire(42)
	if got := s.Readings()[Front]; got != 42 {
		t.Fatalf("front reading = %d, want 42", got)
	}

	// Re-arming sensor 0 a full cycle later must zero its slot first.
	s.Tick(base.Add(interval))
	s.Tick(base.Add(2 * interval))
	s.Tick(base.Add(3 * interval))
	if got := s.Readings()[Front]; got != 0 {
		t.Errorf("front reading = %d after re-arm, want 0", got)
	}
}

func TestScheduler_CompletionStoresReading(t *testing.T) {
	const interval = 30 * time.Millisecond
	s, fakes, _, base := newTestScheduler(t, interval, nil)

	s.Tick(base)
	fakes[Front].fire(117)

	readings := s.Readings()
	if readings[Front] != 117 {
		t.Errorf("front = %d, want 117", readings[Front])
	}
	if readings[Left] != 0 || readings[Right] != 0 {
		t.Errorf("untouched sensors should read 0, got %v", readings)
	}
}

func TestScheduler_LateCompletionDropped(t *testing.T) {
	const interval = 30 * time.Millisecond
	s, fakes, _, base := newTestScheduler(t, interval, nil)

	s.Tick(base)
	// Sensor 1 takes over; sensor 0's request is disarmed.
	s.Tick(base.Add(interval))

	// A late echo for sensor 0 arrives after the handover.
	fakes[Front].fire(99)
	if got := s.Readings()[Front]; got != 0 {
		t.Errorf("late completion mutated buffer: front = %d, want 0", got)
	}
}

func TestScheduler_CompletionForInactiveSensorDropped(t *testing.T) {
	const interval = 30 * time.Millisecond
	s, fakes, _, base := newTestScheduler(t, interval, nil)

	s.Tick(base) // front is active

	// A spurious completion from sensor 2, which was never armed.
	fakes[Right].pending = true
	fakes[Right].fire(55)
	if got := s.Readings()[Right]; got != 0 {
		t.Errorf("spurious completion mutated buffer: right = %d, want 0", got)
	}
}

func TestScheduler_TimedOutCompletionDropped(t *testing.T) {
	const interval = 30 * time.Millisecond
	s, fakes, _, base := newTestScheduler(t, interval, nil)

	s.Tick(base)
	fakes[Front].fireInvalid()
	if got := s.Readings()[Front]; got != 0 {
		t.Errorf("timed-out completion mutated buffer: front = %d, want 0", got)
	}
}

func TestScheduler_ReportOncePerCycle(t *testing.T) {
	const interval = 30 * time.Millisecond
	var reports []Readings
	s, fakes, _, base := newTestScheduler(t, interval, func(r Readings) {
		reports = append(reports, r)
	})

	// First cycle: arm each sensor and complete it.
	distances := [SensorCount]int{11, 22, 33}
	for i := 0; i < SensorCount; i++ {
		s.Tick(base.Add(time.Duration(i) * interval))
		fakes[i].fire(distances[i])
	}
	if len(reports) != 0 {
		t.Fatalf("report fired %d times before the cycle completed", len(reports))
	}

	// Sensor 0's next slot closes the cycle: one report, then the reset.
	s.Tick(base.Add(3 * interval))
	if len(reports) != 1 {
		t.Fatalf("report fired %d times, want 1", len(reports))
	}
	if reports[0] != (Readings{11, 22, 33}) {
		t.Errorf("report = %v, want [11 22 33]", reports[0])
	}
	// The report saw sensor 0's value from the finished cycle, but the
	// buffer itself has been reset for the new one.
	if got := s.Readings()[Front]; got != 0 {
		t.Errorf("front = %d after new cycle started, want 0", got)
	}

	// Second full cycle: exactly one more report.
	s.Tick(base.Add(4 * interval))
	s.Tick(base.Add(5 * interval))
	s.Tick(base.Add(6 * interval))
	if len(reports) != 2 {
		t.Errorf("report fired %d times after two cycles, want 2", len(reports))
	}
}

func TestScheduler_NoReportOnFirstArm(t *testing.T) {
	const interval = 30 * time.Millisecond
	calls := 0
	s, _, _, base := newTestScheduler(t, interval, func(Readings) { calls++ })

	s.Tick(base)
	if calls != 0 {
		t.Errorf("report fired on the very first arm of sensor 0")
	}
}

func TestScheduler_SimultaneousDeadlinesLowerIdWins(t *testing.T) {
	const interval = 30 * time.Millisecond
	s, fakes, _, base := newTestScheduler(t, interval, nil)

	// Clock skipped ahead: all three deadlines are due at once.
	s.Tick(base.Add(2 * interval))

	if fakes[Front].starts != 1 {
		t.Errorf("front starts = %d, want 1", fakes[Front].starts)
	}
	if fakes[Left].starts != 0 || fakes[Right].starts != 0 {
		t.Errorf("superseded sensors were armed: left=%d right=%d",
			fakes[Left].starts, fakes[Right].starts)
	}
	active, ok := s.Active()
	if !ok || active != Front {
		t.Errorf("active = %v (ok=%v), want front", active, ok)
	}
}

func TestScheduler_ShutdownCancelsActive(t *testing.T) {
	const interval = 30 * time.Millisecond
	s, fakes, _, base := newTestScheduler(t, interval, nil)

	s.Tick(base)
	s.Shutdown()
	if fakes[Front].pending {
		t.Error("shutdown left the active sensor armed")
	}
}
