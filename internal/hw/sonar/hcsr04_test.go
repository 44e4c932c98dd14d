package sonar

import (
	"sync"
	"testing"
	"time"

	"github.com/cjeanneret/RoverGo/internal/hw/gpio"
)

// echoDriver scripts the echo pin: each ReadPin pops the next level from
// the sequence, repeating the last one once exhausted.
type echoDriver struct {
	mu       sync.Mutex
	echoPin  int
	sequence []gpio.Level
	pos      int
}

func (d *echoDriver) SetupPin(pin int, mode gpio.PinMode) error { return nil }
func (d *echoDriver) WritePin(pin int, level gpio.Level) error { return nil }

func (d *echoDriver) ReadPin(pin int) (gpio.Level, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if pin != d.echoPin || len(d.sequence) == 0 {
		return gpio.Low, nil
	}
	level := d.sequence[d.pos]
	if d.pos < len(d.sequence)-1 {
		d.pos++
	}
	return level, nil
}

func (d *echoDriver) SetupPwmPin(pin int) error { return nil }

func (d *echoDriver) WritePwm(pin int, duty uint32) error { return nil }

func (d *echoDriver) Close() error { return nil }

func (d *echoDriver) setSequence(seq []gpio.Level) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sequence = seq
	d.pos = 0
}

func newTestSensor(t *testing.T, drv gpio.Driver) (*HCSR04, chan struct{}) {
	t.Helper()
	h, err := NewHCSR04(drv, Config{
		Name:         "front",
		TriggerPin:   23,
		EchoPin:      24,
		MaxRangeCm:   5, // tiny range keeps timeouts short
		PollInterval: time.Microsecond,
	})
	if err != nil {
		t.Fatalf("NewHCSR04: %v", err)
	}
	done := make(chan struct{}, 1)
	h.SetCompletionFunc(func() { done <- struct{}{} })
	return h, done
}

func waitCompletion(t *testing.T, done chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for completion notification")
	}
}

func TestHCSR04_ValidEchoKeepsPending(t *testing.T) {
	// Echo goes high immediately and drops on the next sample: a valid,
	// very short echo.
	drv := &echoDriver{echoPin: 24, sequence: []gpio.Level{gpio.High, gpio.Low}}
	h, done := newTestSensor(t, drv)

	h.StartRanging()
	waitCompletion(t, done)

	if !h.Pending() {
		t.Error("valid completion should leave the request pending for the handler")
	}
	if cm := h.ReadElapsedDistance(); cm < 0 || cm > 5 {
		t.Errorf("distance = %d, want within configured range", cm)
	}
}

func TestHCSR04_NoEchoClearsPending(t *testing.T) {
	// Echo never rises: the attempt times out and is reported as absence.
	drv := &echoDriver{echoPin: 24, sequence: []gpio.Level{gpio.Low}}
	h, done := newTestSensor(t, drv)

	h.StartRanging()
	waitCompletion(t, done)

	if h.Pending() {
		t.Error("timed-out attempt should report no pending operation")
	}
}

func TestHCSR04_EchoNeverDropsClearsPending(t *testing.T) {
	// Echo rises but never falls: nothing in range, out-of-range timeout.
	drv := &echoDriver{echoPin: 24, sequence: []gpio.Level{gpio.High}}
	h, done := newTestSensor(t, drv)

	h.StartRanging()
	waitCompletion(t, done)

	if h.Pending() {
		t.Error("out-of-range attempt should report no pending operation")
	}
}

func TestHCSR04_CancelSuppressesCompletion(t *testing.T) {
	// Echo never rises, so the goroutine is still polling when we cancel.
	drv := &echoDriver{echoPin: 24, sequence: []gpio.Level{gpio.Low}}
	h, done := newTestSensor(t, drv)

	h.StartRanging()
	h.CancelRanging()

	select {
	case <-done:
		t.Error("cancelled attempt must not deliver a completion")
	case <-time.After(50 * time.Millisecond):
	}
	if h.Pending() {
		t.Error("cancel should clear pending")
	}
}

func TestHCSR04_RestartInvalidatesPreviousAttempt(t *testing.T) {
	// First attempt polls a dead echo line; cancel it mid-flight, then
	// let a fresh attempt see a real echo.
	drv := &echoDriver{echoPin: 24, sequence: []gpio.Level{gpio.Low}}
	h, done := newTestSensor(t, drv)

	h.StartRanging()
	h.CancelRanging()

	// Let the cancelled goroutine run out its echo-start grace before
	// rescripting the pin, so only the fresh attempt sees the echo.
	time.Sleep(50 * time.Millisecond)
	drv.setSequence([]gpio.Level{gpio.High, gpio.Low})
	h.StartRanging()
	waitCompletion(t, done)

	// Only the second attempt may notify.
	select {
	case <-done:
		t.Error("superseded attempt delivered a second completion")
	case <-time.After(50 * time.Millisecond):
	}
	if !h.Pending() {
		t.Error("second attempt's valid completion should leave pending set")
	}
}
