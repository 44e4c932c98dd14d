package sonar

import (
	"sync"
	"time"

	"github.com/cjeanneret/RoverGo/internal/debug"
	"github.com/cjeanneret/RoverGo/internal/hw/gpio"
)

// echoRoundTripUsPerCm converts an echo round-trip time in microseconds
// to a distance in centimeters (HC-SR04 datasheet: divide by 58).
const echoRoundTripUsPerCm = 58

// triggerPulseWidth is the width of the pulse on the trigger pin that
// starts a measurement (datasheet minimum is 10µs).
const triggerPulseWidth = 10 * time.Microsecond

// echoStartGrace is how long after the trigger pulse we wait for the
// module to raise the echo line before declaring the attempt dead.
const echoStartGrace = 10 * time.Millisecond

// Config holds the hardware configuration for one HC-SR04 module.
type Config struct {
	Name       string // sensor name for logs ("front", "left", "right")
	TriggerPin int
	EchoPin    int
	MaxRangeCm int // echoes beyond this range are reported as absence

	// PollInterval is the echo-pin sampling period. 0 means a default
	// suitable for real hardware; tests shorten it.
	PollInterval time.Duration
}

// HCSR04 drives one HC-SR04 ultrasonic module through the gpio.Driver
// abstraction. StartRanging triggers the module and watches the echo pin
// on a goroutine; the registered completion func is invoked when the echo
// returns or the attempt times out.
type HCSR04 struct {
	gpio gpio.Driver
	cfg  Config
	poll time.Duration

	mu         sync.Mutex
	complete   CompletionFunc
	pending    bool
	attempt    uint64 // incremented on every start/cancel to invalidate stale goroutines
	distanceCm int
}

// NewHCSR04 creates a driver for one module and configures its pins.
func NewHCSR04(g gpio.Driver, cfg Config) (*HCSR04, error) {
	if err := g.SetupPin(cfg.TriggerPin, gpio.Output); err != nil {
		return nil, err
	}
	if err := g.WritePin(cfg.TriggerPin, gpio.Low); err != nil {
		return nil, err
	}
	if err := g.SetupPin(cfg.EchoPin, gpio.Input); err != nil {
		return nil, err
	}

	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 30 * time.Microsecond
	}

	return &HCSR04{
		gpio: g,
		cfg:  cfg,
		poll: poll,
	}, nil
}

// SetCompletionFunc registers the completion notification. Call once at
// startup, before the first StartRanging.
func (h *HCSR04) SetCompletionFunc(fn CompletionFunc) {
	h.mu.Lock()
	h.complete = fn
	h.mu.Unlock()
}

// StartRanging triggers a measurement. Non-blocking.
func (h *HCSR04) StartRanging() {
	h.mu.Lock()
	h.pending = true
	h.distanceCm = 0
	h.attempt++
	attempt := h.attempt
	h.mu.Unlock()

	go h.measure(attempt)
}

// CancelRanging invalidates any outstanding measurement. A goroutine still
// watching the echo pin will discard its result.
func (h *HCSR04) CancelRanging() {
	h.mu.Lock()
	h.pending = false
	h.attempt++
	h.mu.Unlock()
}

// Pending reports whether an armed request is outstanding.
func (h *HCSR04) Pending() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pending
}

// ReadElapsedDistance returns the last measured distance in centimeters.
// Only valid inside the completion notification.
func (h *HCSR04) ReadElapsedDistance() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.distanceCm
}

// measure runs on its own goroutine: pulse the trigger, time the echo,
// deliver the result. A result is only delivered if no cancel or restart
// happened in the meantime.
func (h *HCSR04) measure(attempt uint64) {
	if err := h.pulseTrigger(); err != nil {
		debug.Error(err)
		h.finish(attempt, 0, false)
		return
	}

	maxEcho := time.Duration(h.cfg.MaxRangeCm*echoRoundTripUsPerCm) * time.Microsecond

	// Rising edge: the module raises echo once the burst is sent.
	start, ok := h.waitLevel(gpio.High, maxEcho+echoStartGrace)
	if !ok {
		h.finish(attempt, 0, false)
		return
	}

	// Falling edge: echo drops when the reflection returns. Past maxEcho
	// there is no obstacle in range; report absence, not a huge distance.
	end, ok := h.waitLevel(gpio.Low, maxEcho)
	if !ok {
		h.finish(attempt, 0, false)
		return
	}

	cm := int(end.Sub(start).Microseconds()) / echoRoundTripUsPerCm
	if cm > h.cfg.MaxRangeCm {
		h.finish(attempt, 0, false)
		return
	}

	h.finish(attempt, cm, true)
}

func (h *HCSR04) pulseTrigger() error {
	if err := h.gpio.WritePin(h.cfg.TriggerPin, gpio.High); err != nil {
		return err
	}
	time.Sleep(triggerPulseWidth)
	return h.gpio.WritePin(h.cfg.TriggerPin, gpio.Low)
}

// waitLevel polls the echo pin until it reaches the wanted level or the
// timeout expires. Returns the time the level was observed.
func (h *HCSR04) waitLevel(want gpio.Level, timeout time.Duration) (time.Time, bool) {
	deadline := time.Now().Add(timeout)
	for {
		level, err := h.gpio.ReadPin(h.cfg.EchoPin)
		if err != nil {
			debug.Error(err)
			return time.Time{}, false
		}
		now := time.Now()
		if level == want {
			return now, true
		}
		if now.After(deadline) {
			return time.Time{}, false
		}
		time.Sleep(h.poll)
	}
}

// finish stores the result and fires the completion notification, unless
// the attempt was superseded by a cancel or a new StartRanging. An invalid
// attempt (timeout, out of range) clears pending before notifying, so the
// handler sees no outstanding operation and discards it.
func (h *HCSR04) finish(attempt uint64, cm int, valid bool) {
	h.mu.Lock()
	if attempt != h.attempt || !h.pending {
		h.mu.Unlock()
		return
	}
	if valid {
		h.distanceCm = cm
	} else {
		h.pending = false
	}
	fn := h.complete
	h.mu.Unlock()

	if valid {
		debug.Reading(h.cfg.Name, cm)
	} else {
		debug.Verbose("Sensor %s: no echo within range", h.cfg.Name)
	}

	if fn != nil {
		fn()
	}
}
