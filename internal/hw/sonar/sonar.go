package sonar

// CompletionFunc is invoked by a Ranger when a ranging attempt finishes,
// successfully or via timeout. It runs on the driver's own goroutine and
// preempts whatever the main loop is doing, so it must be short and
// non-blocking.
type CompletionFunc func()

// Ranger defines the abstract interface for one ranging sensor.
// This allows plugging in a real HC-SR04 implementation or a fake
// for development and testing.
type Ranger interface {
	// SetCompletionFunc registers the completion notification. It is
	// called once at startup, before the first StartRanging.
	SetCompletionFunc(fn CompletionFunc)

	// StartRanging begins a time-of-flight measurement. Non-blocking,
	// fire-and-forget: the result is delivered via the completion func.
	StartRanging()

	// CancelRanging disarms any outstanding measurement. A completion
	// arriving after cancellation reports no pending operation.
	CancelRanging()

	// Pending reports whether an armed request is outstanding. A ranging
	// attempt that timed out clears the flag before notifying, so a
	// completion handler can use it to discard invalid completions.
	Pending() bool

	// ReadElapsedDistance returns the measured distance in centimeters.
	// Only valid inside the completion notification.
	ReadElapsedDistance() int
}
