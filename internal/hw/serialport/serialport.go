// Package serialport opens the telemetry link to the host using
// go.bug.st/serial, with a mock for development on PC.
package serialport

import (
	"fmt"
	"io"

	"github.com/cjeanneret/RoverGo/internal/debug"
	serial "go.bug.st/serial"
)

// New returns the telemetry writer. If mock is true, returns a MockPort
// that only logs (for dev/test). Otherwise opens the real device.
func New(mock bool, device string, baud int) (io.WriteCloser, error) {
	if mock {
		debug.Info("Using MOCK serial port (development mode)")
		return &MockPort{}, nil
	}
	return Open(device, baud)
}

// Open opens a real serial device for writing telemetry.
func Open(device string, baud int) (io.WriteCloser, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", device, err)
	}
	debug.Info("Serial port %s open at %d baud", device, baud)
	return port, nil
}

// MockPort is a test implementation that logs writes and discards them.
type MockPort struct{}

func (m *MockPort) Write(p []byte) (int, error) {
	debug.Serial(string(p))
	return len(p), nil
}

func (m *MockPort) Close() error {
	debug.Trace("Serial Close (mock)")
	return nil
}
