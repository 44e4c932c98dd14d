// Package report serializes the distance readings to the telemetry link.
package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/cjeanneret/RoverGo/internal/debug"
	"github.com/cjeanneret/RoverGo/internal/logic/acquisition"
)

// DefaultSeparator is the field separator the host expects.
const DefaultSeparator byte = '\t'

// Reporter writes one telemetry line per completed sensor cycle:
// each distance in decimal, each followed by the separator, terminated by
// a line break. Nothing else is ever written to the link.
type Reporter struct {
	w   io.Writer
	sep byte
}

// New creates a reporter writing to w with the given field separator.
func New(w io.Writer, sep byte) *Reporter {
	return &Reporter{w: w, sep: sep}
}

// Report writes the readings in sensor id order as a single line.
func (r *Reporter) Report(readings acquisition.Readings) error {
	line := r.Format(readings)
	debug.Serial(string(line))
	if _, err := r.w.Write(line); err != nil {
		return fmt.Errorf("write telemetry line: %w", err)
	}
	return nil
}

// Format renders the wire format for a set of readings:
// <d0><sep><d1><sep><d2><sep>\n
func (r *Reporter) Format(readings acquisition.Readings) []byte {
	line := make([]byte, 0, 16)
	for _, cm := range readings {
		line = strconv.AppendInt(line, int64(cm), 10)
		line = append(line, r.sep)
	}
	return append(line, '\n')
}
