package web

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// readingsEvent is one distance triple for SSE clients.
type readingsEvent struct {
	Time  string `json:"t"`
	Kind  string `json:"kind"`
	Front int    `json:"front"`
	Left  int    `json:"left"`
	Right int    `json:"right"`
}

// logEvent is one mirrored log line for SSE clients.
type logEvent struct {
	Time  string `json:"t"`
	Kind  string `json:"kind"`
	Level string `json:"l,omitempty"`
	Msg   string `json:"msg"`
}

// TelemetryBroadcaster distributes readings and log lines to multiple SSE
// clients.
type TelemetryBroadcaster struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
}

// NewTelemetryBroadcaster creates a new broadcaster.
func NewTelemetryBroadcaster() *TelemetryBroadcaster {
	return &TelemetryBroadcaster{
		clients: make(map[chan string]struct{}),
	}
}

// Subscribe returns a channel that receives broadcast messages and a cleanup function.
// The caller must call the returned cleanup when done (e.g. on client disconnect).
func (b *TelemetryBroadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 64)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		delete(b.clients, ch)
		b.mu.Unlock()
		close(ch)
	}
	return ch, unsub
}

// BroadcastReadings sends a distance triple to all subscribed clients.
// Sent once per completed sensor cycle, mirroring the serial line.
func (b *TelemetryBroadcaster) BroadcastReadings(front, left, right int) {
	b.broadcast(readingsEvent{
		Time:  time.Now().Format(time.RFC3339),
		Kind:  "readings",
		Front: front,
		Left:  left,
		Right: right,
	})
}

// Broadcast sends a log message to all subscribed clients.
func (b *TelemetryBroadcaster) Broadcast(level, msg string) {
	b.broadcast(logEvent{
		Time:  time.Now().Format(time.RFC3339),
		Kind:  "log",
		Level: level,
		Msg:   msg,
	})
}

// broadcast marshals an event and fans it out. Slow clients may miss
// messages (non-blocking, buffered).
func (b *TelemetryBroadcaster) broadcast(evt interface{}) {
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	payload := string(data)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
			// channel full, skip
		}
	}
}

// BroadcastWriter implements io.Writer; each Write broadcasts the content to SSE clients.
func BroadcastWriter(b *TelemetryBroadcaster) *broadcastWriter {
	return &broadcastWriter{b: b}
}

// broadcastWriter wraps TelemetryBroadcaster as io.Writer for use with debug.SetOutput.
type broadcastWriter struct {
	b *TelemetryBroadcaster
}

func (w *broadcastWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		w.b.Broadcast("info", msg)
	}
	return len(p), nil
}
