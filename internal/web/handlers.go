package web

import (
	"encoding/json"
	"io/fs"
	"net/http"
	"time"

	"github.com/cjeanneret/RoverGo/internal/logic/acquisition"
)

// SnapshotFunc returns the latest distance readings.
type SnapshotFunc func() acquisition.Readings

// InfoConfig holds the static acquisition parameters shown by GET /config.
type InfoConfig struct {
	PingIntervalMs int    `json:"ping_interval_ms"`
	MaxRangeCm     int    `json:"max_range_cm"`
	Separator      string `json:"separator"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *TelemetryBroadcaster
	Snapshot    SnapshotFunc
	Info        InfoConfig
	staticFS    fs.FS
}

// NewHandlers creates handlers with the given dependencies.
// If snapshot is nil, GET /readings will return 503 Service Unavailable.
func NewHandlers(broadcaster *TelemetryBroadcaster, snapshot SnapshotFunc, info InfoConfig, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		Snapshot:    snapshot,
		Info:        info,
		staticFS:    staticFS,
	}
}

// HandleConfig returns the acquisition parameters as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Info)
}

// HandleReadings returns the latest distance triple as JSON.
func (h *Handlers) HandleReadings(w http.ResponseWriter, r *http.Request) {
	if h.Snapshot == nil {
		http.Error(w, "readings not available", http.StatusServiceUnavailable)
		return
	}
	readings := h.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{
		"front": readings[acquisition.Front],
		"left":  readings[acquisition.Left],
		"right": readings[acquisition.Right],
	})
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleTelemetryStream handles GET /telemetry/stream for SSE.
func (h *Handlers) HandleTelemetryStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
