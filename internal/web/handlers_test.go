package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/cjeanneret/RoverGo/internal/logic/acquisition"
)

func testStatic() fstest.MapFS {
	return fstest.MapFS{
		"index.html": &fstest.MapFile{Data: []byte("<html>rover</html>")},
	}
}

func testHandlers(snapshot SnapshotFunc) *Handlers {
	return NewHandlers(
		NewTelemetryBroadcaster(),
		snapshot,
		InfoConfig{PingIntervalMs: 33, MaxRangeCm: 200, Separator: "\t"},
		testStatic(),
	)
}

func TestHandleReadings(t *testing.T) {
	h := testHandlers(func() acquisition.Readings {
		return acquisition.Readings{12, 0, 87}
	})

	req := httptest.NewRequest(http.MethodGet, "/readings", nil)
	rec := httptest.NewRecorder()
	h.HandleReadings(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["front"] != 12 || body["left"] != 0 || body["right"] != 87 {
		t.Errorf("body = %v, want front=12 left=0 right=87", body)
	}
}

func TestHandleReadings_NoSnapshot(t *testing.T) {
	h := testHandlers(nil)

	req := httptest.NewRequest(http.MethodGet, "/readings", nil)
	rec := httptest.NewRecorder()
	h.HandleReadings(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestHandleConfig(t *testing.T) {
	h := testHandlers(nil)

	req := httptest.NewRequest(http.MethodGet, "/config", nil)
	rec := httptest.NewRecorder()
	h.HandleConfig(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var info InfoConfig
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if info.PingIntervalMs != 33 || info.MaxRangeCm != 200 {
		t.Errorf("info = %+v", info)
	}
}

func TestServeIndex(t *testing.T) {
	h := testHandlers(nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeIndex(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "rover") {
		t.Errorf("body = %q, want index content", rec.Body.String())
	}
}

func TestServeIndex_Missing(t *testing.T) {
	h := NewHandlers(NewTelemetryBroadcaster(), nil, InfoConfig{}, fstest.MapFS{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeIndex(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleTelemetryStream_DeliversEvents(t *testing.T) {
	h := testHandlers(nil)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/telemetry/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.HandleTelemetryStream(rec, req)
		close(done)
	}()

	// Give the handler time to subscribe, then publish and disconnect.
	time.Sleep(50 * time.Millisecond)
	h.Broadcaster.BroadcastReadings(31, 62, 93)
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after client disconnect")
	}

	body := rec.Body.String()
	if !strings.Contains(body, ": connected") {
		t.Error("stream should open with a connected comment")
	}
	if !strings.Contains(body, "data: ") || !strings.Contains(body, `"front":31`) {
		t.Errorf("stream body missing readings event: %q", body)
	}
}
