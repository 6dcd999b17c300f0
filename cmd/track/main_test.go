package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/evyataryagoni/iptracker/internal/logger"
	"github.com/evyataryagoni/iptracker/internal/mapview"
)

func newTestTracker(t *testing.T, backend http.HandlerFunc) *tracker {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	tr := newTracker(srv.URL, time.Second, mapview.DefaultTileConfig(), logger.Nop())
	t.Cleanup(tr.close)
	return tr
}

// TestTracker_Success tests the text output
func TestTracker_Success(t *testing.T) {
	tr := newTestTracker(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"resolved_ip":"8.8.8.8","city":"Mountain View","country_name":"United States",
			"org":"Google LLC","latitude":37.4056,"longitude":-122.0775}`))
	})

	var out, errOut bytes.Buffer
	if !tr.track(context.Background(), "8.8.8.8", false, &out, &errOut) {
		t.Fatalf("expected success, stderr: %s", errOut.String())
	}

	text := out.String()
	for _, want := range []string{
		"IP:", "8.8.8.8",
		"Region:", "N/A",
		"https://c.tile.openstreetmap.org/8/41/99.png",
		"Map data © OpenStreetMap contributors",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output is missing %q:\n%s", want, text)
		}
	}
}

// TestTracker_Error tests failures go to stderr
func TestTracker_Error(t *testing.T) {
	tr := newTestTracker(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"Failed to fetch IP info"}`))
	})

	var out, errOut bytes.Buffer
	if tr.track(context.Background(), "8.8.8.8", false, &out, &errOut) {
		t.Fatal("expected failure")
	}
	if errOut.String() != "8.8.8.8: Failed to fetch IP info\n" {
		t.Errorf("unexpected stderr %q", errOut.String())
	}
	if out.Len() != 0 {
		t.Errorf("expected no stdout, got %q", out.String())
	}
}

// TestTracker_JSON tests machine-readable output
func TestTracker_JSON(t *testing.T) {
	tr := newTestTracker(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"resolved_ip":"1.1.1.1","latitude":-33.8688,"longitude":151.2093}`))
	})

	var out bytes.Buffer
	tr.track(context.Background(), "1.1.1.1", true, &out, &bytes.Buffer{})

	var res jsonResult
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if res.State != "success" || res.Tile == nil || res.Tile.Z != mapview.FocusZoom {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.Map.Canvas.Width != terminalWidth {
		t.Errorf("expected canvas width %d, got %d", terminalWidth, res.Map.Canvas.Width)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

// TestTracker_WriteFailure tests that an unwritable stdout is a failure
func TestTracker_WriteFailure(t *testing.T) {
	tr := newTestTracker(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"resolved_ip":"1.1.1.1","latitude":-33.8688,"longitude":151.2093}`))
	})

	for _, asJSON := range []bool{false, true} {
		var errOut bytes.Buffer
		if tr.track(context.Background(), "1.1.1.1", asJSON, failingWriter{}, &errOut) {
			t.Errorf("json=%v: expected failure on write error", asJSON)
		}
		if !strings.Contains(errOut.String(), "broken pipe") {
			t.Errorf("json=%v: expected write error on stderr, got %q", asJSON, errOut.String())
		}
	}
}
