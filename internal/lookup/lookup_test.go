package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/evyataryagoni/iptracker/internal/models"
)

// TestValidateInput tests trimming and blank rejection
func TestValidateInput(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
		wantErr  bool
	}{
		{"plain ip", "8.8.8.8", "8.8.8.8", false},
		{"padded domain", "  example.com \n", "example.com", false},
		{"url is passed through", "https://example.com/path", "https://example.com/path", false},
		{"garbage is not checked locally", "not a host", "not a host", false},
		{"empty", "", "", true},
		{"spaces", "   ", "", true},
		{"tabs and newlines", "\t\n ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateInput(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrEmptyInput) {
					t.Fatalf("expected ErrEmptyInput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func floatPtr(v float64) *float64 { return &v }

// newBackend starts a test server answering POST /api/track with handler
func newBackend(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// TestClient_Lookup_Success tests the request shape and field mapping
func TestClient_Lookup_Success(t *testing.T) {
	var gotReq models.TrackRequest
	var gotMethod, gotContentType string

	srv := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&gotReq)
		writeJSON(w, http.StatusOK, models.TrackRecord{
			ResolvedIP:  "8.8.8.8",
			City:        "Mountain View",
			Region:      "California",
			CountryName: "United States",
			Org:         "Google LLC",
			Timezone:    "America/Los_Angeles",
			Latitude:    floatPtr(37.4056),
			Longitude:   floatPtr(-122.0775),
		})
	})

	client := NewClient(srv.URL)
	res, err := client.Lookup(context.Background(), "dns.google")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("expected POST, got %s", gotMethod)
	}
	if gotContentType != "application/json" {
		t.Errorf("expected JSON content type, got %s", gotContentType)
	}
	if gotReq.Input != "dns.google" {
		t.Errorf("expected input 'dns.google', got %q", gotReq.Input)
	}
	if res.IP != "8.8.8.8" || res.City != "Mountain View" || res.Country != "United States" {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.Region != "California" || res.Org != "Google LLC" || res.Timezone != "America/Los_Angeles" {
		t.Errorf("unexpected result: %+v", res)
	}
	if *res.Latitude != 37.4056 || *res.Longitude != -122.0775 {
		t.Errorf("unexpected coordinates: %v,%v", *res.Latitude, *res.Longitude)
	}
}

// TestClient_Lookup_MissingCoordinates tests null latitude/longitude
func TestClient_Lookup_MissingCoordinates(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"null latitude", `{"resolved_ip":"10.0.0.1","latitude":null,"longitude":1.5}`},
		{"null longitude", `{"resolved_ip":"10.0.0.1","latitude":1.5,"longitude":null}`},
		{"both absent", `{"resolved_ip":"10.0.0.1","city":"Nowhere"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte(tt.body))
			})

			res, err := NewClient(srv.URL).Lookup(context.Background(), "10.0.0.1")

			if !errors.Is(err, ErrMissingGeoData) {
				t.Fatalf("expected ErrMissingGeoData, got %v", err)
			}
			if res != nil {
				t.Error("expected nil result")
			}
		})
	}
}

// TestClient_Lookup_BackendError tests non-2xx handling
func TestClient_Lookup_BackendError(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected string
	}{
		{"error field verbatim", http.StatusBadRequest, `{"error":"Could not resolve domain"}`, "Could not resolve domain"},
		{"no error field", http.StatusInternalServerError, `{}`, "HTTP error! status: 500"},
		{"not json", http.StatusBadGateway, `<html>bad gateway</html>`, "HTTP error! status: 502"},
		{"empty body", http.StatusServiceUnavailable, ``, "HTTP error! status: 503"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := NewClient(srv.URL).Lookup(context.Background(), "example.com")

			var backendErr *BackendError
			if !errors.As(err, &backendErr) {
				t.Fatalf("expected BackendError, got %T %v", err, err)
			}
			if backendErr.Status != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, backendErr.Status)
			}
			if Message(err) != tt.expected {
				t.Errorf("expected message %q, got %q", tt.expected, Message(err))
			}
		})
	}
}

// TestClient_Lookup_MalformedSuccess tests 2xx bodies without a resolved IP
func TestClient_Lookup_MalformedSuccess(t *testing.T) {
	for _, body := range []string{`not json`, `{"city":"Paris","latitude":1,"longitude":2}`} {
		srv := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		})

		_, err := NewClient(srv.URL).Lookup(context.Background(), "example.com")

		var backendErr *BackendError
		if !errors.As(err, &backendErr) {
			t.Fatalf("body %q: expected BackendError, got %v", body, err)
		}
		if backendErr.Message != "Invalid response from lookup service" {
			t.Errorf("unexpected message: %s", backendErr.Message)
		}
	}
}

// TestClient_Lookup_NetworkError tests an unreachable backend
func TestClient_Lookup_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).Lookup(context.Background(), "example.com")

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if netErr.Timeout {
		t.Error("connection refused is not a timeout")
	}
	if Message(err) != "Network error: could not reach the lookup service." {
		t.Errorf("unexpected message: %s", Message(err))
	}
}

// TestClient_Lookup_Timeout tests that the caller deadline ends the request
func TestClient_Lookup_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewClient(srv.URL).Lookup(ctx, "slow.example")

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if !netErr.Timeout {
		t.Error("expected Timeout to be set")
	}
	if Message(err) != "Request timed out." {
		t.Errorf("unexpected message: %s", Message(err))
	}
}

// TestMessage tests the user-facing text for each error kind
func TestMessage(t *testing.T) {
	tests := []struct {
		err      error
		expected string
	}{
		{nil, ""},
		{ErrEmptyInput, "Please enter a valid IP address or domain."},
		{ErrMissingGeoData, "Location data unavailable for this address."},
		{&BackendError{Status: 400, Message: "Invalid domain or IP"}, "Invalid domain or IP"},
		{errors.New("boom"), "Something went wrong"},
	}

	for _, tt := range tests {
		if got := Message(tt.err); got != tt.expected {
			t.Errorf("Message(%v) = %q, expected %q", tt.err, got, tt.expected)
		}
	}
}
