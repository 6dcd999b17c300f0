package geo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/evyataryagoni/iptracker/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// TestExtractHost tests host extraction from free-form input
func TestExtractHost(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{"example.com", "example.com", false},
		{"  example.com  ", "example.com", false},
		{"https://www.example.com/path?q=1", "www.example.com", false},
		{"http://example.com:8080", "example.com", false},
		{"8.8.8.8", "8.8.8.8", false},
		{"8.8.8.8:53", "8.8.8.8", false},
		{"[2001:4860:4860::8888]", "2001:4860:4860::8888", false},
		{"2001:4860:4860::8888", "2001:4860:4860::8888", false},
		{"::1", "::1", false},
		{"fe80::1", "fe80::1", false},
		{"https://[2001:db8::1]:443/x", "2001:db8::1", false},
		{"", "", true},
		{"http://", "", true},
		{"http://%zz", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ExtractHost(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrResolve) {
					t.Errorf("expected ErrResolve, got %v", err)
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

// TestDNSResolver_IPLiteral tests that literals skip DNS
func TestDNSResolver_IPLiteral(t *testing.T) {
	r := NewDNSResolver(nil)

	for _, ip := range []string{"8.8.8.8", "2001:4860:4860::8888"} {
		got, err := r.Resolve(context.Background(), ip)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != ip {
			t.Errorf("expected %s, got %s", ip, got)
		}
	}
}

// TestDNSResolver_Unresolvable tests a name under the reserved .invalid TLD
func TestDNSResolver_Unresolvable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewDNSResolver(nil).Resolve(ctx, "does-not-exist.invalid")
	if !errors.Is(err, ErrResolve) {
		t.Errorf("expected ErrResolve, got %v", err)
	}
}

// TestStaticResolver tests the table resolver
func TestStaticResolver(t *testing.T) {
	r := StaticResolver{"dns.google": "8.8.8.8"}

	if ip, err := r.Resolve(context.Background(), "DNS.google"); err != nil || ip != "8.8.8.8" {
		t.Errorf("expected 8.8.8.8, got %q %v", ip, err)
	}
	if _, err := r.Resolve(context.Background(), "unknown.test"); !errors.Is(err, ErrResolve) {
		t.Errorf("expected ErrResolve, got %v", err)
	}
}

// TestIPAPIProvider_Locate_Success tests field mapping from ip-api.com
func TestIPAPIProvider_Locate_Success(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"status":"success","country":"United States","regionName":"California",
			"city":"Mountain View","lat":37.4056,"lon":-122.0775,"timezone":"America/Los_Angeles",
			"isp":"Google LLC","query":"8.8.8.8"}`))
	}))
	defer srv.Close()

	p := NewIPAPIProvider(srv.URL+"/json", time.Second, nil, nil)
	loc, err := p.Locate(context.Background(), "8.8.8.8")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/json/8.8.8.8" {
		t.Errorf("unexpected path: %s", gotPath)
	}
	if loc.City != "Mountain View" || loc.Region != "California" || loc.Country != "United States" {
		t.Errorf("unexpected location: %+v", loc)
	}
	if loc.Org != "Google LLC" || loc.Timezone != "America/Los_Angeles" {
		t.Errorf("unexpected location: %+v", loc)
	}
	if loc.Latitude == nil || *loc.Latitude != 37.4056 || *loc.Longitude != -122.0775 {
		t.Errorf("unexpected coordinates")
	}
}

// TestIPAPIProvider_Locate_Fail tests a "fail" status
func TestIPAPIProvider_Locate_Fail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"fail","message":"reserved range","query":"10.0.0.1"}`))
	}))
	defer srv.Close()

	_, err := NewIPAPIProvider(srv.URL, time.Second, nil, nil).Locate(context.Background(), "10.0.0.1")

	if !errors.Is(err, ErrNoLocation) {
		t.Fatalf("expected ErrNoLocation, got %v", err)
	}
	if !strings.Contains(err.Error(), "reserved range") {
		t.Errorf("expected provider message in error, got %v", err)
	}
}

// TestIPAPIProvider_Locate_UpstreamErrors tests status, decode and transport failures
func TestIPAPIProvider_Locate_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		kind    string
	}{
		{"non-200", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTooManyRequests) }, "status"},
		{"bad json", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("{")) }, "decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			mc := metrics.NewWithRegistry(prometheus.NewRegistry())
			_, err := NewIPAPIProvider(srv.URL, time.Second, mc, nil).Locate(context.Background(), "8.8.8.8")

			if !errors.Is(err, ErrUpstream) {
				t.Fatalf("expected ErrUpstream, got %v", err)
			}
			if upstreamErrorType(err) != tt.kind {
				t.Errorf("expected kind %s, got %s", tt.kind, upstreamErrorType(err))
			}
		})
	}

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	_, err := NewIPAPIProvider(url, time.Second, nil, nil).Locate(context.Background(), "8.8.8.8")
	if !errors.Is(err, ErrUpstream) || upstreamErrorType(err) != "transport" {
		t.Errorf("expected transport ErrUpstream, got %v", err)
	}
}

// TestMockProvider tests the test double itself
func TestMockProvider(t *testing.T) {
	p := NewMockProvider()

	if loc, err := p.Locate(context.Background(), "8.8.8.8"); err != nil || loc.City != "Mountain View" {
		t.Errorf("unexpected result: %+v %v", loc, err)
	}
	if _, err := p.Locate(context.Background(), "10.0.0.1"); !errors.Is(err, ErrNoLocation) {
		t.Errorf("expected ErrNoLocation, got %v", err)
	}
	if p.Calls() != 2 {
		t.Errorf("expected 2 calls, got %d", p.Calls())
	}
}
