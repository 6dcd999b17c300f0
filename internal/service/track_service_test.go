package service

import (
	"context"
	"errors"
	"testing"

	"github.com/evyataryagoni/iptracker/internal/geo"
	"github.com/evyataryagoni/iptracker/internal/logger"
	"github.com/evyataryagoni/iptracker/internal/metrics"
	"github.com/evyataryagoni/iptracker/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func newTestService() (*TrackService, *geo.MockProvider, *store.MockStore) {
	provider := geo.NewMockProvider()
	cache := store.NewMockStore()
	resolver := geo.StaticResolver{
		"dns.google": "8.8.8.8",
		"one.one":    "1.1.1.1",
		"intranet":   "10.0.0.1",
	}
	return NewTrackService(resolver, provider, cache, nil, logger.Nop()), provider, cache
}

// TestTrackService_Track_Success tests IPs, domains and URLs
func TestTrackService_Track_Success(t *testing.T) {
	tests := []struct {
		name            string
		input           string
		expectedIP      string
		expectedCity    string
		expectedCountry string
	}{
		{"ip literal", "8.8.8.8", "8.8.8.8", "Mountain View", "United States"},
		{"domain", "dns.google", "8.8.8.8", "Mountain View", "United States"},
		{"url", "https://one.one/path?q=1", "1.1.1.1", "Sydney", "Australia"},
		{"padded", "   1.1.1.1  ", "1.1.1.1", "Sydney", "Australia"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, provider, cache := newTestService()

			result, err := service.Track(context.Background(), tt.input)

			if err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}
			if result.ResolvedIP != tt.expectedIP {
				t.Errorf("expected IP %s, got %s", tt.expectedIP, result.ResolvedIP)
			}
			if result.City != tt.expectedCity {
				t.Errorf("expected city %s, got %s", tt.expectedCity, result.City)
			}
			if result.CountryName != tt.expectedCountry {
				t.Errorf("expected country %s, got %s", tt.expectedCountry, result.CountryName)
			}
			if !result.HasCoordinates() {
				t.Error("expected coordinates")
			}
			if provider.Calls() != 1 {
				t.Errorf("expected 1 provider call, got %d", provider.Calls())
			}
			if len(cache.SaveCalls) != 1 {
				t.Errorf("expected record to be cached, got %d saves", len(cache.SaveCalls))
			}
		})
	}
}

// TestTrackService_Track_CacheHit tests the provider is skipped on a hit
func TestTrackService_Track_CacheHit(t *testing.T) {
	service, provider, _ := newTestService()

	if _, err := service.Track(context.Background(), "8.8.8.8"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := service.Track(context.Background(), "dns.google")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.City != "Mountain View" {
		t.Errorf("expected cached record, got %+v", result)
	}
	if provider.Calls() != 1 {
		t.Errorf("expected 1 provider call, got %d", provider.Calls())
	}
}

// TestTrackService_Track_InvalidInput tests empty input
func TestTrackService_Track_InvalidInput(t *testing.T) {
	for _, input := range []string{"", "   ", "\t\n"} {
		service, provider, _ := newTestService()

		_, err := service.Track(context.Background(), input)

		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%q: expected ErrInvalidInput, got %v", input, err)
		}
		if err != nil && err.Error() != "No input provided" {
			t.Errorf("unexpected message %q", err.Error())
		}
		if provider.Calls() != 0 {
			t.Error("provider should not be called")
		}
	}
}

// TestTrackService_Track_Unresolvable tests hosts that are not valid or unknown
func TestTrackService_Track_Unresolvable(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unknown host", "nowhere.test"},
		{"spaces", "not a domain"},
		{"bad characters", "exa_mple!.com"},
		{"empty host", "http://"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, provider, _ := newTestService()

			_, err := service.Track(context.Background(), tt.input)

			if !errors.Is(err, geo.ErrResolve) {
				t.Fatalf("expected ErrResolve, got %v", err)
			}
			if provider.Calls() != 0 {
				t.Error("provider should not be called")
			}
		})
	}
}

// TestTrackService_Track_NoLocation tests null coordinates are returned, not cached
func TestTrackService_Track_NoLocation(t *testing.T) {
	service, _, cache := newTestService()

	result, err := service.Track(context.Background(), "intranet")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ResolvedIP != "10.0.0.1" {
		t.Errorf("expected 10.0.0.1, got %s", result.ResolvedIP)
	}
	if result.HasCoordinates() {
		t.Error("expected null coordinates")
	}
	if len(cache.SaveCalls) != 0 {
		t.Error("empty records should not be cached")
	}
}

// TestTrackService_Track_UpstreamError tests provider failures
func TestTrackService_Track_UpstreamError(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"upstream", geo.ErrUpstream},
		{"other", errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, provider, cache := newTestService()
			provider.LocateError = tt.err

			_, err := service.Track(context.Background(), "8.8.8.8")

			if !errors.Is(err, geo.ErrUpstream) {
				t.Fatalf("expected ErrUpstream, got %v", err)
			}
			if len(cache.SaveCalls) != 0 {
				t.Error("nothing should be cached")
			}
		})
	}
}

// TestTrackService_Track_CacheFailures tests a broken cache does not fail requests
func TestTrackService_Track_CacheFailures(t *testing.T) {
	service, provider, cache := newTestService()
	cache.FindByIPError = errors.New("connection refused")
	cache.SaveError = errors.New("connection refused")

	result, err := service.Track(context.Background(), "8.8.8.8")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.City != "Mountain View" {
		t.Errorf("unexpected result %+v", result)
	}
	if provider.Calls() != 1 {
		t.Errorf("expected provider fallback, got %d calls", provider.Calls())
	}
}

// TestTrackService_Metrics tests outcome and cache counters
func TestTrackService_Metrics(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	service := NewTrackService(geo.StaticResolver{}, geo.NewMockProvider(), store.NewMockStore(), m, logger.Nop())

	service.Track(context.Background(), "8.8.8.8")
	service.Track(context.Background(), "8.8.8.8")
	service.Track(context.Background(), "")

	if v := counterValue(t, m.TracksTotal.WithLabelValues("success")); v != 1 {
		t.Errorf("expected 1 success, got %v", v)
	}
	if v := counterValue(t, m.TracksTotal.WithLabelValues("cache_hit")); v != 1 {
		t.Errorf("expected 1 cache hit, got %v", v)
	}
	if v := counterValue(t, m.TracksTotal.WithLabelValues("invalid_input")); v != 1 {
		t.Errorf("expected 1 invalid input, got %v", v)
	}
	if v := counterValue(t, m.CacheHits.WithLabelValues("mock", "miss")); v != 1 {
		t.Errorf("expected 1 miss, got %v", v)
	}
}

// TestTrackService_Close tests the cache is closed
func TestTrackService_Close(t *testing.T) {
	service, _, cache := newTestService()

	if err := service.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cache.CloseCalled {
		t.Error("expected cache to be closed")
	}
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}
