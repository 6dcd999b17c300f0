package geo

import (
	"context"
	"sync"
)

// MockProvider is a test double for the Provider interface
type MockProvider struct {
	mu sync.Mutex

	// Data maps IP -> location
	Data map[string]*Location

	// LocateCalls records every IP asked for
	LocateCalls []string

	// LocateError, when set, is returned by every call
	LocateError error
}

// NewMockProvider creates a provider knowing 8.8.8.8 and 1.1.1.1
func NewMockProvider() *MockProvider {
	lat1, lon1 := 37.4056, -122.0775
	lat2, lon2 := -33.8688, 151.2093
	return &MockProvider{
		Data: map[string]*Location{
			"8.8.8.8": {
				City:      "Mountain View",
				Region:    "California",
				Country:   "United States",
				Org:       "Google LLC",
				Timezone:  "America/Los_Angeles",
				Latitude:  &lat1,
				Longitude: &lon1,
			},
			"1.1.1.1": {
				City:      "Sydney",
				Region:    "New South Wales",
				Country:   "Australia",
				Org:       "Cloudflare, Inc",
				Timezone:  "Australia/Sydney",
				Latitude:  &lat2,
				Longitude: &lon2,
			},
		},
	}
}

// Locate implements Provider; unknown IPs yield ErrNoLocation
func (m *MockProvider) Locate(_ context.Context, ip string) (*Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LocateCalls = append(m.LocateCalls, ip)
	if m.LocateError != nil {
		return nil, m.LocateError
	}
	loc, ok := m.Data[ip]
	if !ok {
		return nil, ErrNoLocation
	}
	return loc, nil
}

// Calls returns how many times Locate was called
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.LocateCalls)
}
