package store

import (
	"context"
	"sync"

	"github.com/evyataryagoni/iptracker/internal/models"
)

// MockStore is a test double for the Store interface
// It records calls and can be told to fail
type MockStore struct {
	mu sync.Mutex

	// Data holds cached records by resolved IP
	Data map[string]*models.TrackRecord

	// Track method calls for verification in tests
	FindByIPCalls []string
	SaveCalls     []*models.TrackRecord
	CloseCalled   bool

	// Control behavior for error scenarios
	FindByIPError error
	SaveError     error
	CloseError    error
}

// NewMockStore creates an empty mock store
func NewMockStore() *MockStore {
	return &MockStore{
		Data: map[string]*models.TrackRecord{},
	}
}

func (m *MockStore) FindByIP(_ context.Context, ip string) (*models.TrackRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FindByIPCalls = append(m.FindByIPCalls, ip)
	if m.FindByIPError != nil {
		return nil, m.FindByIPError
	}
	record, ok := m.Data[ip]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(record), nil
}

func (m *MockStore) Save(_ context.Context, record *models.TrackRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveCalls = append(m.SaveCalls, record)
	if m.SaveError != nil {
		return m.SaveError
	}
	m.Data[record.ResolvedIP] = clone(record)
	return nil
}

func (m *MockStore) Name() string { return "mock" }

func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalled = true
	return m.CloseError
}
