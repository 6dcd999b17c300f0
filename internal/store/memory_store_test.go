package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestMemoryStore_SaveAndFind tests a round trip
func TestMemoryStore_SaveAndFind(t *testing.T) {
	store := NewMemoryStore(time.Hour, time.Minute)
	defer store.Close()

	if err := store.Save(context.Background(), sampleRecord()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	record, err := store.FindByIP(context.Background(), "8.8.8.8")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.City != "Mountain View" {
		t.Errorf("expected 'Mountain View', got '%s'", record.City)
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", store.Len())
	}
}

// TestMemoryStore_ReturnsCopies tests callers cannot mutate cached entries
func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore(time.Hour, time.Minute)
	defer store.Close()

	store.Save(context.Background(), sampleRecord())

	first, _ := store.FindByIP(context.Background(), "8.8.8.8")
	first.City = "changed"
	*first.Latitude = 0

	second, _ := store.FindByIP(context.Background(), "8.8.8.8")
	if second.City != "Mountain View" || *second.Latitude != 37.4056 {
		t.Errorf("cached entry was mutated: %+v", second)
	}
}

// TestMemoryStore_Expiry tests entries expire after the TTL
func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore(20*time.Millisecond, time.Minute)
	defer store.Close()

	store.Save(context.Background(), sampleRecord())
	time.Sleep(50 * time.Millisecond)

	if _, err := store.FindByIP(context.Background(), "8.8.8.8"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after expiry, got %v", err)
	}
}

// TestMemoryStore_Miss tests unknown IPs
func TestMemoryStore_Miss(t *testing.T) {
	store := NewMemoryStore(time.Hour, time.Minute)

	if _, err := store.FindByIP(context.Background(), "1.2.3.4"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.Save(context.Background(), nil); err == nil {
		t.Error("expected error saving nil record")
	}
	if store.Name() != "memory" {
		t.Errorf("unexpected name %s", store.Name())
	}
}
