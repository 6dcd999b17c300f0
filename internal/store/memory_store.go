package store

import (
	"context"
	"errors"
	"time"

	"github.com/evyataryagoni/iptracker/internal/models"
	"github.com/patrickmn/go-cache"
)

// MemoryStore is a process-local cache with per-entry expiry
// Suitable for a single server; entries are lost on restart
type MemoryStore struct {
	cache *cache.Cache
}

// NewMemoryStore creates a memory store whose entries live for ttl
// Expired entries are purged every cleanupInterval
func NewMemoryStore(ttl, cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{cache: cache.New(ttl, cleanupInterval)}
}

func (s *MemoryStore) FindByIP(_ context.Context, ip string) (*models.TrackRecord, error) {
	v, ok := s.cache.Get(ip)
	if !ok {
		return nil, ErrNotFound
	}
	return clone(v.(*models.TrackRecord)), nil
}

func (s *MemoryStore) Save(_ context.Context, record *models.TrackRecord) error {
	if record == nil || record.ResolvedIP == "" {
		return errors.New("cannot cache a record without resolved IP")
	}
	s.cache.SetDefault(record.ResolvedIP, clone(record))
	return nil
}

// Len returns the number of entries, expired ones included until purged
func (s *MemoryStore) Len() int {
	return s.cache.ItemCount()
}

func (s *MemoryStore) Name() string { return "memory" }

func (s *MemoryStore) Close() error {
	s.cache.Flush()
	return nil
}
