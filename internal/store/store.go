package store

import (
	"context"
	"errors"

	"github.com/evyataryagoni/iptracker/internal/models"
)

// ErrNotFound is returned when the cache has no live entry for an IP
var ErrNotFound = errors.New("IP address not found")

// Store is the response cache in front of the geolocation provider
// Entries are keyed by resolved IP and expire after the store's TTL
type Store interface {
	// FindByIP returns the cached record or ErrNotFound
	FindByIP(ctx context.Context, ip string) (*models.TrackRecord, error)

	// Save caches record under record.ResolvedIP, replacing any previous entry
	Save(ctx context.Context, record *models.TrackRecord) error

	// Name identifies the backend in logs and metrics
	Name() string

	// Close cleans up resources (connections, janitors)
	Close() error
}

// clone copies a record so callers never share pointers with the cache
func clone(r *models.TrackRecord) *models.TrackRecord {
	c := *r
	if r.Latitude != nil {
		lat := *r.Latitude
		c.Latitude = &lat
	}
	if r.Longitude != nil {
		lon := *r.Longitude
		c.Longitude = &lon
	}
	return &c
}
