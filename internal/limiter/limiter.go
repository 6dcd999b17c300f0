package limiter

import (
	"context"
	"time"
)

// Limiter decides whether a client may call the lookup API
// Clients are identified by key, usually the remote IP
type Limiter interface {
	// Allow reports whether a request from key should be served
	Allow(ctx context.Context, key string) bool

	// Close cleans up any resources (Redis connections, janitors)
	Close() error
}

// Policy is "Limit requests per Window" for each client
type Policy struct {
	Limit  int
	Window time.Duration
}

// rate returns tokens added per second
func (p Policy) rate() float64 {
	if p.Window <= 0 {
		return float64(p.Limit)
	}
	return float64(p.Limit) / p.Window.Seconds()
}

// window never drops below one second so Redis keys get a usable TTL
func (p Policy) window() time.Duration {
	if p.Window < time.Second {
		return time.Second
	}
	return p.Window
}
