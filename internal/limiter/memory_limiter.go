package limiter

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// bucketIdle is how long an untouched bucket is kept before the janitor drops it
const bucketIdle = 5 * time.Minute

// tokenBucket allows bursts of up to capacity requests while holding the
// average at refillRate per second
type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	refillRate float64
	lastRefill time.Time
}

func newTokenBucket(rate, capacity float64, now time.Time) *tokenBucket {
	if capacity < 1 {
		capacity = 1
	}
	return &tokenBucket{
		tokens:     capacity,
		capacity:   capacity,
		refillRate: rate,
		lastRefill: now,
	}
}

func (tb *tokenBucket) allow(now time.Time) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed > 0 {
		tb.tokens += elapsed * tb.refillRate
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastRefill = now
	}

	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

// MemoryLimiter keeps one token bucket per client in process memory
// Suitable for single-server deployments
type MemoryLimiter struct {
	policy  Policy
	buckets *cache.Cache
	mu      sync.Mutex
	now     func() time.Time
}

// NewMemoryLimiter creates an in-memory limiter for policy
// Idle buckets expire from a go-cache so memory stays bounded
func NewMemoryLimiter(policy Policy) *MemoryLimiter {
	return &MemoryLimiter{
		policy:  policy,
		buckets: cache.New(bucketIdle, bucketIdle),
		now:     time.Now,
	}
}

func (rl *MemoryLimiter) Allow(_ context.Context, key string) bool {
	return rl.bucket(key).allow(rl.now())
}

// bucket gets or creates the bucket for key and refreshes its idle expiry
func (rl *MemoryLimiter) bucket(key string) *tokenBucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	var b *tokenBucket
	if v, ok := rl.buckets.Get(key); ok {
		b = v.(*tokenBucket)
	} else {
		b = newTokenBucket(rl.policy.rate(), float64(rl.policy.Limit), rl.now())
	}
	rl.buckets.SetDefault(key, b)
	return b
}

func (rl *MemoryLimiter) Close() error {
	rl.buckets.Flush()
	return nil
}
