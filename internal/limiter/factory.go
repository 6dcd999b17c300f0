package limiter

import (
	"fmt"
	"strings"
	"time"

	"github.com/evyataryagoni/iptracker/internal/logger"
	"github.com/redis/go-redis/v9"
)

// LimiterConfig holds configuration for creating a rate limiter
type LimiterConfig struct {
	Type   string // "memory" or "redis"
	Limit  int
	Window time.Duration

	// Redis-specific config; Client, when set, is reused instead of dialing
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Client        *redis.Client
}

// NewLimiter creates a rate limiter based on the configuration (factory pattern)
func NewLimiter(cfg LimiterConfig, log *logger.Logger) (Limiter, error) {
	policy := Policy{Limit: cfg.Limit, Window: cfg.Window}
	if policy.Limit <= 0 {
		return nil, fmt.Errorf("rate limit must be positive, got %d", cfg.Limit)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "memory", "":
		return NewMemoryLimiter(policy), nil

	case "redis":
		if cfg.Client != nil {
			return NewRedisLimiterWithClient(cfg.Client, policy, log), nil
		}
		limiter, err := NewRedisLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, policy, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis limiter: %w", err)
		}
		return limiter, nil

	default:
		return nil, fmt.Errorf("unknown rate limiter type: %s (supported: 'memory', 'redis')", cfg.Type)
	}
}
