package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/evyataryagoni/iptracker/internal/logger"
	"github.com/redis/go-redis/v9"
)

// windowScript increments the counter of the current window and sets its
// expiry on first use. KEYS[1] = key, ARGV[1] = TTL in seconds
var windowScript = redis.NewScript(`
local current = redis.call('INCR', KEYS[1])
if current == 1 then
	redis.call('EXPIRE', KEYS[1], tonumber(ARGV[1]))
end
return current
`)

// RedisLimiter is a fixed-window limiter shared by every server instance
// Key format: "ratelimit:{key}:{window}"
type RedisLimiter struct {
	client    *redis.Client
	ownClient bool
	policy    Policy
	logger    *logger.Logger
	now       func() time.Time
}

// NewRedisLimiter connects to Redis and returns a limiter owning the connection
//
// Parameters:
//   - addr: Redis server address (e.g., "localhost:6379")
//   - password: Redis password (empty string if no password)
//   - db: Redis database number
//   - policy: requests allowed per window
func NewRedisLimiter(addr, password string, db int, policy Policy, log *logger.Logger) (*RedisLimiter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis for rate limiting: %w", err)
	}

	rl := NewRedisLimiterWithClient(client, policy, log)
	rl.ownClient = true
	return rl, nil
}

// NewRedisLimiterWithClient shares an existing connection (the Redis cache's)
// Close leaves a shared client open
func NewRedisLimiterWithClient(client *redis.Client, policy Policy, log *logger.Logger) *RedisLimiter {
	if log == nil {
		log = logger.Nop()
	}
	return &RedisLimiter{
		client: client,
		policy: policy,
		logger: log.WithComponent("RedisLimiter"),
		now:    time.Now,
	}
}

// Allow counts the request in the current window
// Redis failures fail open so an outage never blocks lookups
func (rl *RedisLimiter) Allow(ctx context.Context, key string) bool {
	window := rl.policy.window()
	slot := rl.now().Unix() / int64(window.Seconds())
	redisKey := fmt.Sprintf("ratelimit:%s:%d", key, slot)

	count, err := windowScript.Run(ctx, rl.client, []string{redisKey}, int(window.Seconds())*2).Int64()
	if err != nil {
		rl.logger.Warn().Err(err).Str("key", key).Msg("Rate limit check failed, allowing request")
		return true
	}

	return count <= int64(rl.policy.Limit)
}

func (rl *RedisLimiter) Close() error {
	if rl.client != nil && rl.ownClient {
		return rl.client.Close()
	}
	return nil
}
