package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/evyataryagoni/iptracker/internal/models"
	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces cache entries: track:<ip>
const keyPrefix = "track:"

// RedisStore caches records in Redis, shared by every server instance
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies the connection
//
// Parameters:
//   - addr: Redis server address (e.g., "localhost:6379")
//   - password: Redis password (empty string if no password)
//   - db: Redis database number
//   - ttl: lifetime of each cached record (0 = no expiry)
func NewRedisStore(addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) FindByIP(ctx context.Context, ip string) (*models.TrackRecord, error) {
	val, err := s.client.Get(ctx, keyPrefix+ip).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("Redis query failed: %w", err)
	}

	var record models.TrackRecord
	if err := json.Unmarshal([]byte(val), &record); err != nil {
		return nil, fmt.Errorf("failed to decode cached record: %w", err)
	}
	return &record, nil
}

func (s *RedisStore) Save(ctx context.Context, record *models.TrackRecord) error {
	if record == nil || record.ResolvedIP == "" {
		return errors.New("cannot cache a record without resolved IP")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	if err := s.client.Set(ctx, keyPrefix+record.ResolvedIP, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store in Redis: %w", err)
	}
	return nil
}

// Client exposes the connection so the distributed limiter can share it
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func (s *RedisStore) Name() string { return "redis" }

func (s *RedisStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
