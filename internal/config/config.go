package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port string

	// Logging
	LogLevel  string
	LogPretty bool

	// Front-end: where the lookup client sends queries
	BackendURL    string
	LookupTimeout time.Duration

	// Map widget
	TileURL              string
	TileAttribution      string
	LayoutSettleFallback time.Duration // 0 disables the fallback resize timer

	// Upstream geolocation provider
	UpstreamURL     string
	UpstreamTimeout time.Duration

	// Response cache
	CacheType string // "memory", "redis" or "mysql"
	CacheTTL  time.Duration

	// Rate limiting on the lookup API
	RateLimitType   string // "memory" or "redis"
	RateLimit       int    // number of requests allowed
	RateLimitWindow int    // window in seconds

	// CORS origins allowed to call /api
	CORSOrigins []string

	// MySQL
	MySQLDSN string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Load reads configuration from a .env file (if present) and the environment
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or defaults")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only
func FromEnv() *Config {
	port := getEnv("PORT", "3000")

	return &Config{
		Port: port,

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnvAsBool("LOG_PRETTY", true),

		BackendURL:    getEnv("BACKEND_URL", "http://localhost:"+port+"/api/track"),
		LookupTimeout: getEnvAsDuration("LOOKUP_TIMEOUT", 10*time.Second),

		TileURL:              getEnv("TILE_URL", "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"),
		TileAttribution:      getEnv("TILE_ATTRIBUTION", "© OpenStreetMap contributors"),
		LayoutSettleFallback: getEnvAsDuration("LAYOUT_SETTLE_FALLBACK", 0),

		UpstreamURL:     getEnv("UPSTREAM_URL", "http://ip-api.com/json/"),
		UpstreamTimeout: getEnvAsDuration("UPSTREAM_TIMEOUT", 5*time.Second),

		CacheType: getEnv("CACHE_TYPE", "memory"),
		CacheTTL:  getEnvAsDuration("CACHE_TTL", 24*time.Hour),

		RateLimitType:   getEnv("RATE_LIMITER_TYPE", "memory"),
		RateLimit:       getEnvAsInt("RATE_LIMIT", 10),
		RateLimitWindow: getEnvAsInt("RATE_LIMIT_WINDOW", 1),

		CORSOrigins: getEnvAsList("CORS_ORIGINS", []string{"*"}),

		MySQLDSN: getEnv("MYSQL_DSN", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
	}
}

// RequestsPerSecond is the effective rate limit, e.g. 10 per 5s = 2 req/s
func (c *Config) RequestsPerSecond() float64 {
	if c.RateLimitWindow <= 0 {
		return float64(c.RateLimit)
	}
	return float64(c.RateLimit) / float64(c.RateLimitWindow)
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt returns the default when the variable is unset or not an integer
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go durations ("10s", "1h30m") or plain seconds
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping empty items
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
