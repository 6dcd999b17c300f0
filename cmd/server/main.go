package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/evyataryagoni/iptracker/internal/config"
	"github.com/evyataryagoni/iptracker/internal/geo"
	"github.com/evyataryagoni/iptracker/internal/handler"
	"github.com/evyataryagoni/iptracker/internal/limiter"
	"github.com/evyataryagoni/iptracker/internal/logger"
	"github.com/evyataryagoni/iptracker/internal/lookup"
	"github.com/evyataryagoni/iptracker/internal/mapview"
	"github.com/evyataryagoni/iptracker/internal/metrics"
	"github.com/evyataryagoni/iptracker/internal/render"
	"github.com/evyataryagoni/iptracker/internal/router"
	"github.com/evyataryagoni/iptracker/internal/service"
	"github.com/evyataryagoni/iptracker/internal/store"
	"github.com/evyataryagoni/iptracker/internal/view"
	"github.com/evyataryagoni/iptracker/internal/web"
)

func main() {
	// Load configuration
	appConfig := config.Load()

	// Initialize components
	appLogger := setupLogger(appConfig)
	cache := setupCache(appConfig, appLogger)

	rateLimiter := setupRateLimiter(appConfig, cache, appLogger)
	defer rateLimiter.Close()

	metricsCollector := setupMetrics(appLogger)

	// Backend: /api/track
	provider := geo.NewIPAPIProvider(appConfig.UpstreamURL, appConfig.UpstreamTimeout, metricsCollector, appLogger)
	trackService := service.NewTrackService(geo.NewDNSResolver(nil), provider, cache, metricsCollector, appLogger)
	defer trackService.Close()

	// Front-end: the page talks to the backend through the same HTTP contract
	// any other client uses
	uiHandler, mapRenderer := setupUI(appConfig, metricsCollector, appLogger)
	defer mapRenderer.Close()

	appRouter := router.SetupRouter(router.Deps{
		Track:       handler.NewTrackHandler(trackService, appLogger),
		UI:          uiHandler,
		RateLimiter: rateLimiter,
		CORSOrigins: appConfig.CORSOrigins,
		Metrics:     metricsCollector,
		Logger:      appLogger,
	})

	// Start server
	startServer(appConfig, appRouter, appLogger)
}

// setupLogger initializes the structured logger
func setupLogger(appConfig *config.Config) *logger.Logger {
	appLogger := logger.New(logger.Config{
		Level:  appConfig.LogLevel,
		Pretty: appConfig.LogPretty,
	})

	appLogger.Info().Msg("Starting IP Tracker Server...")
	appLogger.Info().
		Str("port", appConfig.Port).
		Str("backend_url", appConfig.BackendURL).
		Str("upstream_url", appConfig.UpstreamURL).
		Str("cache_type", appConfig.CacheType).
		Dur("cache_ttl", appConfig.CacheTTL).
		Str("rate_limiter_type", appConfig.RateLimitType).
		Int("rate_limit", appConfig.RateLimit).
		Int("rate_limit_window", appConfig.RateLimitWindow).
		Msg("Configuration loaded")

	return appLogger
}

// setupCache initializes the response cache based on configuration
// Supports memory, Redis and MySQL backends
func setupCache(appConfig *config.Config, log *logger.Logger) store.Store {
	var cache store.Store
	var err error

	switch appConfig.CacheType {
	case "memory", "":
		cache = store.NewMemoryStore(appConfig.CacheTTL, 10*time.Minute)

	case "redis":
		cache, err = store.NewRedisStore(appConfig.RedisAddr, appConfig.RedisPassword, appConfig.RedisDB, appConfig.CacheTTL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Redis cache")
		}

	case "mysql":
		cache, err = store.NewMySQLStore(appConfig.MySQLDSN, appConfig.CacheTTL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize MySQL cache")
		}

	default:
		log.Fatal().Str("type", appConfig.CacheType).Msg("Unknown cache type")
	}

	log.Info().Str("cache", cache.Name()).Msg("Response cache initialized")
	return cache
}

// setupRateLimiter initializes the rate limiter
// A Redis limiter reuses the Redis cache's connection when there is one
func setupRateLimiter(appConfig *config.Config, cache store.Store, log *logger.Logger) limiter.Limiter {
	cfg := limiter.LimiterConfig{
		Type:          appConfig.RateLimitType,
		Limit:         appConfig.RateLimit,
		Window:        time.Duration(appConfig.RateLimitWindow) * time.Second,
		RedisAddr:     appConfig.RedisAddr,
		RedisPassword: appConfig.RedisPassword,
		RedisDB:       appConfig.RedisDB,
	}
	if redisCache, ok := cache.(*store.RedisStore); ok {
		cfg.Client = redisCache.Client()
	}

	rateLimiter, err := limiter.NewLimiter(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize rate limiter")
	}

	log.Info().
		Str("type", appConfig.RateLimitType).
		Float64("requests_per_second", appConfig.RequestsPerSecond()).
		Msg("Rate limiter initialized")

	return rateLimiter
}

// setupMetrics initializes the Prometheus metrics collector
func setupMetrics(log *logger.Logger) *metrics.Metrics {
	metricsCollector := metrics.New()
	log.Info().Msg("Metrics initialized")
	return metricsCollector
}

// setupUI builds the view state machine and subscribes both renderers to it
func setupUI(appConfig *config.Config, m *metrics.Metrics, log *logger.Logger) (*web.UIHandler, *mapview.Renderer) {
	tiles := mapview.DefaultTileConfig()
	tiles.URLTemplate = appConfig.TileURL
	tiles.Attribution = appConfig.TileAttribution

	client := lookup.NewClient(appConfig.BackendURL, lookup.WithLogger(log))
	machine := view.NewMachine(client,
		view.WithTimeout(appConfig.LookupTimeout),
		view.WithMetrics(m),
		view.WithLogger(log),
	)

	results := &render.Results{}
	mapRenderer := mapview.NewRenderer(mapview.TileFactory(tiles),
		mapview.WithSettleFallback(appConfig.LayoutSettleFallback),
		mapview.WithMetrics(m),
		mapview.WithLogger(log),
	)

	machine.Subscribe(results.Apply)
	machine.Subscribe(mapRenderer.Apply)

	uiHandler, err := web.NewUIHandler(machine, results, mapRenderer, tiles, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize UI")
	}
	return uiHandler, mapRenderer
}

// startServer serves until SIGINT/SIGTERM, then drains in-flight requests
func startServer(appConfig *config.Config, appRouter http.Handler, log *logger.Logger) {
	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           appRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().
			Str("port", appConfig.Port).
			Str("ui", "http://localhost:"+appConfig.Port+"/").
			Str("api_endpoint", "http://localhost:"+appConfig.Port+"/api/track").
			Str("health_check", "http://localhost:"+appConfig.Port+"/health").
			Str("metrics", "http://localhost:"+appConfig.Port+"/metrics").
			Msg("Server is running")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
