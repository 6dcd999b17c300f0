package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/evyataryagoni/iptracker/internal/geo"
	"github.com/evyataryagoni/iptracker/internal/logger"
	"github.com/evyataryagoni/iptracker/internal/metrics"
	"github.com/evyataryagoni/iptracker/internal/models"
	"github.com/evyataryagoni/iptracker/internal/store"
	"github.com/go-playground/validator/v10"
)

// ErrInvalidInput means the request carried no usable input
var ErrInvalidInput = errors.New("No input provided")

// TrackService handles business logic for tracking lookups
// This is the service layer - it sits between handlers and the outside world
//
// Responsibilities:
//   - Validate input
//   - Turn a domain, URL or IP into one IP address
//   - Serve from the response cache when possible
//   - Ask the geolocation provider otherwise and cache the answer
type TrackService struct {
	resolver  geo.Resolver
	provider  geo.Provider
	cache     store.Store
	validator *validator.Validate
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

// NewTrackService creates a new track service
//
// Parameters:
//   - resolver: host name resolution (DNS in production)
//   - provider: geolocation lookups
//   - cache: response cache keyed by resolved IP
//   - m: metrics collector (optional, can be nil)
//   - log: logger (optional, can be nil)
func NewTrackService(resolver geo.Resolver, provider geo.Provider, cache store.Store, m *metrics.Metrics, log *logger.Logger) *TrackService {
	if log == nil {
		log = logger.NewDefault()
	}
	return &TrackService{
		resolver:  resolver,
		provider:  provider,
		cache:     cache,
		validator: validator.New(),
		metrics:   m,
		logger:    log.WithComponent("TrackService"),
	}
}

// Track resolves input and returns its geolocation record
//
// Flow:
//  1. Validate the raw input and extract the host
//  2. Resolve the host to an IP
//  3. Query the cache, then the provider on a miss
//  4. Cache what the provider returned
//
// Errors: ErrInvalidInput, geo.ErrResolve, geo.ErrUpstream or a wrapped
// unexpected failure
func (s *TrackService) Track(ctx context.Context, input string) (*models.TrackRecord, error) {
	input = strings.TrimSpace(input)
	if err := s.validator.Var(input, "required"); err != nil {
		s.count("invalid_input")
		return nil, ErrInvalidInput
	}

	host, err := geo.ExtractHost(input)
	if err != nil {
		s.logger.Warn().Str("input", input).Msg("Could not extract host")
		s.count("unresolvable")
		return nil, err
	}
	if err := s.validator.Var(host, "ip|hostname_rfc1123"); err != nil {
		s.logger.Warn().Str("host", host).Msg("Invalid host format")
		s.count("unresolvable")
		return nil, geo.ErrResolve
	}

	ip, err := s.resolver.Resolve(ctx, host)
	if err != nil {
		s.logger.Warn().Err(err).Str("host", host).Msg("Host did not resolve")
		s.count("unresolvable")
		if errors.Is(err, geo.ErrResolve) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", geo.ErrResolve, err)
	}

	log := s.logger.WithIP(ip)

	if record, ok := s.fromCache(ctx, log, ip); ok {
		log.Info().Str("city", record.City).Msg("Track served from cache")
		s.count("cache_hit")
		return record, nil
	}

	loc, err := s.provider.Locate(ctx, ip)
	switch {
	case errors.Is(err, geo.ErrNoLocation):
		// Reserved and private ranges: answer with nulls, never cache them
		log.Info().Err(err).Msg("Provider has no location")
		s.count("no_location")
		return &models.TrackRecord{ResolvedIP: ip}, nil
	case errors.Is(err, geo.ErrUpstream):
		log.Error().Err(err).Msg("Provider lookup failed")
		s.count("upstream_error")
		return nil, err
	case err != nil:
		log.Error().Err(err).Msg("Provider lookup failed")
		s.count("upstream_error")
		return nil, fmt.Errorf("%w: %v", geo.ErrUpstream, err)
	}

	record := &models.TrackRecord{
		ResolvedIP:  ip,
		City:        loc.City,
		Region:      loc.Region,
		CountryName: loc.Country,
		Org:         loc.Org,
		Timezone:    loc.Timezone,
		Latitude:    loc.Latitude,
		Longitude:   loc.Longitude,
	}

	s.toCache(ctx, log, record)

	log.Info().
		Str("city", record.City).
		Str("country", record.CountryName).
		Msg("Track successful")
	s.count("success")
	return record, nil
}

// fromCache returns a cached record; cache failures count as misses
func (s *TrackService) fromCache(ctx context.Context, log *logger.Logger, ip string) (*models.TrackRecord, bool) {
	if s.cache == nil {
		return nil, false
	}

	start := time.Now()
	record, err := s.cache.FindByIP(ctx, ip)
	s.observe("find", start, err)

	switch {
	case err == nil:
		s.hit("hit")
		return record, true
	case errors.Is(err, store.ErrNotFound):
		s.hit("miss")
	default:
		log.Error().Err(err).Str("cache", s.cache.Name()).Msg("Cache lookup failed")
		s.hit("error")
	}
	return nil, false
}

// toCache stores record; a failing cache never fails the request
func (s *TrackService) toCache(ctx context.Context, log *logger.Logger, record *models.TrackRecord) {
	if s.cache == nil {
		return
	}

	start := time.Now()
	err := s.cache.Save(ctx, record)
	s.observe("save", start, err)

	if err != nil {
		log.Error().Err(err).Str("cache", s.cache.Name()).Msg("Cache save failed")
	}
}

func (s *TrackService) observe(operation string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	status := "success"
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		status = "error"
	}
	name := s.cache.Name()
	s.metrics.CacheQueryDuration.WithLabelValues(name, operation).Observe(time.Since(start).Seconds())
	s.metrics.CacheQueriesTotal.WithLabelValues(name, operation, status).Inc()
}

func (s *TrackService) hit(result string) {
	if s.metrics != nil {
		s.metrics.CacheHits.WithLabelValues(s.cache.Name(), result).Inc()
	}
}

func (s *TrackService) count(result string) {
	if s.metrics != nil {
		s.metrics.TracksTotal.WithLabelValues(result).Inc()
	}
}

// Close cleans up resources
// This will close the underlying cache (database connections, etc.)
func (s *TrackService) Close() error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Close()
}
