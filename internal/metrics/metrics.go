package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Response cache
	CacheQueriesTotal  *prometheus.CounterVec
	CacheQueryDuration *prometheus.HistogramVec
	CacheHits          *prometheus.CounterVec

	// Upstream geolocation provider
	UpstreamRequestDuration prometheus.Histogram
	UpstreamErrors          *prometheus.CounterVec

	// Lookup API
	TracksTotal *prometheus.CounterVec

	// Front-end
	ViewTransitions *prometheus.CounterVec
	MarkersPlaced   prometheus.Counter
}

// New creates all metrics and registers them with the default registry
// It must only be called once per process
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the metrics with reg
// Tests pass a fresh prometheus.NewRegistry() to avoid duplicate registration
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint", "status"},
		),

		HTTPRequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 7),
			},
			[]string{"method", "endpoint"},
		),

		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 7),
			},
			[]string{"method", "endpoint", "status"},
		),

		CacheQueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_cache_queries_total",
				Help: "Total number of response cache operations",
			},
			[]string{"cache", "operation", "status"},
		),

		CacheQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tracker_cache_query_duration_seconds",
				Help:    "Response cache latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"cache", "operation"},
		),

		CacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_cache_hits_total",
				Help: "Response cache hits vs misses",
			},
			[]string{"cache", "result"},
		),

		UpstreamRequestDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tracker_upstream_request_duration_seconds",
				Help:    "Geolocation provider latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		UpstreamErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_upstream_errors_total",
				Help: "Geolocation provider failures",
			},
			[]string{"error_type"},
		),

		TracksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_tracks_total",
				Help: "Lookup API outcomes",
			},
			[]string{"result"},
		),

		ViewTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_view_transitions_total",
				Help: "Front-end view state transitions by target state",
			},
			[]string{"state"},
		),

		MarkersPlaced: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tracker_map_markers_placed_total",
				Help: "Markers placed on the map canvas",
			},
		),
	}
}
