package router

import (
	"net/http"

	"github.com/evyataryagoni/iptracker/internal/handler"
	"github.com/evyataryagoni/iptracker/internal/limiter"
	"github.com/evyataryagoni/iptracker/internal/logger"
	"github.com/evyataryagoni/iptracker/internal/metrics"
	custommiddleware "github.com/evyataryagoni/iptracker/internal/middleware"
	"github.com/evyataryagoni/iptracker/internal/router/api"
	"github.com/evyataryagoni/iptracker/internal/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the handlers and shared services the router mounts
type Deps struct {
	Track       *handler.TrackHandler
	UI          *web.UIHandler
	RateLimiter limiter.Limiter
	CORSOrigins []string
	Metrics     *metrics.Metrics
	Logger      *logger.Logger

	// MetricsHandler serves /metrics; nil uses the default registry
	MetricsHandler http.Handler
}

// SetupRouter creates and configures the Chi router with all middleware and routes
//
// Layout:
//   - /api/track      lookup API (CORS, rate limited)
//   - /, /track, ...  tracker page, present when d.UI is set
//   - /health, /metrics
func SetupRouter(d Deps) chi.Router {
	r := chi.NewRouter()

	// Order matters! RequestID first, then logging, then recovery
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.LoggingMiddleware(d.Logger))
	r.Use(middleware.Recoverer)
	if d.Metrics != nil {
		r.Use(custommiddleware.MetricsMiddleware(d.Metrics))
	}

	r.Mount("/api", api.SetupRoutes(d.Track, d.RateLimiter, d.CORSOrigins))

	if d.UI != nil {
		r.Get("/", d.UI.Index)
		r.Post("/track", d.UI.Track)
		r.Post("/reset", d.UI.Reset)
		r.Get("/ui/state", d.UI.State)
		r.Post("/ui/layout", d.UI.Layout)
		r.Post("/ui/map-error", d.UI.MapError)
		r.Handle("/static/*", web.Static())
	}

	// Health check endpoint - used by load balancers and monitoring
	r.Get("/health", healthCheckHandler)

	metricsHandler := d.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Handle("/metrics", metricsHandler)

	return r
}

// healthCheckHandler returns 200 OK if the service is running
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
