package api

import (
	"net/http"

	"github.com/evyataryagoni/iptracker/internal/handler"
	"github.com/evyataryagoni/iptracker/internal/limiter"
	custommiddleware "github.com/evyataryagoni/iptracker/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// SetupRoutes configures the lookup API mounted under /api
// The API is called cross-origin by separately hosted front-ends, so it
// carries CORS headers and its own rate limit
//
// Parameters:
//   - trackHandler: the lookup handler
//   - rateLimiter: the rate limiter (memory or Redis)
//   - allowedOrigins: CORS origins, "*" allows any
func SetupRoutes(trackHandler *handler.TrackHandler, rateLimiter limiter.Limiter, allowedOrigins []string) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(custommiddleware.RateLimitMiddleware(rateLimiter))

	// POST /api/track {"input": "<domain, URL or IP>"}
	r.Post("/track", trackHandler.Track)

	return r
}
