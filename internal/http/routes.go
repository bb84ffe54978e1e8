// Package httpx provides the HTTP surface for the wayfinder trip-planning
// API: JSON helpers, middleware, and route handlers.
package httpx

import (
	"log/slog"
	"net/http"

	"github.com/wayfinderhq/wayfinder/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Trips       *service.TripService
	Jobs        *service.JobService
	Itineraries *service.ItineraryService
	// DB backs the /healthz liveness probe; *sql.DB satisfies it.
	DB Pinger
	// Cache is the optional second probe target; nil when Redis is not wired.
	Cache  Pinger
	Logger *slog.Logger // Logger for handler errors (optional)
}

// NewRouter creates and configures a new HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	tripHandlers := &TripHandlers{Svc: services.Trips}
	jobHandlers := &JobHandlers{Svc: services.Jobs}
	itineraryHandlers := &ItineraryHandlers{Svc: services.Itineraries}
	healthHandlers := &HealthHandlers{DB: services.DB, Cache: services.Cache, Logger: services.Logger}

	registerTripRoutes(mux, tripHandlers)
	registerJobRoutes(mux, jobHandlers)
	registerItineraryRoutes(mux, itineraryHandlers)
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandlers.Health))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandlers.Health))

	return mux
}

// registerTripRoutes registers the trip submission route.
func registerTripRoutes(mux *http.ServeMux, h *TripHandlers) {
	mux.Handle("POST /api/trips", http.HandlerFunc(h.Submit))
}

// registerJobRoutes registers the poller-facing job status route.
func registerJobRoutes(mux *http.ServeMux, h *JobHandlers) {
	mux.Handle("GET /api/jobs/{ownerID}/{requestID}", http.HandlerFunc(h.Status))
}

// registerItineraryRoutes registers itinerary lookup routes.
func registerItineraryRoutes(mux *http.ServeMux, h *ItineraryHandlers) {
	mux.Handle("GET /api/itineraries/{ownerID}", http.HandlerFunc(h.List))
	mux.Handle("GET /api/itineraries/{ownerID}/{itineraryID}", http.HandlerFunc(h.Get))
}
