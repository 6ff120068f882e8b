/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for frontends

ROUTE GROUPS:
  /api/events/*         Event authoring
  /api/recurrence/*     Rule validation
  /api/rules/*          Rules, instance listing, ICS feed
  /api/instances/*      Exception overlay
  /api/admin/*          Worker status and manual triggers
  /api/scenarios/*      Demo scenarios
  /metrics              Prometheus scrape endpoint
  /health               Liveness

SECURITY NOTE:
  No authentication middleware. X-Actor-ID is trusted as given; put the
  service behind a gateway that authenticates and sets it.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// AllowedOrigins for CORS. Empty allows any origin without credentials.
	AllowedOrigins []string
	// Quiet disables request logging (tests).
	Quiet bool
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	if !opts.Quiet {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	corsOpts := cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", ActorHeader},
	}
	if len(opts.AllowedOrigins) > 0 {
		corsOpts.AllowedOrigins = opts.AllowedOrigins
		corsOpts.AllowCredentials = true
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// Event routes
		r.Route("/events", func(r chi.Router) {
			r.Post("/", h.CreateEvent)
			r.Get("/{id}", h.GetEvent)
			r.Post("/{id}/action-items", h.CreateActionItem)
			r.Post("/{id}/volunteers", h.CreateVolunteer)
			r.Post("/{id}/volunteer-groups", h.CreateVolunteerGroup)
		})

		r.Post("/recurrence/validate", h.ValidateRecurrence)

		// Rule routes
		r.Route("/rules", func(r chi.Router) {
			r.Get("/{id}", h.GetRule)
			r.Get("/{id}/instances", h.ListRuleInstances)
			r.Get("/{id}/calendar.ics", h.RuleCalendar)
		})

		// Instance routes
		r.Route("/instances/{id}", func(r chi.Router) {
			r.Get("/", h.GetInstance)
			r.Put("/exception", h.UpsertEventException)
			r.Get("/action-items", h.ListInstanceActionItems)
			r.Put("/action-items/{itemID}/exception", h.UpsertActionItemException)
			r.Get("/volunteers", h.ListInstanceVolunteers)
			r.Put("/volunteers/{volunteerID}/exception", h.UpsertVolunteerException)
			r.Get("/volunteer-groups", h.ListInstanceVolunteerGroups)
			r.Put("/volunteer-groups/{groupID}/exception", h.UpsertVolunteerGroupException)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Get("/workers", h.ListWorkers)
			r.Post("/generate", h.TriggerGeneration)
			r.Post("/cleanup", h.TriggerCleanup)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
