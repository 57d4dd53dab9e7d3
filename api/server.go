/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Structured request logging (httplog, ECS schema)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/persons/*        People, baselines, duty days, absences
  /api/catalog/*        Read-only catalog
  /api/holidays         Holiday calendar
  /api/scenarios/*      Demo scenarios

SECURITY NOTE:
  No authentication middleware. Requests reaching the engine are
  assumed to be authorized upstream.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelInfo,
		Schema: httplog.SchemaECS,
	}))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/persons", func(r chi.Router) {
			r.Post("/", h.SavePerson)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetPerson)
				r.Post("/initializations", h.SaveInitialization)
				r.Post("/duty", h.SaveDuty)

				r.Route("/absences", func(r chi.Router) {
					r.Get("/", h.ListAbsences)
					r.Post("/", h.InsertAbsence)
					r.Post("/simulate", h.SimulateAbsence)
					r.Get("/form", h.GetForm)
					r.Get("/recap", h.GetRecap)
				})
			})
		})

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/groups", h.ListGroups)
			r.Get("/types/{code}", h.GetAbsenceType)
		})

		r.Post("/holidays", h.CreateHoliday)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
