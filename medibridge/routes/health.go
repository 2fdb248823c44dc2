package routes

import (
	"medibridge/medibridge/controllers"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// HealthRoutes serves liveness at / and database readiness at /ready. Probe answers
// must never be served from a cache.
func HealthRoutes(ctrl *controllers.HealthController) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.NoCache)
	r.Get("/", ctrl.HealthCheck)
	r.Get("/ready", ctrl.Ready)
	return r
}
