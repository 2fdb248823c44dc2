package routes

import (
	"net/http"
	"time"

	"medibridge/medibridge/config"
	"medibridge/medibridge/controllers"
	"medibridge/medibridge/middlewares"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const requestTimeout = 60 * time.Second

type Handlers struct {
	Auth          *controllers.AuthController
	Chat          *controllers.ChatController
	Consultations *controllers.ConsultationController
	AI            *controllers.AIController
	Health        *controllers.HealthController
	Realtime      http.Handler
}

// NewRouter mounts every endpoint. The request timeout applies to REST only; websocket
// connections outlive it.
func NewRouter(cfg config.Config, h Handlers) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewares.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if h.Realtime != nil {
		r.Handle("/ws", h.Realtime)
	}

	r.Group(func(api chi.Router) {
		api.Use(middleware.Timeout(requestTimeout))
		api.Mount("/health", HealthRoutes(h.Health))
		api.Mount("/auth", AuthRoutes(h.Auth, cfg))
		api.Mount("/chat", ChatRoutes(h.Chat, cfg))
		api.Mount("/consultations", ConsultationRoutes(h.Consultations, cfg))
		api.Mount("/ai", AIRoutes(h.AI, cfg))
	})
	return r
}
