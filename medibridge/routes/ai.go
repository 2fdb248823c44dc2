package routes

import (
	"net/http"

	"medibridge/medibridge/config"
	"medibridge/medibridge/controllers"
	"medibridge/medibridge/middlewares"
	"medibridge/medibridge/types"

	"github.com/go-chi/chi/v5"
)

func AIRoutes(ctrl *controllers.AIController, cfg config.Config) chi.Router {
	r := chi.NewRouter()
	r.Group(func(gr chi.Router) {
		gr.Use(middlewares.AuthMiddleware(cfg))
		gr.Post("/translate", handleJSON(func(r *http.Request) (any, int, error) {
			var req types.TranslateRequest
			if err := decodeJSON(r, &req); err != nil {
				return nil, 0, err
			}
			resp, err := ctrl.Translate(r.Context(), req)
			if err != nil {
				return nil, 0, err
			}
			return resp, http.StatusOK, nil
		}))
	})
	return r
}
