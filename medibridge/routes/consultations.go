package routes

import (
	"net/http"

	"medibridge/medibridge/config"
	"medibridge/medibridge/controllers"
	"medibridge/medibridge/middlewares"
	"medibridge/medibridge/types"

	"github.com/go-chi/chi/v5"
)

func ConsultationRoutes(ctrl *controllers.ConsultationController, cfg config.Config) chi.Router {
	r := chi.NewRouter()
	r.Group(func(gr chi.Router) {
		gr.Use(middlewares.AuthMiddleware(cfg))

		gr.Post("/request", handleJSON(func(r *http.Request) (any, int, error) {
			id, err := identity(r)
			if err != nil {
				return nil, 0, err
			}
			var req types.RequestConsultationRequest
			if err := decodeOptionalJSON(r, &req); err != nil {
				return nil, 0, err
			}
			session, err := ctrl.Request(r.Context(), id, req)
			if err != nil {
				return nil, 0, err
			}
			return session, http.StatusCreated, nil
		}))

		gr.Put("/{session_id}/accept", handleJSON(func(r *http.Request) (any, int, error) {
			id, err := identity(r)
			if err != nil {
				return nil, 0, err
			}
			sessionID, err := sessionParam(r, "session_id")
			if err != nil {
				return nil, 0, err
			}
			var req types.AcceptConsultationRequest
			if err := decodeOptionalJSON(r, &req); err != nil {
				return nil, 0, err
			}
			session, err := ctrl.Accept(r.Context(), id, sessionID, req)
			if err != nil {
				return nil, 0, err
			}
			return session, http.StatusOK, nil
		}))

		gr.Put("/{session_id}/end", handleJSON(func(r *http.Request) (any, int, error) {
			id, err := identity(r)
			if err != nil {
				return nil, 0, err
			}
			sessionID, err := sessionParam(r, "session_id")
			if err != nil {
				return nil, 0, err
			}
			var req types.EndConsultationRequest
			if err := decodeOptionalJSON(r, &req); err != nil {
				return nil, 0, err
			}
			session, err := ctrl.End(r.Context(), id, sessionID, req)
			if err != nil {
				return nil, 0, err
			}
			return session, http.StatusOK, nil
		}))

		gr.Post("/{session_id}/summarize", handleJSON(func(r *http.Request) (any, int, error) {
			id, err := identity(r)
			if err != nil {
				return nil, 0, err
			}
			sessionID, err := sessionParam(r, "session_id")
			if err != nil {
				return nil, 0, err
			}
			summary, err := ctrl.Summarize(r.Context(), id, sessionID)
			if err != nil {
				return nil, 0, err
			}
			return types.SummarizeResponse{Summary: summary}, http.StatusOK, nil
		}))

		gr.Get("/", handleJSON(func(r *http.Request) (any, int, error) {
			id, err := identity(r)
			if err != nil {
				return nil, 0, err
			}
			sessions, err := ctrl.List(r.Context(), id, r.URL.Query().Get("status"))
			if err != nil {
				return nil, 0, err
			}
			return sessions, http.StatusOK, nil
		}))

		gr.Get("/{session_id}", handleJSON(func(r *http.Request) (any, int, error) {
			id, err := identity(r)
			if err != nil {
				return nil, 0, err
			}
			sessionID, err := sessionParam(r, "session_id")
			if err != nil {
				return nil, 0, err
			}
			session, err := ctrl.Get(r.Context(), id, sessionID)
			if err != nil {
				return nil, 0, err
			}
			return session, http.StatusOK, nil
		}))
	})
	return r
}
