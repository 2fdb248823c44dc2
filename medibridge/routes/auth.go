package routes

import (
	"net/http"

	"medibridge/medibridge/config"
	"medibridge/medibridge/controllers"
	"medibridge/medibridge/middlewares"
	"medibridge/medibridge/types"

	"github.com/go-chi/chi/v5"
)

func AuthRoutes(ctrl *controllers.AuthController, cfg config.Config) chi.Router {
	r := chi.NewRouter()

	r.Post("/signup", func(w http.ResponseWriter, r *http.Request) {
		var req types.SignupRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, 0, err)
			return
		}
		resp, err := ctrl.Signup(r.Context(), req)
		if err != nil {
			writeError(w, r, 0, err)
			return
		}
		setAuthCookie(w, resp.AccessToken, cfg)
		writeJSON(w, http.StatusCreated, resp)
	})

	r.Post("/login", func(w http.ResponseWriter, r *http.Request) {
		var req types.LoginRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, 0, err)
			return
		}
		resp, err := ctrl.Login(r.Context(), req)
		if err != nil {
			writeError(w, r, 0, err)
			return
		}
		setAuthCookie(w, resp.AccessToken, cfg)
		writeJSON(w, http.StatusOK, resp)
	})

	r.Post("/logout", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{
			Name:     middlewares.AuthCookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		w.WriteHeader(http.StatusNoContent)
	})

	r.Group(func(gr chi.Router) {
		gr.Use(middlewares.AuthMiddleware(cfg))
		gr.Get("/me", handleJSON(func(r *http.Request) (any, int, error) {
			id, err := identity(r)
			if err != nil {
				return nil, 0, err
			}
			user, err := ctrl.Me(r.Context(), id)
			if err != nil {
				return nil, 0, err
			}
			return user, http.StatusOK, nil
		}))
	})

	return r
}

func setAuthCookie(w http.ResponseWriter, token string, cfg config.Config) {
	http.SetCookie(w, &http.Cookie{
		Name:     middlewares.AuthCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(cfg.JWTExpiration.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
