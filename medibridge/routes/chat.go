package routes

import (
	"fmt"
	"io"
	"net/http"

	"medibridge/medibridge/config"
	"medibridge/medibridge/controllers"
	"medibridge/medibridge/middlewares"
	"medibridge/medibridge/types"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxAudioBytes = 25 << 20

func ChatRoutes(ctrl *controllers.ChatController, cfg config.Config) chi.Router {
	r := chi.NewRouter()
	r.Group(func(gr chi.Router) {
		gr.Use(middlewares.AuthMiddleware(cfg))

		gr.Post("/{session_id}/send", handleJSON(func(r *http.Request) (any, int, error) {
			id, err := identity(r)
			if err != nil {
				return nil, 0, err
			}
			sessionID, err := sessionParam(r, "session_id")
			if err != nil {
				return nil, 0, err
			}
			var req types.SendMessageRequest
			if err := decodeJSON(r, &req); err != nil {
				return nil, 0, err
			}
			msg, err := ctrl.Send(r.Context(), id.UserID, sessionID, req)
			if err != nil {
				return nil, 0, err
			}
			return msg, http.StatusCreated, nil
		}))

		gr.Get("/{session_id}/messages", handleJSON(func(r *http.Request) (any, int, error) {
			id, err := identity(r)
			if err != nil {
				return nil, 0, err
			}
			sessionID, err := sessionParam(r, "session_id")
			if err != nil {
				return nil, 0, err
			}
			limit, err := queryInt(r, "limit")
			if err != nil {
				return nil, 0, err
			}
			page, err := ctrl.History(r.Context(), id.UserID, sessionID, limit, r.URL.Query().Get("cursor"))
			if err != nil {
				return nil, 0, err
			}
			return page, http.StatusOK, nil
		}))

		gr.With(middleware.RequestSize(maxAudioBytes+(1<<20))).Post("/{session_id}/audio", handleJSON(func(r *http.Request) (any, int, error) {
			id, err := identity(r)
			if err != nil {
				return nil, 0, err
			}
			sessionID, err := sessionParam(r, "session_id")
			if err != nil {
				return nil, 0, err
			}
			if err := r.ParseMultipartForm(maxAudioBytes); err != nil {
				return nil, http.StatusBadRequest, fmt.Errorf("%w: %v", controllers.ErrValidation, err)
			}
			file, header, err := r.FormFile("file")
			if err != nil {
				return nil, http.StatusBadRequest, fmt.Errorf("%w: file is required", controllers.ErrValidation)
			}
			defer file.Close()
			data, err := io.ReadAll(io.LimitReader(file, maxAudioBytes+1))
			if err != nil {
				return nil, http.StatusBadRequest, fmt.Errorf("%w: %v", controllers.ErrValidation, err)
			}
			if len(data) > maxAudioBytes {
				return nil, http.StatusRequestEntityTooLarge, fmt.Errorf("%w: audio exceeds %d bytes", controllers.ErrValidation, maxAudioBytes)
			}
			var senderLanguage *string
			if lang := r.FormValue("senderLanguage"); lang != "" {
				senderLanguage = &lang
			}
			msg, err := ctrl.SendAudio(r.Context(), id.UserID, sessionID, header.Filename,
				header.Header.Get("Content-Type"), data, senderLanguage)
			if err != nil {
				return nil, 0, err
			}
			return msg, http.StatusCreated, nil
		}))

		gr.Get("/search", handleJSON(func(r *http.Request) (any, int, error) {
			id, err := identity(r)
			if err != nil {
				return nil, 0, err
			}
			limit, err := queryInt(r, "limit")
			if err != nil {
				return nil, 0, err
			}
			res, err := ctrl.Search(r.Context(), id.UserID, r.URL.Query().Get("q"), limit)
			if err != nil {
				return nil, 0, err
			}
			return res, http.StatusOK, nil
		}))
	})
	return r
}
