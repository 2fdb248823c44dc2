package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"medibridge/medibridge/controllers"
	"medibridge/medibridge/middlewares"
	"medibridge/medibridge/services/pipeline"
	"medibridge/medibridge/services/translation"
	"medibridge/medibridge/sources/psql/dao"
	"medibridge/medibridge/utils/logging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type errorResponse struct {
	Detail string `json:"detail"`
}

// handleJSON writes the handler's result as JSON. A zero status on error is resolved
// from the error itself.
func handleJSON(handler func(r *http.Request) (any, int, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, status, err := handler(r)
		if err != nil {
			writeError(w, r, status, err)
			return
		}
		writeJSON(w, status, res)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status == 0 {
		status = statusFor(err)
	}
	detail := err.Error()
	if status >= http.StatusInternalServerError {
		logging.ErrorLogger.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		detail = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Detail: detail})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, dao.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, dao.ErrForbidden), errors.Is(err, controllers.ErrRoleNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, dao.ErrInvalidCursor), errors.Is(err, pipeline.ErrEmptyContent),
		errors.Is(err, controllers.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, controllers.ErrInvalidCredentials), errors.Is(err, middlewares.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, dao.ErrSessionOpen), errors.Is(err, dao.ErrInvalidTransition),
		errors.Is(err, dao.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, controllers.ErrStorageDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, translation.ErrEmptyTranslation):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func identity(r *http.Request) (middlewares.Identity, error) {
	id, ok := middlewares.IdentityFrom(r.Context())
	if !ok {
		return middlewares.Identity{}, middlewares.ErrInvalidToken
	}
	return id, nil
}

// sessionParam parses a session id path parameter. A malformed id names no session.
func sessionParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, dao.ErrNotFound
	}
	return id, nil
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", controllers.ErrValidation, err)
	}
	return nil
}

// decodeOptionalJSON accepts an empty body and leaves v untouched.
func decodeOptionalJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("%w: %v", controllers.ErrValidation, err)
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", controllers.ErrValidation, key)
	}
	return n, nil
}
