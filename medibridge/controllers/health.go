package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"medibridge/medibridge/utils/logging"

	"go.uber.org/zap"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthController struct {
	db Pinger
}

// NewHealthController reports liveness, and database reachability when db is not nil.
func NewHealthController(db Pinger) *HealthController {
	return &HealthController{db: db}
}

// HealthCheck answers as long as the process serves requests.
func (h *HealthController) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready additionally pings the database; consultations cannot proceed without it.
func (h *HealthController) Ready(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]string{"status": "ok"}
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			logging.ErrorLogger.Error("readiness check: database unreachable", zap.Error(err))
			status = http.StatusServiceUnavailable
			body = map[string]string{"status": "degraded", "database": "unreachable"}
		} else {
			body["database"] = "ok"
		}
	}
	writeHealth(w, status, body)
}

func writeHealth(w http.ResponseWriter, status int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
