package handlers

import (
	"context"
	"net/http"
	"time"

	"commerce-backend/pkg/api"
)

// Pinger reports backing-store reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health serves liveness and readiness probes.
type Health struct {
	db Pinger
}

// NewHealth creates the health handler. db may be nil, in which case
// readiness reports healthy on the process alone.
func NewHealth(db Pinger) *Health {
	return &Health{db: db}
}

// Liveness handles GET /health.
func (h *Health) Liveness(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness handles GET /health/ready.
func (h *Health) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			api.Error(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
	}
	api.Success(w, http.StatusOK, map[string]string{"status": "ready"})
}
