package handler

import (
	"net/http"

	"github.com/reflectlab/journal-platform/internal/events"
	"github.com/reflectlab/journal-platform/internal/storage"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	storage    *storage.Store
	natsClient *events.Client
}

// NewHealthHandler creates a new health handler. natsClient may be nil when
// event publishing is not configured.
func NewHealthHandler(st *storage.Store, natsClient *events.Client) *HealthHandler {
	return &HealthHandler{
		storage:    st,
		natsClient: natsClient,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "storage unavailable",
		})
		return
	}

	// NATS only gates readiness when it is configured at all.
	if h.natsClient != nil && !h.natsClient.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "NATS not connected",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
