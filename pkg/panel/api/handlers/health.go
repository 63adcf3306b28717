package handlers

import (
	"net/http"

	"github.com/wardenhq/warden/pkg/panel/store"
)

// HealthHandler handles health and readiness probes.
type HealthHandler struct {
	store   *store.GORMStore
	version string
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(s *store.GORMStore, version string) *HealthHandler {
	return &HealthHandler{store: s, version: version}
}

// HealthResponse is the response body for health endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// Liveness handles GET /health.
// Always returns 200 while the process is serving requests.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	WriteJSONOK(w, HealthResponse{Status: "ok", Version: h.version})
}

// Readiness handles GET /health/ready.
// Returns 503 until the database is reachable.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		WriteJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
		return
	}
	WriteJSONOK(w, HealthResponse{Status: "ok", Version: h.version})
}
