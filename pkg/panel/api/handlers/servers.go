package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wardenhq/warden/pkg/panel/engine"
	"github.com/wardenhq/warden/pkg/panel/models"
	"github.com/wardenhq/warden/pkg/panel/store"
)

// ServerHandler handles server provisioning and lifecycle API endpoints.
// All mutations go through the engine; the store is only used for
// read paths (listing, event history).
type ServerHandler struct {
	engine *engine.Engine
	store  *store.GORMStore
}

// NewServerHandler creates a new ServerHandler.
func NewServerHandler(eng *engine.Engine, s *store.GORMStore) *ServerHandler {
	return &ServerHandler{engine: eng, store: s}
}

// ProvisionServerRequest is the request body for POST /api/v1/servers.
type ProvisionServerRequest struct {
	Name       string `json:"name"`
	TemplateID string `json:"template_id"`

	MemoryMB   int64 `json:"memory_mb"`
	CPUPercent int64 `json:"cpu_percent"`
	DiskMB     int64 `json:"disk_mb"`

	// OwnerID lets admins provision on behalf of a tenant.
	OwnerID string `json:"owner_id,omitempty"`
	// NodeID pins placement to a specific node (admin use).
	NodeID string `json:"node_id,omitempty"`
	// PreferredPort is where the port scan starts.
	PreferredPort int `json:"preferred_port,omitempty"`

	AutoStart     bool   `json:"auto_start,omitempty"`
	Configuration string `json:"configuration,omitempty"`
	Environment   string `json:"environment,omitempty"`
}

// PowerRequest is the request body for POST /api/v1/servers/{id}/power.
type PowerRequest struct {
	// Action is one of "start", "stop", "restart".
	Action string `json:"action"`
}

// UpdateServerRequest is the request body for PATCH /api/v1/servers/{id}.
// Omitted fields are left unchanged.
type UpdateServerRequest struct {
	Name       *string `json:"name,omitempty"`
	MemoryMB   *int64  `json:"memory_mb,omitempty"`
	CPUPercent *int64  `json:"cpu_percent,omitempty"`
	DiskMB     *int64  `json:"disk_mb,omitempty"`
	AutoStart  *bool   `json:"auto_start,omitempty"`
}

// CompleteTransitionRequest is the request body for
// POST /api/v1/servers/{id}/transition. The node daemon reports that an
// in-flight transition finished.
type CompleteTransitionRequest struct {
	State string `json:"state"`
}

// ServerResponse is the API representation of a server.
type ServerResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	OwnerID    string `json:"owner_id"`
	NodeID     string `json:"node_id"`
	TemplateID string `json:"template_id,omitempty"`

	MemoryMB   int64 `json:"memory_mb"`
	CPUPercent int64 `json:"cpu_percent"`
	DiskMB     int64 `json:"disk_mb"`

	Port      int    `json:"port"`
	State     string `json:"state"`
	Suspended bool   `json:"suspended"`
	AutoStart bool   `json:"auto_start"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EventResponse is the API representation of a lifecycle event.
type EventResponse struct {
	ID        string    `json:"id"`
	ServerID  string    `json:"server_id"`
	Actor     string    `json:"actor"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	Metadata  string    `json:"metadata,omitempty"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// Provision handles POST /api/v1/servers.
func (h *ServerHandler) Provision(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		Unauthorized(w, "Authentication required")
		return
	}

	var req ProvisionServerRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		BadRequest(w, "Server name is required")
		return
	}
	if req.OwnerID != "" && req.OwnerID != actor.ID && !actor.Admin {
		Forbidden(w, "Only administrators may provision for another tenant")
		return
	}
	if req.NodeID != "" && !actor.Admin {
		Forbidden(w, "Only administrators may pin a server to a node")
		return
	}

	server, err := h.engine.Provision(r.Context(), actor, engine.ProvisionRequest{
		OwnerID:    req.OwnerID,
		Name:       req.Name,
		TemplateID: req.TemplateID,
		Resources: models.Resources{
			MemoryMB:   req.MemoryMB,
			CPUPercent: req.CPUPercent,
			DiskMB:     req.DiskMB,
		},
		NodeID:        req.NodeID,
		PreferredPort: req.PreferredPort,
		AutoStart:     req.AutoStart,
		Configuration: req.Configuration,
		Environment:   req.Environment,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	WriteJSONCreated(w, serverToResponse(server))
}

// List handles GET /api/v1/servers.
// Tenants see their own servers; admins see everything.
func (h *ServerHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		Unauthorized(w, "Authentication required")
		return
	}

	var (
		servers []*models.Server
		err     error
	)
	if actor.Admin {
		servers, err = h.store.ListServers(r.Context())
	} else {
		servers, err = h.store.ListServersByOwner(r.Context(), actor.ID)
	}
	if err != nil {
		InternalServerError(w, "Failed to list servers")
		return
	}

	out := make([]ServerResponse, 0, len(servers))
	for _, s := range servers {
		out = append(out, serverToResponse(s))
	}
	WriteJSONOK(w, out)
}

// Get handles GET /api/v1/servers/{id}.
func (h *ServerHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		Unauthorized(w, "Authentication required")
		return
	}
	serverID := chi.URLParam(r, "id")

	if err := h.engine.Authorize(r.Context(), actor, serverID, engine.ActionView); err != nil {
		writeEngineError(w, err)
		return
	}

	server, err := h.store.GetServer(r.Context(), serverID)
	if err != nil {
		NotFound(w, "Server not found")
		return
	}
	WriteJSONOK(w, serverToResponse(server))
}

// Power handles POST /api/v1/servers/{id}/power.
// Dispatches start/stop/restart intents to the engine.
func (h *ServerHandler) Power(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		Unauthorized(w, "Authentication required")
		return
	}
	serverID := chi.URLParam(r, "id")

	var req PowerRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	var (
		server *models.Server
		err    error
	)
	switch req.Action {
	case "start":
		server, err = h.engine.RequestStart(r.Context(), actor, serverID)
	case "stop":
		server, err = h.engine.RequestStop(r.Context(), actor, serverID)
	case "restart":
		server, err = h.engine.RequestRestart(r.Context(), actor, serverID)
	default:
		BadRequest(w, "Action must be one of: start, stop, restart")
		return
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}

	WriteJSONOK(w, serverToResponse(server))
}

// Update handles PATCH /api/v1/servers/{id}.
func (h *ServerHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		Unauthorized(w, "Authentication required")
		return
	}
	serverID := chi.URLParam(r, "id")

	var req UpdateServerRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	update := engine.UpdateSettingsRequest{
		Name:      req.Name,
		AutoStart: req.AutoStart,
	}
	if req.MemoryMB != nil || req.CPUPercent != nil || req.DiskMB != nil {
		// Partial limit updates start from the current values so a
		// single-field change cannot zero the others.
		current, err := h.store.GetServer(r.Context(), serverID)
		if err != nil {
			NotFound(w, "Server not found")
			return
		}
		limits := current.Limits
		if req.MemoryMB != nil {
			limits.MemoryMB = *req.MemoryMB
		}
		if req.CPUPercent != nil {
			limits.CPUPercent = *req.CPUPercent
		}
		if req.DiskMB != nil {
			limits.DiskMB = *req.DiskMB
		}
		update.Limits = &limits
	}

	server, _, err := h.engine.UpdateSettings(r.Context(), actor, serverID, update)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	WriteJSONOK(w, serverToResponse(server))
}

// Delete handles DELETE /api/v1/servers/{id}.
func (h *ServerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		Unauthorized(w, "Authentication required")
		return
	}
	serverID := chi.URLParam(r, "id")

	if err := h.engine.Decommission(r.Context(), actor, serverID); err != nil {
		writeEngineError(w, err)
		return
	}
	WriteNoContent(w)
}

// Events handles GET /api/v1/servers/{id}/events.
// Returns the server's lifecycle event log, newest first.
func (h *ServerHandler) Events(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		Unauthorized(w, "Authentication required")
		return
	}
	serverID := chi.URLParam(r, "id")

	if err := h.engine.Authorize(r.Context(), actor, serverID, engine.ActionView); err != nil {
		writeEngineError(w, err)
		return
	}

	events, err := h.store.ListEventsForServer(r.Context(), serverID, 100)
	if err != nil {
		InternalServerError(w, "Failed to list events")
		return
	}

	out := make([]EventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, EventResponse{
			ID:        e.ID,
			ServerID:  e.ServerID,
			Actor:     e.Actor,
			Severity:  e.Severity,
			Message:   e.Message,
			Metadata:  e.Metadata,
			Source:    e.Source,
			CreatedAt: e.CreatedAt,
		})
	}
	WriteJSONOK(w, out)
}

// Suspend handles POST /api/v1/servers/{id}/suspend (admin only).
func (h *ServerHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	h.setSuspended(w, r, true)
}

// Resume handles POST /api/v1/servers/{id}/resume (admin only).
func (h *ServerHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.setSuspended(w, r, false)
}

func (h *ServerHandler) setSuspended(w http.ResponseWriter, r *http.Request, suspended bool) {
	actor, ok := actorFromRequest(r)
	if !ok {
		Unauthorized(w, "Authentication required")
		return
	}
	serverID := chi.URLParam(r, "id")

	var err error
	if suspended {
		err = h.engine.Suspend(r.Context(), actor, serverID)
	} else {
		err = h.engine.Resume(r.Context(), actor, serverID)
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}
	WriteNoContent(w)
}

// CompleteTransition handles POST /api/v1/servers/{id}/transition
// (admin only). Node daemons call this to report that an in-flight
// transition finished; the engine validates the edge.
func (h *ServerHandler) CompleteTransition(w http.ResponseWriter, r *http.Request) {
	serverID := chi.URLParam(r, "id")

	var req CompleteTransitionRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	to := models.ServerState(req.State)
	if !to.IsValid() {
		BadRequest(w, "Unknown server state")
		return
	}

	server, err := h.engine.CompleteTransition(r.Context(), serverID, to)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	WriteJSONOK(w, serverToResponse(server))
}

// serverToResponse converts a Server to its API representation.
func serverToResponse(s *models.Server) ServerResponse {
	return ServerResponse{
		ID:         s.ID,
		Name:       s.Name,
		OwnerID:    s.OwnerID,
		NodeID:     s.NodeID,
		TemplateID: s.TemplateID,
		MemoryMB:   s.Limits.MemoryMB,
		CPUPercent: s.Limits.CPUPercent,
		DiskMB:     s.Limits.DiskMB,
		Port:       s.Port,
		State:      s.State,
		Suspended:  s.Suspended,
		AutoStart:  s.AutoStart,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
}
