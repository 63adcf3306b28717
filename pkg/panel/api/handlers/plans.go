package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wardenhq/warden/pkg/panel/models"
	"github.com/wardenhq/warden/pkg/panel/store"
)

// PlanHandler handles resource plan API endpoints (admin only).
//
// Plans are owned by the billing subsystem; this surface exists so
// operators can manage the catalog out of band.
type PlanHandler struct {
	store *store.GORMStore
}

// NewPlanHandler creates a new PlanHandler.
func NewPlanHandler(s *store.GORMStore) *PlanHandler {
	return &PlanHandler{store: s}
}

// CreatePlanRequest is the request body for POST /api/v1/plans.
type CreatePlanRequest struct {
	Name string `json:"name"`

	MemoryMB   int64 `json:"memory_mb"`
	CPUPercent int64 `json:"cpu_percent"`
	DiskMB     int64 `json:"disk_mb"`

	MaxServers   int `json:"max_servers"`
	MaxBackups   int `json:"max_backups"`
	MaxDatabases int `json:"max_databases"`
}

// Create handles POST /api/v1/plans.
func (h *PlanHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.Name == "" {
		BadRequest(w, "Plan name is required")
		return
	}
	if req.MemoryMB <= 0 || req.CPUPercent <= 0 || req.DiskMB <= 0 {
		BadRequest(w, "Per-server ceilings must be positive along all dimensions")
		return
	}
	if req.MaxServers < 0 || req.MaxBackups < 0 || req.MaxDatabases < 0 {
		BadRequest(w, "Quotas cannot be negative")
		return
	}

	plan := &models.Plan{
		Name: req.Name,
		PerServer: models.Resources{
			MemoryMB:   req.MemoryMB,
			CPUPercent: req.CPUPercent,
			DiskMB:     req.DiskMB,
		},
		MaxServers:   req.MaxServers,
		MaxBackups:   req.MaxBackups,
		MaxDatabases: req.MaxDatabases,
	}

	if _, err := h.store.CreatePlan(r.Context(), plan); err != nil {
		if errors.Is(err, models.ErrDuplicatePlan) {
			Conflict(w, "A plan with that name already exists")
			return
		}
		InternalServerError(w, "Failed to create plan")
		return
	}

	WriteJSONCreated(w, plan)
}

// List handles GET /api/v1/plans.
func (h *PlanHandler) List(w http.ResponseWriter, r *http.Request) {
	plans, err := h.store.ListPlans(r.Context())
	if err != nil {
		InternalServerError(w, "Failed to list plans")
		return
	}
	WriteJSONOK(w, plans)
}

// Get handles GET /api/v1/plans/{id}.
func (h *PlanHandler) Get(w http.ResponseWriter, r *http.Request) {
	plan, err := h.store.GetPlan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		NotFound(w, "Plan not found")
		return
	}
	WriteJSONOK(w, plan)
}

// Delete handles DELETE /api/v1/plans/{id}.
// Users still assigned to the plan keep their reference; their next
// provisioning attempt will fail closed on the missing plan.
func (h *PlanHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeletePlan(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, models.ErrPlanNotFound) {
			NotFound(w, "Plan not found")
			return
		}
		InternalServerError(w, "Failed to delete plan")
		return
	}
	WriteNoContent(w)
}
