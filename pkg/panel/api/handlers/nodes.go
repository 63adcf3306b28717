package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wardenhq/warden/pkg/panel/models"
	"github.com/wardenhq/warden/pkg/panel/store"
)

// NodeHandler handles node registry API endpoints (admin only).
type NodeHandler struct {
	store *store.GORMStore
}

// NewNodeHandler creates a new NodeHandler.
func NewNodeHandler(s *store.GORMStore) *NodeHandler {
	return &NodeHandler{store: s}
}

// CreateNodeRequest is the request body for POST /api/v1/nodes.
type CreateNodeRequest struct {
	Name string `json:"name"`
	FQDN string `json:"fqdn,omitempty"`

	MemoryMB   int64 `json:"memory_mb"`
	CPUPercent int64 `json:"cpu_percent"`
	DiskMB     int64 `json:"disk_mb"`

	Public *bool `json:"public,omitempty"`
}

// UpdateNodeRequest is the request body for PATCH /api/v1/nodes/{id}.
// Omitted fields are left unchanged.
type UpdateNodeRequest struct {
	Name            *string `json:"name,omitempty"`
	FQDN            *string `json:"fqdn,omitempty"`
	MemoryMB        *int64  `json:"memory_mb,omitempty"`
	CPUPercent      *int64  `json:"cpu_percent,omitempty"`
	DiskMB          *int64  `json:"disk_mb,omitempty"`
	Active          *bool   `json:"active,omitempty"`
	Public          *bool   `json:"public,omitempty"`
	MaintenanceMode *bool   `json:"maintenance_mode,omitempty"`
}

// NodeResponse is the API representation of a node, including its
// derived committed usage.
type NodeResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	FQDN string `json:"fqdn,omitempty"`

	Capacity models.Resources `json:"capacity"`
	// Committed is derived from the servers placed on the node; it is
	// never stored.
	Committed models.Resources `json:"committed"`

	Active          bool `json:"active"`
	Public          bool `json:"public"`
	MaintenanceMode bool `json:"maintenance_mode"`
}

// Create handles POST /api/v1/nodes.
func (h *NodeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateNodeRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	public := true
	if req.Public != nil {
		public = *req.Public
	}

	node := &models.Node{
		Name: req.Name,
		FQDN: req.FQDN,
		Capacity: models.Resources{
			MemoryMB:   req.MemoryMB,
			CPUPercent: req.CPUPercent,
			DiskMB:     req.DiskMB,
		},
		Active: true,
		Public: public,
	}
	if err := node.Validate(); err != nil {
		BadRequest(w, err.Error())
		return
	}

	if _, err := h.store.CreateNode(r.Context(), node); err != nil {
		if errors.Is(err, models.ErrDuplicateNode) {
			Conflict(w, "A node with that name already exists")
			return
		}
		InternalServerError(w, "Failed to create node")
		return
	}

	WriteJSONCreated(w, h.nodeToResponse(r, node))
}

// List handles GET /api/v1/nodes.
func (h *NodeHandler) List(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.store.ListNodes(r.Context())
	if err != nil {
		InternalServerError(w, "Failed to list nodes")
		return
	}

	out := make([]NodeResponse, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, h.nodeToResponse(r, n))
	}
	WriteJSONOK(w, out)
}

// Get handles GET /api/v1/nodes/{id}.
func (h *NodeHandler) Get(w http.ResponseWriter, r *http.Request) {
	node, err := h.store.GetNode(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		NotFound(w, "Node not found")
		return
	}
	WriteJSONOK(w, h.nodeToResponse(r, node))
}

// Update handles PATCH /api/v1/nodes/{id}.
// Shrinking capacity below committed usage is allowed; it only affects
// future placement decisions.
func (h *NodeHandler) Update(w http.ResponseWriter, r *http.Request) {
	node, err := h.store.GetNode(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		NotFound(w, "Node not found")
		return
	}

	var req UpdateNodeRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.Name != nil {
		node.Name = *req.Name
	}
	if req.FQDN != nil {
		node.FQDN = *req.FQDN
	}
	if req.MemoryMB != nil {
		node.Capacity.MemoryMB = *req.MemoryMB
	}
	if req.CPUPercent != nil {
		node.Capacity.CPUPercent = *req.CPUPercent
	}
	if req.DiskMB != nil {
		node.Capacity.DiskMB = *req.DiskMB
	}
	if req.Active != nil {
		node.Active = *req.Active
	}
	if req.Public != nil {
		node.Public = *req.Public
	}
	if req.MaintenanceMode != nil {
		node.MaintenanceMode = *req.MaintenanceMode
	}

	if err := node.Validate(); err != nil {
		BadRequest(w, err.Error())
		return
	}
	if err := h.store.UpdateNode(r.Context(), node); err != nil {
		InternalServerError(w, "Failed to update node")
		return
	}
	WriteJSONOK(w, h.nodeToResponse(r, node))
}

// Delete handles DELETE /api/v1/nodes/{id}.
// Nodes that still host servers cannot be removed.
func (h *NodeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.store.DeleteNode(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, models.ErrNodeNotFound) {
			NotFound(w, "Node not found")
			return
		}
		if errors.Is(err, models.ErrNodeInUse) {
			Conflict(w, "Node still hosts servers")
			return
		}
		InternalServerError(w, "Failed to delete node")
		return
	}
	WriteNoContent(w)
}

func (h *NodeHandler) nodeToResponse(r *http.Request, node *models.Node) NodeResponse {
	committed, err := h.store.NodeCommittedUsage(r.Context(), node.ID)
	if err != nil {
		committed = models.Resources{}
	}
	return NodeResponse{
		ID:              node.ID,
		Name:            node.Name,
		FQDN:            node.FQDN,
		Capacity:        node.Capacity,
		Committed:       committed,
		Active:          node.Active,
		Public:          node.Public,
		MaintenanceMode: node.MaintenanceMode,
	}
}
