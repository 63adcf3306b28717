package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/wardenhq/warden/pkg/panel/models"
	"github.com/wardenhq/warden/pkg/panel/store"
)

// UserHandler handles user management API endpoints (admin only).
type UserHandler struct {
	store *store.GORMStore
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(s *store.GORMStore) *UserHandler {
	return &UserHandler{store: s}
}

// CreateUserRequest is the request body for POST /api/v1/users.
type CreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	PlanID   string `json:"plan_id,omitempty"`
}

// UpdateUserRequest is the request body for PATCH /api/v1/users/{id}.
// Omitted fields are left unchanged.
type UpdateUserRequest struct {
	Email              *string `json:"email,omitempty"`
	Role               *string `json:"role,omitempty"`
	Enabled            *bool   `json:"enabled,omitempty"`
	PlanID             *string `json:"plan_id,omitempty"`
	SubscriptionActive *bool   `json:"subscription_active,omitempty"`
	Password           *string `json:"password,omitempty"`
}

// Create handles POST /api/v1/users.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.Username == "" || req.Password == "" {
		BadRequest(w, "Username and password are required")
		return
	}
	if len(req.Password) < 8 {
		BadRequest(w, "Password must be at least 8 characters")
		return
	}
	if req.Role != "" && !models.UserRole(req.Role).IsValid() {
		BadRequest(w, "Invalid role")
		return
	}
	if req.PlanID != "" {
		if _, err := h.store.GetPlan(r.Context(), req.PlanID); err != nil {
			BadRequest(w, "Unknown plan")
			return
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		InternalServerError(w, "Failed to hash password")
		return
	}

	user := &models.User{
		Username:     req.Username,
		PasswordHash: string(hash),
		Email:        req.Email,
		Role:         req.Role,
		Enabled:      true,
		PlanID:       req.PlanID,
	}
	if _, err := h.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, models.ErrDuplicateUser) {
			Conflict(w, "A user with that username already exists")
			return
		}
		InternalServerError(w, "Failed to create user")
		return
	}

	WriteJSONCreated(w, userToResponse(user))
}

// List handles GET /api/v1/users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		InternalServerError(w, "Failed to list users")
		return
	}
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, userToResponse(u))
	}
	WriteJSONOK(w, out)
}

// Get handles GET /api/v1/users/{id}.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.store.GetUserByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		NotFound(w, "User not found")
		return
	}
	WriteJSONOK(w, userToResponse(user))
}

// Update handles PATCH /api/v1/users/{id}.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateUserRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	fields := map[string]any{}
	if req.Email != nil {
		fields["email"] = *req.Email
	}
	if req.Role != nil {
		if !models.UserRole(*req.Role).IsValid() {
			BadRequest(w, "Invalid role")
			return
		}
		fields["role"] = *req.Role
	}
	if req.Enabled != nil {
		fields["enabled"] = *req.Enabled
	}
	if req.PlanID != nil {
		if *req.PlanID != "" {
			if _, err := h.store.GetPlan(r.Context(), *req.PlanID); err != nil {
				BadRequest(w, "Unknown plan")
				return
			}
		}
		fields["plan_id"] = *req.PlanID
	}
	if req.SubscriptionActive != nil {
		fields["subscription_active"] = *req.SubscriptionActive
	}
	if req.Password != nil {
		if len(*req.Password) < 8 {
			BadRequest(w, "Password must be at least 8 characters")
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			InternalServerError(w, "Failed to hash password")
			return
		}
		fields["password_hash"] = string(hash)
	}

	if err := h.store.UpdateUserFields(r.Context(), id, fields); err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			NotFound(w, "User not found")
			return
		}
		InternalServerError(w, "Failed to update user")
		return
	}

	user, err := h.store.GetUserByID(r.Context(), id)
	if err != nil {
		NotFound(w, "User not found")
		return
	}
	WriteJSONOK(w, userToResponse(user))
}

// Delete handles DELETE /api/v1/users/{id}.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.store.DeleteUser(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, models.ErrUserNotFound):
		NotFound(w, "User not found")
	case errors.Is(err, models.ErrUserInUse):
		Conflict(w, "User still owns servers; decommission them first")
	case err != nil:
		InternalServerError(w, "Failed to delete user")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}
