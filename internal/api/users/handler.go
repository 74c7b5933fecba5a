package users

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/good-yellow-bee/clipforge/internal/api/auth"
	"github.com/good-yellow-bee/clipforge/internal/api/middleware"
	"github.com/good-yellow-bee/clipforge/internal/api/respond"
	"github.com/good-yellow-bee/clipforge/internal/models"
	"github.com/good-yellow-bee/clipforge/internal/storage"
)

// TierSource resolves the effective tier of an account.
type TierSource interface {
	Tier(ctx context.Context, userID string) (models.Tier, error)
}

// UserResponse is a user without sensitive fields.
type UserResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Tier      string `json:"tier"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Handler handles account endpoints.
type Handler struct {
	users    storage.UserRepository
	profiles storage.ProfileRepository
	tokens   storage.TokenRepository
	tiers    TierSource
}

// NewHandler creates a new user handler.
func NewHandler(users storage.UserRepository, profiles storage.ProfileRepository, tokens storage.TokenRepository, tiers TierSource) *Handler {
	return &Handler{users: users, profiles: profiles, tokens: tokens, tiers: tiers}
}

// CreateRequest is the request body for creating a user.
type CreateRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Tier     string `json:"tier,omitempty"`
}

// SetTierRequest is the request body for changing an account tier.
type SetTierRequest struct {
	Tier string `json:"tier"`
}

// ChangePasswordRequest is the request body for changing password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// GetCurrentUser returns the authenticated user with the tier that currently
// applies to them.
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	user, err := h.users.GetByID(ctx, userID)
	if err != nil {
		respond.Err(w, "get current user", err)
		return
	}
	if user == nil {
		respond.JSONError(w, respond.ErrInvalidToken)
		return
	}

	tier, err := h.tiers.Tier(ctx, userID)
	if err != nil {
		respond.Err(w, "get current user", err)
		return
	}

	respond.OK(w, userToResponse(user, tier))
}

// List returns all users (admin only).
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	users, err := h.users.List(ctx)
	if err != nil {
		respond.Err(w, "list users", err)
		return
	}

	resp := make([]*UserResponse, len(users))
	for i, u := range users {
		tier, err := h.tiers.Tier(ctx, u.ID)
		if err != nil {
			respond.Err(w, "list users", err)
			return
		}
		resp[i] = userToResponse(u, tier)
	}

	respond.OK(w, resp)
}

// Create creates a new user (admin only).
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.JSONError(w, respond.NewBadRequest("invalid request body"))
		return
	}

	if err := ValidateUsername(req.Username); err != nil {
		respond.JSONError(w, respond.NewValidationError(err.Error()))
		return
	}
	if err := ValidateEmail(req.Email); err != nil {
		respond.JSONError(w, respond.NewValidationError(err.Error()))
		return
	}
	if err := auth.ValidatePasswordOrError(req.Password); err != nil {
		respond.JSONError(w, respond.NewValidationError(err.Error()))
		return
	}
	role, err := ValidateRole(req.Role)
	if err != nil {
		respond.JSONError(w, respond.NewValidationError(err.Error()))
		return
	}
	tier := models.TierFree
	if req.Tier != "" {
		if tier, err = ValidateTier(req.Tier); err != nil {
			respond.JSONError(w, respond.NewValidationError(err.Error()))
			return
		}
	}

	ctx := r.Context()
	username := strings.TrimSpace(req.Username)

	existing, err := h.users.GetByUsername(ctx, username)
	if err != nil {
		respond.Err(w, "create user", err)
		return
	}
	if existing != nil {
		respond.JSONError(w, respond.NewConflict("username already exists"))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respond.Err(w, "create user", err)
		return
	}

	user := models.NewUser(username, strings.TrimSpace(req.Email), role)
	user.ID = uuid.New().String()
	user.PasswordHash = hash

	if err := h.users.Create(ctx, user); err != nil {
		respond.Err(w, "create user", err)
		return
	}
	if err := h.profiles.SetTier(ctx, user.ID, tier); err != nil {
		respond.Err(w, "create user", err)
		return
	}

	log.Printf("user created: %s (%s, %s)", user.Username, user.ID, tier)

	respond.Created(w, userToResponse(user, tier))
}

// SetTier changes the billing tier of an account (admin only).
func (h *Handler) SetTier(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	var req SetTierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.JSONError(w, respond.NewBadRequest("invalid request body"))
		return
	}
	tier, err := ValidateTier(req.Tier)
	if err != nil {
		respond.JSONError(w, respond.NewValidationError(err.Error()))
		return
	}

	ctx := r.Context()
	user, err := h.users.GetByID(ctx, userID)
	if err != nil {
		respond.Err(w, "set tier", err)
		return
	}
	if user == nil {
		respond.JSONError(w, respond.NewNotFound("user not found"))
		return
	}

	if err := h.profiles.SetTier(ctx, userID, tier); err != nil {
		respond.Err(w, "set tier", err)
		return
	}

	log.Printf("tier changed: %s -> %s", user.Username, tier)

	respond.OK(w, userToResponse(user, tier))
}

// Delete deletes a user (admin only).
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	ctx := r.Context()

	if userID == middleware.GetUserID(ctx) {
		respond.JSONError(w, respond.NewBadRequest("cannot delete own account"))
		return
	}

	user, err := h.users.GetByID(ctx, userID)
	if err != nil {
		respond.Err(w, "delete user", err)
		return
	}
	if user == nil {
		respond.JSONError(w, respond.NewNotFound("user not found"))
		return
	}

	if err := h.users.Delete(ctx, userID); err != nil {
		respond.Err(w, "delete user", err)
		return
	}

	log.Printf("user deleted: %s (%s)", user.Username, user.ID)

	respond.NoContent(w)
}

// ChangePassword changes the current user's password and signs out other
// devices.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.JSONError(w, respond.NewBadRequest("invalid request body"))
		return
	}
	if req.CurrentPassword == "" {
		respond.JSONError(w, respond.NewValidationError("current_password is required"))
		return
	}
	if err := auth.ValidatePasswordOrError(req.NewPassword); err != nil {
		respond.JSONError(w, respond.NewValidationError(err.Error()))
		return
	}

	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	user, err := h.users.GetByID(ctx, userID)
	if err != nil {
		respond.Err(w, "change password", err)
		return
	}
	if user == nil {
		respond.JSONError(w, respond.ErrInvalidToken)
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		respond.JSONError(w, respond.NewValidationError("current password is incorrect"))
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		respond.Err(w, "change password", err)
		return
	}
	user.PasswordHash = hash
	user.UpdatedAt = time.Now()

	if err := h.users.Update(ctx, user); err != nil {
		respond.Err(w, "change password", err)
		return
	}

	if err := h.tokens.RevokeAllForUser(ctx, userID); err != nil {
		// password is already changed
		log.Printf("change password warning: revoke tokens: %v", err)
	}

	log.Printf("password changed: user %s", user.Username)

	respond.NoContent(w)
}

func userToResponse(u *models.User, tier models.Tier) *UserResponse {
	return &UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      string(u.Role),
		Tier:      string(tier),
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
		UpdatedAt: u.UpdatedAt.Format(time.RFC3339),
	}
}
