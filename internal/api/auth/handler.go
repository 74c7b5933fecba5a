package auth

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/good-yellow-bee/clipforge/internal/api/respond"
	"github.com/good-yellow-bee/clipforge/internal/metrics"
	"github.com/good-yellow-bee/clipforge/internal/storage"
)

// Handler serves the authentication endpoints.
type Handler struct {
	users   storage.UserRepository
	jwt     *JWTService
	tokens  *TokenService
	lockout *LockoutTracker
}

// NewHandler creates an auth handler.
func NewHandler(users storage.UserRepository, jwt *JWTService, tokens *TokenService, lockout *LockoutTracker) *Handler {
	return &Handler{users: users, jwt: jwt, tokens: tokens, lockout: lockout}
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshRequest is the request body for refresh and logout.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse is returned by login and refresh.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// Login exchanges credentials for an access and refresh token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.JSONError(w, respond.NewBadRequest("invalid request body"))
		return
	}
	if req.Username == "" || req.Password == "" {
		respond.JSONError(w, respond.NewBadRequest("username and password required"))
		return
	}

	if h.lockout.IsLocked(req.Username) {
		metrics.AuthAttemptsTotal.WithLabelValues("locked").Inc()
		log.Printf("login blocked: account %s locked for %v", req.Username, h.lockout.RemainingLockoutTime(req.Username))
		respond.JSONError(w, respond.ErrAccountLocked)
		return
	}

	ctx := r.Context()
	user, err := h.users.GetByUsername(ctx, req.Username)
	if err != nil {
		respond.Err(w, "login", err)
		return
	}
	if user == nil || !CheckPassword(user.PasswordHash, req.Password) {
		h.lockout.RecordFailure(req.Username)
		metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
		log.Printf("login failed: user %s", req.Username)
		respond.JSONError(w, respond.ErrUnauthorized)
		return
	}
	h.lockout.ClearFailures(req.Username)

	resp, err := h.issue(r, user.ID, "")
	if err != nil {
		respond.Err(w, "login", err)
		return
	}
	access, err := h.jwt.GenerateToken(user)
	if err != nil {
		respond.Err(w, "login", err)
		return
	}
	resp.AccessToken = access

	metrics.AuthAttemptsTotal.WithLabelValues("success").Inc()
	metrics.AuthTokensIssued.WithLabelValues("access").Inc()
	log.Printf("login success: user %s", user.Username)
	respond.OK(w, resp)
}

// Refresh rotates a refresh token and issues a new access token.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		respond.JSONError(w, respond.NewBadRequest("refresh_token required"))
		return
	}

	user, err := h.tokens.Validate(r.Context(), req.RefreshToken)
	if err != nil {
		respond.Err(w, "refresh", err)
		return
	}

	resp, err := h.issue(r, user.ID, req.RefreshToken)
	if err != nil {
		respond.Err(w, "refresh", err)
		return
	}
	access, err := h.jwt.GenerateToken(user)
	if err != nil {
		respond.Err(w, "refresh", err)
		return
	}
	resp.AccessToken = access

	metrics.AuthTokensIssued.WithLabelValues("access").Inc()
	respond.OK(w, resp)
}

// Logout revokes a refresh token. Revoking an unknown token succeeds.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		respond.JSONError(w, respond.NewBadRequest("refresh_token required"))
		return
	}
	if err := h.tokens.Revoke(r.Context(), req.RefreshToken); err != nil {
		log.Printf("logout error: revoke token: %v", err)
	}
	respond.NoContent(w)
}

// issue creates the refresh half of a token response, rotating previous
// when set.
func (h *Handler) issue(r *http.Request, userID, previous string) (*TokenResponse, error) {
	var (
		refresh string
		err     error
	)
	if previous != "" {
		refresh, err = h.tokens.Rotate(r.Context(), previous, userID)
	} else {
		refresh, err = h.tokens.Issue(r.Context(), userID)
	}
	if err != nil {
		return nil, err
	}
	metrics.AuthTokensIssued.WithLabelValues("refresh").Inc()
	return &TokenResponse{
		RefreshToken: refresh,
		ExpiresIn:    h.jwt.TTLSeconds(),
		TokenType:    "Bearer",
	}, nil
}
