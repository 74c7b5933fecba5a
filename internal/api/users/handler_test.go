package users

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/clipforge/internal/api/auth"
	"github.com/good-yellow-bee/clipforge/internal/api/middleware"
	"github.com/good-yellow-bee/clipforge/internal/apperr"
	"github.com/good-yellow-bee/clipforge/internal/models"
)

type mockUsers struct {
	users map[string]*models.User
}

func (m *mockUsers) Create(ctx context.Context, u *models.User) error {
	m.users[u.ID] = u
	return nil
}

func (m *mockUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	return m.users[id], nil
}

func (m *mockUsers) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUsers) Update(ctx context.Context, u *models.User) error {
	m.users[u.ID] = u
	return nil
}

func (m *mockUsers) Delete(ctx context.Context, id string) error {
	delete(m.users, id)
	return nil
}

func (m *mockUsers) List(ctx context.Context) ([]*models.User, error) {
	out := make([]*models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *mockUsers) Count(ctx context.Context) (int64, error) { return int64(len(m.users)), nil }

type mockProfiles struct {
	tiers map[string]models.Tier
	err   error
}

func (m *mockProfiles) GetTier(ctx context.Context, userID string) (models.Tier, error) {
	if m.err != nil {
		return "", m.err
	}
	t, ok := m.tiers[userID]
	if !ok {
		return "", apperr.Newf(apperr.KindNotFound, "get tier", "no profile for %s", userID)
	}
	return t, nil
}

func (m *mockProfiles) SetTier(ctx context.Context, userID string, tier models.Tier) error {
	m.tiers[userID] = tier
	return nil
}

// Tier mirrors the quota tracker: a missing profile means free.
func (m *mockProfiles) Tier(ctx context.Context, userID string) (models.Tier, error) {
	t, err := m.GetTier(ctx, userID)
	if apperr.Is(err, apperr.KindNotFound) {
		return models.TierFree, nil
	}
	if err != nil {
		return "", apperr.New(apperr.KindStorageUnavailable, "tier", err)
	}
	return t, nil
}

type mockTokens struct {
	revokedFor []string
}

func (m *mockTokens) Create(ctx context.Context, t *models.RefreshToken) error { return nil }
func (m *mockTokens) GetByHash(ctx context.Context, h string) (*models.RefreshToken, error) {
	return nil, apperr.Newf(apperr.KindNotFound, "get token", "unknown token")
}
func (m *mockTokens) RevokeByHash(ctx context.Context, h string) error { return nil }
func (m *mockTokens) RevokeAllForUser(ctx context.Context, userID string) error {
	m.revokedFor = append(m.revokedFor, userID)
	return nil
}
func (m *mockTokens) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

type fixture struct {
	h        *Handler
	users    *mockUsers
	profiles *mockProfiles
	tokens   *mockTokens
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	hash, err := auth.HashPassword("storyboard42")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	users := &mockUsers{users: map[string]*models.User{
		"admin-1": {ID: "admin-1", Username: "admin", Email: "admin@example.com", PasswordHash: hash, Role: models.RoleAdmin},
		"u1":      {ID: "u1", Username: "maria", Email: "maria@example.com", PasswordHash: hash, Role: models.RoleEditor},
	}}
	profiles := &mockProfiles{tiers: map[string]models.Tier{"u1": models.TierPremium}}
	tokens := &mockTokens{}
	return &fixture{
		h:        NewHandler(users, profiles, tokens, profiles),
		users:    users,
		profiles: profiles,
		tokens:   tokens,
	}
}

func asUser(r *http.Request, id string, role models.Role) *http.Request {
	claims := &auth.Claims{UserID: id, Username: id, Role: role}
	return r.WithContext(middleware.WithClaims(r.Context(), claims))
}

func withParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeUser(t *testing.T, w *httptest.ResponseRecorder) UserResponse {
	t.Helper()
	var resp struct {
		Data UserResponse `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.Data
}

func TestGetCurrentUser_IncludesTier(t *testing.T) {
	f := newFixture(t)

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil), "u1", models.RoleEditor)
	w := httptest.NewRecorder()
	f.h.GetCurrentUser(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	got := decodeUser(t, w)
	if got.Username != "maria" || got.Tier != "premium" {
		t.Errorf("got %+v, want maria/premium", got)
	}
}

func TestGetCurrentUser_NoProfileIsFree(t *testing.T) {
	f := newFixture(t)

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil), "admin-1", models.RoleAdmin)
	w := httptest.NewRecorder()
	f.h.GetCurrentUser(w, req)

	if got := decodeUser(t, w); got.Tier != "free" {
		t.Errorf("tier = %q, want free", got.Tier)
	}
}

func TestGetCurrentUser_TierSourceDown(t *testing.T) {
	f := newFixture(t)
	f.profiles.err = context.DeadlineExceeded

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil), "u1", models.RoleEditor)
	w := httptest.NewRecorder()
	f.h.GetCurrentUser(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestGetCurrentUser_DeletedAccount(t *testing.T) {
	f := newFixture(t)

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil), "gone", models.RoleEditor)
	w := httptest.NewRecorder()
	f.h.GetCurrentUser(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestCreate(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"valid", `{"username":"newbie","email":"n@example.com","password":"storyboard42","tier":"premium"}`, http.StatusCreated},
		{"duplicate", `{"username":"maria","email":"m2@example.com","password":"storyboard42"}`, http.StatusConflict},
		{"weak password", `{"username":"newbie","email":"n@example.com","password":"short"}`, http.StatusBadRequest},
		{"bad role", `{"username":"newbie","email":"n@example.com","password":"storyboard42","role":"viewer"}`, http.StatusBadRequest},
		{"bad tier", `{"username":"newbie","email":"n@example.com","password":"storyboard42","tier":"gold"}`, http.StatusBadRequest},
		{"bad email", `{"username":"newbie","email":"nope","password":"storyboard42"}`, http.StatusBadRequest},
		{"bad json", `{`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/users", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()
			f.h.Create(w, req)

			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantCode, w.Body.String())
			}
			if tt.wantCode == http.StatusCreated {
				got := decodeUser(t, w)
				if got.Role != "editor" || got.Tier != "premium" {
					t.Errorf("got %+v, want editor/premium", got)
				}
				if f.profiles.tiers[got.ID] != models.TierPremium {
					t.Errorf("profile tier not stored")
				}
			}
		})
	}
}

func TestSetTier(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/users/u1/tier", bytes.NewBufferString(`{"tier":"free"}`))
	req = withParam(req, "id", "u1")
	w := httptest.NewRecorder()
	f.h.SetTier(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if f.profiles.tiers["u1"] != models.TierFree {
		t.Errorf("tier = %q, want free", f.profiles.tiers["u1"])
	}

	req = httptest.NewRequest(http.MethodPut, "/api/v1/users/nobody/tier", bytes.NewBufferString(`{"tier":"free"}`))
	req = withParam(req, "id", "nobody")
	w = httptest.NewRecorder()
	f.h.SetTier(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown user status = %d, want 404", w.Code)
	}
}

func TestDelete_Self(t *testing.T) {
	f := newFixture(t)

	req := asUser(httptest.NewRequest(http.MethodDelete, "/api/v1/users/admin-1", nil), "admin-1", models.RoleAdmin)
	req = withParam(req, "id", "admin-1")
	w := httptest.NewRecorder()
	f.h.Delete(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestDelete(t *testing.T) {
	f := newFixture(t)

	req := asUser(httptest.NewRequest(http.MethodDelete, "/api/v1/users/u1", nil), "admin-1", models.RoleAdmin)
	req = withParam(req, "id", "u1")
	w := httptest.NewRecorder()
	f.h.Delete(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if _, ok := f.users.users["u1"]; ok {
		t.Error("user still present")
	}
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)

	body := `{"current_password":"wrongpass1","new_password":"timeline2024"}`
	req := asUser(httptest.NewRequest(http.MethodPut, "/api/v1/users/me/password", bytes.NewBufferString(body)), "u1", models.RoleEditor)
	w := httptest.NewRecorder()
	f.h.ChangePassword(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("wrong current password status = %d, want 400", w.Code)
	}

	body = `{"current_password":"storyboard42","new_password":"timeline2024"}`
	req = asUser(httptest.NewRequest(http.MethodPut, "/api/v1/users/me/password", bytes.NewBufferString(body)), "u1", models.RoleEditor)
	w = httptest.NewRecorder()
	f.h.ChangePassword(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204: %s", w.Code, w.Body.String())
	}
	if !auth.CheckPassword(f.users.users["u1"].PasswordHash, "timeline2024") {
		t.Error("password not updated")
	}
	if len(f.tokens.revokedFor) != 1 || f.tokens.revokedFor[0] != "u1" {
		t.Errorf("revoked = %v, want [u1]", f.tokens.revokedFor)
	}
}
