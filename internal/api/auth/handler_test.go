package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/good-yellow-bee/clipforge/internal/apperr"
	"github.com/good-yellow-bee/clipforge/internal/models"
)

// mockUsers implements storage.UserRepository.
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

func (m *mockUsers) Update(ctx context.Context, u *models.User) error { return nil }
func (m *mockUsers) Delete(ctx context.Context, id string) error        { return nil }
func (m *mockUsers) List(ctx context.Context) ([]*models.User, error)  { return nil, nil }
func (m *mockUsers) Count(ctx context.Context) (int64, error)          { return int64(len(m.users)), nil }

// mockTokens implements storage.TokenRepository.
type mockTokens struct {
	mu     sync.Mutex
	tokens map[string]*models.RefreshToken
}

func (m *mockTokens) Create(ctx context.Context, t *models.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[t.TokenHash] = t
	return nil
}

func (m *mockTokens) GetByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[hash]
	if !ok {
		return nil, apperr.Newf(apperr.KindNotFound, "get refresh token", "token not found")
	}
	c := *t
	return &c, nil
}

func (m *mockTokens) RevokeByHash(ctx context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tokens[hash]; ok && t.RevokedAt == nil {
		now := time.Now()
		t.RevokedAt = &now
	}
	return nil
}

func (m *mockTokens) RevokeAllForUser(ctx context.Context, userID string) error { return nil }

func (m *mockTokens) DeleteExpired(ctx context.Context, now time.Time) (int64, error) { return 0, nil }

func newTestHandler(t *testing.T) (*Handler, *JWTService) {
	t.Helper()
	hash, err := HashPassword("storyboard42")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	users := &mockUsers{users: map[string]*models.User{
		"u1": {ID: "u1", Username: "editor", PasswordHash: hash, Role: models.RoleEditor},
	}}
	tokens := &mockTokens{tokens: make(map[string]*models.RefreshToken)}
	jwtSvc := NewJWTService(testSecret, 15*time.Minute)
	h := NewHandler(users, jwtSvc, NewTokenService(tokens, users, time.Hour), NewLockoutTracker(3, time.Minute))
	return h, jwtSvc
}

func post(handler http.HandlerFunc, body any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(b))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeTokens(t *testing.T, rec *httptest.ResponseRecorder) TokenResponse {
	t.Helper()
	var resp struct {
		Data TokenResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.Data
}

func TestLogin_Success(t *testing.T) {
	h, jwtSvc := newTestHandler(t)

	rec := post(h.Login, LoginRequest{Username: "editor", Password: "storyboard42"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	tokens := decodeTokens(t, rec)
	if tokens.TokenType != "Bearer" || tokens.ExpiresIn != 900 || tokens.RefreshToken == "" {
		t.Errorf("tokens = %+v", tokens)
	}
	claims, err := jwtSvc.ValidateToken(tokens.AccessToken)
	if err != nil || claims.UserID != "u1" {
		t.Errorf("access token claims = %+v, err = %v", claims, err)
	}
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"missing fields", LoginRequest{Username: "editor"}, http.StatusBadRequest},
		{"wrong password", LoginRequest{Username: "editor", Password: "wrong-pass-1"}, http.StatusUnauthorized},
		{"unknown user", LoginRequest{Username: "ghost", Password: "storyboard42"}, http.StatusUnauthorized},
		{"malformed body", "not an object", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandler(t)
			if rec := post(h.Login, tt.body); rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

func TestLogin_LocksAfterRepeatedFailures(t *testing.T) {
	h, _ := newTestHandler(t)

	for i := 0; i < 3; i++ {
		post(h.Login, LoginRequest{Username: "editor", Password: "wrong-pass-1"})
	}
	rec := post(h.Login, LoginRequest{Username: "editor", Password: "storyboard42"})
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
}

func TestRefresh_RotatesToken(t *testing.T) {
	h, _ := newTestHandler(t)

	login := decodeTokens(t, post(h.Login, LoginRequest{Username: "editor", Password: "storyboard42"}))

	rec := post(h.Refresh, RefreshRequest{RefreshToken: login.RefreshToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body = %s", rec.Code, rec.Body.String())
	}
	refreshed := decodeTokens(t, rec)
	if refreshed.RefreshToken == login.RefreshToken {
		t.Error("refresh token should rotate")
	}

	// The rotated token is revoked.
	if rec := post(h.Refresh, RefreshRequest{RefreshToken: login.RefreshToken}); rec.Code != http.StatusUnauthorized {
		t.Errorf("reuse status = %d, want 401", rec.Code)
	}
}

func TestLogout_RevokesToken(t *testing.T) {
	h, _ := newTestHandler(t)
	login := decodeTokens(t, post(h.Login, LoginRequest{Username: "editor", Password: "storyboard42"}))

	if rec := post(h.Logout, RefreshRequest{RefreshToken: login.RefreshToken}); rec.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d", rec.Code)
	}
	if rec := post(h.Refresh, RefreshRequest{RefreshToken: login.RefreshToken}); rec.Code != http.StatusUnauthorized {
		t.Errorf("refresh after logout = %d, want 401", rec.Code)
	}
	if rec := post(h.Logout, RefreshRequest{RefreshToken: "unknown"}); rec.Code != http.StatusNoContent {
		t.Errorf("logout unknown token = %d, want 204", rec.Code)
	}
}
