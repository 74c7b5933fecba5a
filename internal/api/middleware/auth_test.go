package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/good-yellow-bee/clipforge/internal/api/auth"
	"github.com/good-yellow-bee/clipforge/internal/models"
)

var testSecret = []byte("test-secret-key-32-bytes-long!!")

func TestJWTAuth_ValidToken(t *testing.T) {
	jwtService := auth.NewJWTService(testSecret, 15*time.Minute)
	user := &models.User{ID: "user-123", Username: "editor", Role: models.RoleEditor}

	token, err := jwtService.GenerateToken(user)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	var gotUserID, gotUsername string
	var gotRole models.Role
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = GetUserID(r.Context())
		gotUsername = GetUsername(r.Context())
		gotRole = GetRole(r.Context())
		if GetClaims(r.Context()) == nil {
			t.Error("claims missing from context")
		}
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	JWTAuth(jwtService)(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotUserID != user.ID || gotUsername != user.Username || gotRole != user.Role {
		t.Errorf("identity = %q %q %q", gotUserID, gotUsername, gotRole)
	}
}

func TestJWTAuth_Rejects(t *testing.T) {
	jwtService := auth.NewJWTService(testSecret, 15*time.Minute)
	expired, _ := auth.NewJWTService(testSecret, -time.Minute).GenerateToken(&models.User{ID: "u1"})

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	})
	wrapped := JWTAuth(jwtService)(handler)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"invalid format", "NotBearer token"},
		{"invalid token", "Bearer invalid-token"},
		{"empty bearer", "Bearer "},
		{"expired", "Bearer " + expired},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			wrapped.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestContextHelpers_Empty(t *testing.T) {
	ctx := httptest.NewRequest("GET", "/test", nil).Context()

	if got := GetUserID(ctx); got != "" {
		t.Errorf("GetUserID() = %q, want empty", got)
	}
	if got := GetUsername(ctx); got != "" {
		t.Errorf("GetUsername() = %q, want empty", got)
	}
	if got := GetRole(ctx); got != "" {
		t.Errorf("GetRole() = %q, want empty", got)
	}
	if got := GetClaims(ctx); got != nil {
		t.Errorf("GetClaims() = %v, want nil", got)
	}
}
