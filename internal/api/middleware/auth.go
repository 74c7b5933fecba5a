package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/good-yellow-bee/clipforge/internal/api/auth"
	"github.com/good-yellow-bee/clipforge/internal/api/respond"
	"github.com/good-yellow-bee/clipforge/internal/models"
)

type contextKey string

const (
	userIDKey   contextKey = "user_id"
	usernameKey contextKey = "username"
	roleKey     contextKey = "role"
	claimsKey   contextKey = "claims"
)

// JWTAuth rejects requests without a valid bearer token and stores the
// caller's identity in the request context.
func JWTAuth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				respond.JSONError(w, respond.ErrInvalidToken)
				return
			}

			claims, err := jwtService.ValidateToken(token)
			if err != nil {
				log.Printf("jwt auth failed for %s: %v", r.RemoteAddr, err)
				respond.JSONError(w, respond.ErrInvalidToken)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// WithClaims returns ctx carrying the identity in claims.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	ctx = context.WithValue(ctx, userIDKey, claims.UserID)
	ctx = context.WithValue(ctx, usernameKey, claims.Username)
	ctx = context.WithValue(ctx, roleKey, claims.Role)
	return context.WithValue(ctx, claimsKey, claims)
}

// GetUserID returns the user ID from context.
func GetUserID(ctx context.Context) string {
	s, _ := ctx.Value(userIDKey).(string)
	return s
}

// GetUsername returns the username from context.
func GetUsername(ctx context.Context) string {
	s, _ := ctx.Value(usernameKey).(string)
	return s
}

// GetRole returns the user role from context.
func GetRole(ctx context.Context) models.Role {
	r, _ := ctx.Value(roleKey).(models.Role)
	return r
}

// GetClaims returns the JWT claims from context.
func GetClaims(ctx context.Context) *auth.Claims {
	c, _ := ctx.Value(claimsKey).(*auth.Claims)
	return c
}
