// Package auth issues and verifies the identity tokens the API trusts.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/good-yellow-bee/clipforge/internal/apperr"
	"github.com/good-yellow-bee/clipforge/internal/models"
)

const issuer = "clipforge"

// Claims are the access token claims.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string      `json:"uid"`
	Username string      `json:"usr"`
	Role     models.Role `json:"role"`
}

// JWTService signs and validates HS256 access tokens.
type JWTService struct {
	secret []byte
	ttl    time.Duration
}

// NewJWTService creates a JWT service.
func NewJWTService(secret []byte, ttl time.Duration) *JWTService {
	return &JWTService{secret: secret, ttl: ttl}
}

// GenerateToken issues an access token for user.
func (s *JWTService) GenerateToken(user *models.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ValidateToken verifies a token. Every failure is an apperr
// Unauthenticated error.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	const op = "validate token"
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, apperr.New(apperr.KindUnauthenticated, op, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, apperr.Newf(apperr.KindUnauthenticated, op, "invalid token claims")
	}
	return claims, nil
}

// TTL returns the access token lifetime.
func (s *JWTService) TTL() time.Duration {
	return s.ttl
}

// TTLSeconds returns the access token lifetime in seconds.
func (s *JWTService) TTLSeconds() int {
	return int(s.ttl.Seconds())
}
