package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"
)

// RefreshToken is a long-lived credential exchanged for new access tokens.
// Only the SHA-256 digest of the plaintext is stored.
type RefreshToken struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	TokenHash string     `json:"-"`
	ExpiresAt time.Time  `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// NewRefreshToken generates a token for userID valid for ttl from now.
// It returns the stored model and the plaintext handed to the client.
func NewRefreshToken(userID string, ttl time.Duration, now time.Time) (*RefreshToken, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", fmt.Errorf("read random bytes: %w", err)
	}
	plain := base64.RawURLEncoding.EncodeToString(raw)

	return &RefreshToken{
		UserID:    userID,
		TokenHash: HashToken(plain),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}, plain, nil
}

// HashToken returns the lookup digest of a plaintext token.
func HashToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Usable reports whether the token is neither revoked nor expired at now.
func (t *RefreshToken) Usable(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}
