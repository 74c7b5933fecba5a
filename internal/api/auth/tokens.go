package auth

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/good-yellow-bee/clipforge/internal/apperr"
	"github.com/good-yellow-bee/clipforge/internal/models"
	"github.com/good-yellow-bee/clipforge/internal/storage"
)

// TokenService issues, rotates and revokes refresh tokens.
type TokenService struct {
	tokens storage.TokenRepository
	users  storage.UserRepository
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a token service.
func NewTokenService(tokens storage.TokenRepository, users storage.UserRepository, ttl time.Duration) *TokenService {
	return &TokenService{tokens: tokens, users: users, ttl: ttl, now: time.Now}
}

// Issue stores a new refresh token for userID and returns its plaintext.
func (s *TokenService) Issue(ctx context.Context, userID string) (string, error) {
	token, plain, err := models.NewRefreshToken(userID, s.ttl, s.now())
	if err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return "", apperr.New(apperr.KindStorageUnavailable, "store refresh token", err)
	}
	return plain, nil
}

// Validate returns the user a usable refresh token belongs to. Unknown,
// expired and revoked tokens are Unauthenticated.
func (s *TokenService) Validate(ctx context.Context, plain string) (*models.User, error) {
	const op = "validate refresh token"
	token, err := s.tokens.GetByHash(ctx, models.HashToken(plain))
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.New(apperr.KindUnauthenticated, op, err)
		}
		return nil, apperr.New(apperr.KindStorageUnavailable, op, err)
	}
	if !token.Usable(s.now()) {
		return nil, apperr.Newf(apperr.KindUnauthenticated, op, "token expired or revoked")
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		return nil, apperr.New(apperr.KindStorageUnavailable, op, err)
	}
	if user == nil {
		return nil, apperr.Newf(apperr.KindUnauthenticated, op, "user no longer exists")
	}
	return user, nil
}

// Rotate revokes the presented token and issues a replacement.
func (s *TokenService) Rotate(ctx context.Context, oldPlain, userID string) (string, error) {
	if err := s.Revoke(ctx, oldPlain); err != nil {
		log.Printf("refresh warning: revoke rotated token: %v", err)
	}
	return s.Issue(ctx, userID)
}

// Revoke invalidates a refresh token. Unknown tokens are ignored.
func (s *TokenService) Revoke(ctx context.Context, plain string) error {
	return s.tokens.RevokeByHash(ctx, models.HashToken(plain))
}

// RevokeAll invalidates every refresh token of userID.
func (s *TokenService) RevokeAll(ctx context.Context, userID string) error {
	return s.tokens.RevokeAllForUser(ctx, userID)
}

// Cleanup removes expired tokens.
func (s *TokenService) Cleanup(ctx context.Context) (int64, error) {
	return s.tokens.DeleteExpired(ctx, s.now())
}
