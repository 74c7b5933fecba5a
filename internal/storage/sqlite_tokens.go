package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/good-yellow-bee/clipforge/internal/apperr"
	"github.com/good-yellow-bee/clipforge/internal/models"
)

type sqliteTokenRepo struct {
	db *sql.DB
}

func (r *sqliteTokenRepo) Create(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.New().String()
	}

	query := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		token.ID,
		token.UserID,
		token.TokenHash,
		formatTime(token.ExpiresAt),
		formatTime(token.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

// GetByHash returns an apperr NotFound error for unknown tokens.
func (r *sqliteTokenRepo) GetByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, created_at, revoked_at
		FROM refresh_tokens
		WHERE token_hash = ?
	`

	var (
		token                models.RefreshToken
		expiresAt, createdAt string
		revokedAt            sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&expiresAt,
		&createdAt,
		&revokedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperr.Newf(apperr.KindNotFound, "get refresh token", "token not found")
	}
	if err != nil {
		return nil, fmt.Errorf("query refresh token: %w", err)
	}

	if token.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, err
	}
	if token.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if token.RevokedAt, err = parseNullTime(revokedAt); err != nil {
		return nil, err
	}
	return &token, nil
}

// RevokeByHash is idempotent; revoking an unknown or revoked token is not an error.
func (r *sqliteTokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at = ? WHERE token_hash = ? AND revoked_at IS NULL",
		formatTime(time.Now()), tokenHash,
	)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (r *sqliteTokenRepo) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at = ? WHERE user_id = ? AND revoked_at IS NULL",
		formatTime(time.Now()), userID,
	)
	if err != nil {
		return fmt.Errorf("revoke user tokens: %w", err)
	}
	return nil
}

func (r *sqliteTokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE expires_at < ?", formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return result.RowsAffected()
}
