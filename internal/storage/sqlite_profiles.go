package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/good-yellow-bee/clipforge/internal/apperr"
	"github.com/good-yellow-bee/clipforge/internal/models"
)

type sqliteProfileRepo struct {
	db *sql.DB
}

func (r *sqliteProfileRepo) GetTier(ctx context.Context, userID string) (models.Tier, error) {
	var tier string
	err := r.db.QueryRowContext(ctx, "SELECT tier FROM billing_profiles WHERE user_id = ?", userID).Scan(&tier)
	if err == sql.ErrNoRows {
		return "", apperr.Newf(apperr.KindNotFound, "get tier", "no billing profile for user %s", userID)
	}
	if err != nil {
		return "", fmt.Errorf("get tier: %w", err)
	}
	return models.ParseTier(tier), nil
}

func (r *sqliteProfileRepo) SetTier(ctx context.Context, userID string, tier models.Tier) error {
	query := `
		INSERT INTO billing_profiles (user_id, tier, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET tier = excluded.tier, updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query, userID, string(tier), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("set tier: %w", err)
	}
	return nil
}
