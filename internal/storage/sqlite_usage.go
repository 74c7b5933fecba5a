package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/good-yellow-bee/clipforge/internal/models"
)

type sqliteUsageRepo struct {
	db *sql.DB
}

func (r *sqliteUsageRepo) Get(ctx context.Context, userID string, resource models.Resource) (_ *models.UsageCounter, err error) {
	defer observe("get_usage", time.Now(), &err)
	counter := &models.UsageCounter{UserID: userID, Resource: resource}
	var resetAt string
	err = r.db.QueryRowContext(ctx,
		"SELECT count, reset_at FROM usage_counters WHERE user_id = ? AND resource = ?",
		userID, string(resource),
	).Scan(&counter.Count, &resetAt)
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get usage: %w", err)
	}
	if counter.ResetAt, err = parseTime(resetAt); err != nil {
		return nil, err
	}
	return counter, nil
}

// Put replaces the counter; it never adds to the stored count.
func (r *sqliteUsageRepo) Put(ctx context.Context, counter *models.UsageCounter) (err error) {
	defer observe("put_usage", time.Now(), &err)
	query := `
		INSERT INTO usage_counters (user_id, resource, count, reset_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, resource) DO UPDATE SET count = excluded.count, reset_at = excluded.reset_at
	`
	_, err = r.db.ExecContext(ctx, query,
		counter.UserID, string(counter.Resource), counter.Count, formatTime(counter.ResetAt),
	)
	if err != nil {
		return fmt.Errorf("put usage: %w", err)
	}
	return nil
}
