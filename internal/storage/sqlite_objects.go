package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/good-yellow-bee/clipforge/internal/apperr"
	"github.com/good-yellow-bee/clipforge/internal/models"
)

type sqliteObjectRepo struct {
	db *sql.DB
}

func (r *sqliteObjectRepo) Create(ctx context.Context, obj *models.StoredObject) error {
	query := `
		INSERT INTO stored_objects (id, owner_id, object_key, size_bytes, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		obj.ID, obj.OwnerID, obj.Key, obj.SizeBytes, formatTime(obj.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert object: %w", err)
	}
	return nil
}

func (r *sqliteObjectRepo) List(ctx context.Context, ownerID string) (_ []*models.StoredObject, err error) {
	defer observe("list_objects", time.Now(), &err)
	query := `
		SELECT id, owner_id, object_key, size_bytes, created_at
		FROM stored_objects WHERE owner_id = ? ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	defer rows.Close()

	var objects []*models.StoredObject
	for rows.Next() {
		obj := &models.StoredObject{}
		var createdAt string
		if err := rows.Scan(&obj.ID, &obj.OwnerID, &obj.Key, &obj.SizeBytes, &createdAt); err != nil {
			return nil, fmt.Errorf("scan object: %w", err)
		}
		if obj.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		objects = append(objects, obj)
	}
	return objects, rows.Err()
}

func (r *sqliteObjectRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM stored_objects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperr.Newf(apperr.KindNotFound, "delete object", "object not found: %s", id)
	}
	return nil
}
