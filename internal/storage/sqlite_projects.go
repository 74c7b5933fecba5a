package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/good-yellow-bee/clipforge/internal/apperr"
	"github.com/good-yellow-bee/clipforge/internal/models"
)

type sqliteProjectRepo struct {
	db *sql.DB
}

func (r *sqliteProjectRepo) Create(ctx context.Context, project *models.Project) error {
	doc, err := json.Marshal(project)
	if err != nil {
		return apperr.New(apperr.KindInvalidInput, "encode project", err)
	}
	query := `
		INSERT INTO projects (id, owner_id, name, document, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		project.ID, project.OwnerID, project.Name, string(doc),
		formatTime(project.CreatedAt), formatTime(project.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (r *sqliteProjectRepo) Load(ctx context.Context, id string) (_ *models.Project, err error) {
	defer observe("load_project", time.Now(), &err)
	var doc string
	var lastSynced sql.NullString
	err = r.db.QueryRowContext(ctx,
		"SELECT document, last_synced_at FROM projects WHERE id = ?", id,
	).Scan(&doc, &lastSynced)
	if err == sql.ErrNoRows {
		return nil, apperr.Newf(apperr.KindNotFound, "load project", "project not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	return decodeProject(doc, lastSynced)
}

// Save replaces the stored document of an existing project owned by
// ownerID. It never creates a row: a deleted or foreign project is reported
// as NotFound. The caller's project is not modified; the stored copy keeps
// its edit time in UpdatedAt and records the save time in LastSyncedAt.
func (r *sqliteProjectRepo) Save(ctx context.Context, project *models.Project, ownerID string) (err error) {
	defer observe("save_project", time.Now(), &err)

	now := time.Now()
	stored := project.Clone()
	stored.OwnerID = ownerID
	stored.LastSyncedAt = &now
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = now
	}

	doc, err := json.Marshal(stored)
	if err != nil {
		return apperr.New(apperr.KindInvalidInput, "encode project", err)
	}

	query := `
		UPDATE projects
		SET name = ?, document = ?, last_synced_at = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		stored.Name, string(doc), formatTime(now), formatTime(stored.UpdatedAt),
		stored.ID, ownerID,
	)
	if err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	if rows == 0 {
		return apperr.Newf(apperr.KindNotFound, "save project", "project %s not found for owner %s", stored.ID, ownerID)
	}
	return nil
}

func (r *sqliteProjectRepo) ListByOwner(ctx context.Context, ownerID string) ([]*models.Project, error) {
	return r.list(ctx, "SELECT document, last_synced_at FROM projects WHERE owner_id = ? ORDER BY name", ownerID)
}

func (r *sqliteProjectRepo) List(ctx context.Context) ([]*models.Project, error) {
	return r.list(ctx, "SELECT document, last_synced_at FROM projects ORDER BY name")
}

func (r *sqliteProjectRepo) list(ctx context.Context, query string, args ...any) ([]*models.Project, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		var doc string
		var lastSynced sql.NullString
		if err := rows.Scan(&doc, &lastSynced); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		project, err := decodeProject(doc, lastSynced)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

func (r *sqliteProjectRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperr.Newf(apperr.KindNotFound, "delete project", "project not found: %s", id)
	}
	return nil
}

func decodeProject(doc string, lastSynced sql.NullString) (*models.Project, error) {
	project := &models.Project{}
	if err := json.Unmarshal([]byte(doc), project); err != nil {
		return nil, fmt.Errorf("decode project: %w", err)
	}
	synced, err := parseNullTime(lastSynced)
	if err != nil {
		return nil, err
	}
	if synced != nil {
		project.LastSyncedAt = synced
	}
	if project.Elements == nil {
		project.Elements = []models.TimelineElement{}
	}
	return project, nil
}
