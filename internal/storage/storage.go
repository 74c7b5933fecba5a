// Package storage provides database storage interfaces and implementations.
package storage

import (
	"context"
	"time"

	"github.com/good-yellow-bee/clipforge/internal/models"
)

// Storage is the main interface for database operations.
type Storage interface {
	// Open initializes the database connection.
	Open() error
	// Close closes the database connection.
	Close() error
	// Migrate runs database migrations.
	Migrate() error
	// EnsureAdminUser creates default admin if no users exist.
	EnsureAdminUser() error

	// Repository accessors
	Users() UserRepository
	Profiles() ProfileRepository
	Projects() ProjectRepository
	Usage() UsageRepository
	Objects() ObjectRepository
	Tokens() TokenRepository
}

// UserRepository defines operations for user management.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.User, error)
	Count(ctx context.Context) (int64, error)
}

// ProfileRepository is the billing profile source.
type ProfileRepository interface {
	// GetTier returns an apperr NotFound error when the user has no profile.
	GetTier(ctx context.Context, userID string) (models.Tier, error)
	SetTier(ctx context.Context, userID string, tier models.Tier) error
}

// ProjectRepository is the durable project store. Projects are saved as
// whole JSON documents; concurrent writers follow last-writer-wins.
type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	// Load returns an apperr NotFound error when the project does not exist.
	Load(ctx context.Context, id string) (*models.Project, error)
	// Save replaces the stored document of a project owned by ownerID.
	Save(ctx context.Context, project *models.Project, ownerID string) error
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Project, error)
	List(ctx context.Context) ([]*models.Project, error)
	Delete(ctx context.Context, id string) error
}

// UsageRepository stores per-account usage counters.
type UsageRepository interface {
	// Get returns nil when the account has no counter for resource.
	Get(ctx context.Context, userID string, resource models.Resource) (*models.UsageCounter, error)
	// Put replaces the counter.
	Put(ctx context.Context, counter *models.UsageCounter) error
}

// ObjectRepository lists metadata of objects held in object storage.
type ObjectRepository interface {
	Create(ctx context.Context, obj *models.StoredObject) error
	List(ctx context.Context, ownerID string) ([]*models.StoredObject, error)
	Delete(ctx context.Context, id string) error
}

// TokenRepository stores refresh token digests.
type TokenRepository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	// GetByHash returns an apperr NotFound error for unknown tokens.
	GetByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
