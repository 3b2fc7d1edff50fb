// Package store defines the persistence contract shared by every backend.
package store

import (
	"context"
	"errors"

	"github.com/monocle-dev/planboard/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound  = errors.New("store: record not found")
	ErrDuplicate = errors.New("store: duplicate key")
)

type UserStore interface {
	// Create assigns ID and timestamps. A taken email yields ErrDuplicate.
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// FindByIDs returns the users that exist; unknown ids are skipped.
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
	// Update replaces name, email and password hash and refreshes UpdatedAt.
	// A taken email yields ErrDuplicate.
	Update(ctx context.Context, user *models.User) error
	// Delete removes the user, drops it from every member list and clears
	// its task assignments. Owned projects are left to the caller.
	Delete(ctx context.Context, id string) error
}

type ProjectStore interface {
	Create(ctx context.Context, project *models.Project) error
	FindByID(ctx context.Context, id string) (*models.Project, error)
	// ListAccessible returns projects owned by or shared with userID, newest first.
	ListAccessible(ctx context.Context, userID string) ([]models.Project, error)
	// Update replaces the stored document and refreshes UpdatedAt.
	Update(ctx context.Context, project *models.Project) error
	// DeleteCascade removes the project and every task referencing it.
	DeleteCascade(ctx context.Context, id string) (tasksDeleted int64, err error)
}

type TaskStore interface {
	Create(ctx context.Context, task *models.Task) error
	FindByID(ctx context.Context, id string) (*models.Task, error)
	// ListByProject returns the project's tasks, newest first.
	ListByProject(ctx context.Context, projectID string) ([]models.Task, error)
	Update(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, id string) error
}

type Store interface {
	Users() UserStore
	Projects() ProjectStore
	Tasks() TaskStore
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// NewID returns a fresh object id in hex form. All backends use the same id shape.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// ValidID reports whether id is a 24 character hex object id.
func ValidID(id string) bool {
	return primitive.IsValidObjectID(id)
}
