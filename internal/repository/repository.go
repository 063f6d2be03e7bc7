package repository

import (
	"context"

	"github.com/yukikurage/task-tracker/internal/models"
)

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	// Create inserts a new task
	Create(ctx context.Context, task *models.Task) error

	// FindBySlug finds a task by its unique slug
	FindBySlug(ctx context.Context, slug string) (*models.Task, error)

	// List retrieves every task in creation order
	List(ctx context.Context) ([]models.Task, error)

	// Update saves all fields of an existing task
	Update(ctx context.Context, task *models.Task) error

	// Delete permanently removes a task
	Delete(ctx context.Context, id uint64) error

	// SlugExists reports whether another task already uses slug.
	// A task with excludeID is ignored so a task can keep its own slug.
	SlugExists(ctx context.Context, slug string, excludeID uint64) (bool, error)
}
