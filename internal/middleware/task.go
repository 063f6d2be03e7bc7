package middleware

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/task-tracker/internal/constants"
	apierrors "github.com/yukikurage/task-tracker/internal/errors"
	"github.com/yukikurage/task-tracker/internal/logger"
	"github.com/yukikurage/task-tracker/internal/models"
	"github.com/yukikurage/task-tracker/internal/services"
)

// TaskFinder looks a task up by slug.
type TaskFinder interface {
	GetTask(ctx context.Context, slug string) (*models.Task, error)
}

// LoadTask resolves the :slug URL parameter and stores the task in the
// context. Unknown slugs end the request with a 404 page.
func LoadTask(finder TaskFinder) gin.HandlerFunc {
	return func(c *gin.Context) {
		slug := c.Param("slug")

		task, err := finder.GetTask(c.Request.Context(), slug)
		if err != nil {
			if errors.Is(err, services.ErrTaskNotFound) {
				apierrors.NotFound(c, "No task matches the given query.")
			} else {
				logger.Log.WithError(err).WithField("slug", slug).Error("Failed to load task")
				apierrors.InternalError(c, "")
			}
			c.Abort()
			return
		}

		c.Set(constants.ContextKeyTask, task)
		c.Next()
	}
}

// GetTask retrieves the task stored by LoadTask
func GetTask(c *gin.Context) (*models.Task, bool) {
	value, exists := c.Get(constants.ContextKeyTask)
	if !exists {
		return nil, false
	}

	task, ok := value.(*models.Task)
	return task, ok
}
