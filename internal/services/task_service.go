package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/yukikurage/task-tracker/internal/cache"
	"github.com/yukikurage/task-tracker/internal/constants"
	"github.com/yukikurage/task-tracker/internal/logger"
	"github.com/yukikurage/task-tracker/internal/metrics"
	"github.com/yukikurage/task-tracker/internal/models"
	"github.com/yukikurage/task-tracker/internal/repository"
	"github.com/yukikurage/task-tracker/internal/utils"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

var (
	ErrTaskNotFound           = errors.New("task not found")
	ErrSlugTaken              = errors.New("a task with this name already exists")
	ErrSlugEmpty              = errors.New("name must contain at least one letter or number")
	ErrSlugTooLong            = errors.New("name is too long once converted to a slug")
	ErrGenerateTextRequired   = errors.New("text is required")
	ErrAIServiceNotConfigured = errors.New("AI service is not configured")
	ErrAINoTasksGenerated     = errors.New("AI did not generate any tasks")
	ErrAINoValidTasks         = errors.New("no valid tasks could be created from AI output")
)

// TaskService handles task business logic
type TaskService struct {
	taskRepo  repository.TaskRepository
	listCache cache.TaskListCache
	generator TaskGenerator
	listGroup singleflight.Group
	// generation is bumped by every mutation; list results read under an
	// older generation are never written to the cache.
	generation atomic.Uint64
}

// NewTaskService creates a new TaskService. listCache and generator may be nil.
func NewTaskService(taskRepo repository.TaskRepository, listCache cache.TaskListCache, generator TaskGenerator) *TaskService {
	if listCache == nil {
		listCache = cache.NopTaskListCache{}
	}
	return &TaskService{
		taskRepo:  taskRepo,
		listCache: listCache,
		generator: generator,
	}
}

// ListTasks returns every task together with the total count
func (s *TaskService) ListTasks(ctx context.Context) ([]models.Task, int64, error) {
	cached, found, err := s.listCache.GetTasks(ctx)
	switch {
	case err != nil:
		metrics.TaskListCacheLookups.WithLabelValues("error").Inc()
		logger.Log.WithError(err).Warn("Task list cache lookup failed")
	case found:
		metrics.TaskListCacheLookups.WithLabelValues("hit").Inc()
		return cached, int64(len(cached)), nil
	default:
		metrics.TaskListCacheLookups.WithLabelValues("miss").Inc()
	}

	// Concurrent misses of the same generation share one query.
	gen := s.generation.Load()
	key := fmt.Sprintf("%s:%d", constants.TaskListCacheKey, gen)
	val, err, _ := s.listGroup.Do(key, func() (any, error) {
		queryCtx := context.WithoutCancel(ctx)
		tasks, err := s.taskRepo.List(queryCtx)
		if err != nil {
			return nil, err
		}
		s.storeList(queryCtx, gen, tasks)
		return tasks, nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}

	tasks := val.([]models.Task)
	return tasks, int64(len(tasks)), nil
}

// storeList caches tasks read under gen unless a mutation happened since.
func (s *TaskService) storeList(ctx context.Context, gen uint64, tasks []models.Task) {
	if s.generation.Load() != gen {
		return
	}
	if err := s.listCache.SetTasks(ctx, tasks); err != nil {
		logger.Log.WithError(err).Warn("Failed to populate task list cache")
		return
	}
	// A mutation may have invalidated between the check and the write.
	if s.generation.Load() != gen {
		if err := s.listCache.Invalidate(ctx); err != nil {
			logger.Log.WithError(err).Warn("Failed to invalidate task list cache")
		}
	}
}

// GetTask returns the task identified by slug
func (s *TaskService) GetTask(ctx context.Context, slug string) (*models.Task, error) {
	task, err := s.taskRepo.FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	return task, nil
}

// CreateTask derives the slug from the task name and persists the task
func (s *TaskService) CreateTask(ctx context.Context, task *models.Task) error {
	if err := s.assignSlug(ctx, task); err != nil {
		return err
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrSlugTaken
		}
		return fmt.Errorf("failed to create task: %w", err)
	}

	s.afterMutation(ctx, metrics.OpCreate, task)
	return nil
}

// UpdateTask recomputes the slug from the (possibly changed) name and saves the task
func (s *TaskService) UpdateTask(ctx context.Context, task *models.Task) error {
	if err := s.assignSlug(ctx, task); err != nil {
		return err
	}

	if err := s.taskRepo.Update(ctx, task); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrSlugTaken
		}
		return fmt.Errorf("failed to update task: %w", err)
	}

	s.afterMutation(ctx, metrics.OpUpdate, task)
	return nil
}

// ToggleTask flips the completion flag. An unset flag becomes done.
func (s *TaskService) ToggleTask(ctx context.Context, task *models.Task) error {
	task.ToggleDone()

	if err := s.taskRepo.Update(ctx, task); err != nil {
		return fmt.Errorf("failed to toggle task: %w", err)
	}

	s.afterMutation(ctx, metrics.OpToggle, task)
	return nil
}

// DeleteTask permanently removes a task
func (s *TaskService) DeleteTask(ctx context.Context, task *models.Task) error {
	if err := s.taskRepo.Delete(ctx, task.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		return fmt.Errorf("failed to delete task: %w", err)
	}

	s.afterMutation(ctx, metrics.OpDelete, task)
	return nil
}

// GenerationEnabled reports whether a task generator is configured
func (s *TaskService) GenerationEnabled() bool {
	return s.generator != nil
}

// GenerateTasks extracts tasks from text and stores every one whose name is
// usable. Suggestions whose slug is already taken are skipped. When storing
// fails partway, the tasks created so far are returned along with the error.
func (s *TaskService) GenerateTasks(ctx context.Context, text string) ([]models.Task, error) {
	if s.generator == nil {
		return nil, ErrAIServiceNotConfigured
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrGenerateTextRequired
	}

	suggestions, err := s.generator.GenerateTasksFromText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tasks: %w", err)
	}

	if len(suggestions) == 0 {
		return nil, ErrAINoTasksGenerated
	}
	if len(suggestions) > constants.MaxAIGeneratedTasks {
		return nil, fmt.Errorf("AI generated too many tasks (max %d)", constants.MaxAIGeneratedTasks)
	}

	created := make([]models.Task, 0, len(suggestions))
	cutoff := time.Now().Add(-24 * time.Hour)
	for _, suggestion := range suggestions {
		task, ok := taskFromSuggestion(suggestion, cutoff)
		if !ok {
			continue
		}

		if err := s.CreateTask(ctx, task); err != nil {
			if errors.Is(err, ErrSlugTaken) || errors.Is(err, ErrSlugEmpty) || errors.Is(err, ErrSlugTooLong) {
				logger.Log.WithField("name", task.Name).WithError(err).Info("Skipping generated task")
				continue
			}
			return created, err
		}

		metrics.TaskOperationsTotal.WithLabelValues(metrics.OpGenerate).Inc()
		created = append(created, *task)
	}

	if len(created) == 0 {
		return nil, ErrAINoValidTasks
	}

	return created, nil
}

func taskFromSuggestion(suggestion GeneratedTask, cutoff time.Time) (*models.Task, bool) {
	name := strings.TrimSpace(suggestion.Name)
	if name == "" {
		return nil, false
	}
	if utf8.RuneCountInString(name) > constants.NameMaxLength {
		name = string([]rune(name)[:constants.NameMaxLength])
	}

	description := strings.TrimSpace(suggestion.Description)
	if description == "" {
		description = name
	}

	deadline := suggestion.CompleteBefore
	if deadline != nil && deadline.Before(cutoff) {
		deadline = nil
	}

	return &models.Task{
		Name:           name,
		Description:    description,
		CompleteBefore: deadline,
	}, true
}

// assignSlug sets task.Slug from task.Name after checking no other task holds it
func (s *TaskService) assignSlug(ctx context.Context, task *models.Task) error {
	slug := utils.Slugify(task.Name)
	if slug == "" {
		return ErrSlugEmpty
	}
	if len(slug) > constants.SlugMaxLength {
		return ErrSlugTooLong
	}

	taken, err := s.taskRepo.SlugExists(ctx, slug, task.ID)
	if err != nil {
		return fmt.Errorf("failed to check slug: %w", err)
	}
	if taken {
		return ErrSlugTaken
	}

	task.Slug = slug
	return nil
}

func (s *TaskService) afterMutation(ctx context.Context, operation string, task *models.Task) {
	metrics.TaskOperationsTotal.WithLabelValues(operation).Inc()

	s.generation.Add(1)
	if err := s.listCache.Invalidate(ctx); err != nil {
		logger.Log.WithError(err).Warn("Failed to invalidate task list cache")
	}

	logger.Log.WithFields(logrus.Fields{
		"operation": operation,
		"slug":      task.Slug,
	}).Info("Task changed")
}
