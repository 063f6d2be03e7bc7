package dto

import (
	"time"

	"github.com/yukikurage/task-tracker/internal/models"
)

// Completion states shown in pages
const (
	StateUnset   = "unset"
	StateDone    = "done"
	StatePending = "pending"
)

// TaskView is the template representation of a task
type TaskView struct {
	Name           string
	Description    string
	Slug           string
	Done           *bool
	State          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompleteBefore *time.Time
}

// ToTaskView converts a Task model to TaskView
func ToTaskView(task models.Task) TaskView {
	return TaskView{
		Name:           task.Name,
		Description:    task.Description,
		Slug:           task.Slug,
		Done:           task.Done,
		State:          completionState(task.Done),
		CreatedAt:      task.CreatedAt,
		UpdatedAt:      task.UpdatedAt,
		CompleteBefore: task.CompleteBefore,
	}
}

// ToTaskViews converts a slice of tasks
func ToTaskViews(tasks []models.Task) []TaskView {
	views := make([]TaskView, len(tasks))
	for i, task := range tasks {
		views[i] = ToTaskView(task)
	}
	return views
}

func completionState(done *bool) string {
	switch {
	case done == nil:
		return StateUnset
	case *done:
		return StateDone
	default:
		return StatePending
	}
}
