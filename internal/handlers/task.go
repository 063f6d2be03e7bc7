package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yukikurage/task-tracker/internal/constants"
	"github.com/yukikurage/task-tracker/internal/dto"
	apierrors "github.com/yukikurage/task-tracker/internal/errors"
	"github.com/yukikurage/task-tracker/internal/forms"
	"github.com/yukikurage/task-tracker/internal/logger"
	"github.com/yukikurage/task-tracker/internal/middleware"
	"github.com/yukikurage/task-tracker/internal/models"
	"github.com/yukikurage/task-tracker/internal/routes"
	"github.com/yukikurage/task-tracker/internal/services"
)

// Page templates
const (
	homeTemplate          = "home.html"
	detailTemplate        = "detail.html"
	doneTemplate          = "done.html"
	pendingTemplate       = "pending.html"
	addTemplate           = "add.html"
	editTemplate          = "edit_task.html"
	confirmDeleteTemplate = "task_confirm_delete.html"
	generateTemplate      = "generate.html"
)

type TaskHandler struct {
	taskService *services.TaskService
}

func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
	}
}

var _ routes.TaskHandlers = (*TaskHandler)(nil)

// Home lists every task with the total count
func (h *TaskHandler) Home(c *gin.Context) {
	tasks, count, err := h.taskService.ListTasks(c.Request.Context())
	if err != nil {
		h.serverError(c, err, "Failed to list tasks")
		return
	}

	h.render(c, http.StatusOK, homeTemplate, gin.H{
		"title":    "All tasks",
		"tasks":    dto.ToTaskViews(tasks),
		"num_task": count,
	})
}

// TaskDetail shows one task
// Task is already loaded by the LoadTask middleware
func (h *TaskHandler) TaskDetail(c *gin.Context) {
	task, ok := h.taskFromContext(c)
	if !ok {
		return
	}

	h.render(c, http.StatusOK, detailTemplate, gin.H{
		"title": task.Name,
		"task":  dto.ToTaskView(*task),
	})
}

// Done renders the done page. It shows the full list, not only completed tasks.
func (h *TaskHandler) Done(c *gin.Context) {
	h.renderList(c, doneTemplate, "Done")
}

// Pending renders the pending page with the full list.
func (h *TaskHandler) Pending(c *gin.Context) {
	h.renderList(c, pendingTemplate, "Pending")
}

// AddTask shows the empty form on GET and creates a task on POST
func (h *TaskHandler) AddTask(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		h.renderAddForm(c, forms.NewAddTaskForm())
		return
	}

	form := forms.BindAddTaskForm(c)
	if !form.IsValid() {
		h.renderAddForm(c, form)
		return
	}

	task, err := form.Save()
	if err != nil {
		h.serverError(c, err, "Failed to build task from form")
		return
	}

	if err := h.taskService.CreateTask(c.Request.Context(), task); err != nil {
		if addSlugError(&form.TaskForm, err) {
			h.renderAddForm(c, form)
			return
		}
		h.serverError(c, err, "Failed to create task")
		return
	}

	h.redirectHome(c, fmt.Sprintf("Task %q created.", task.Name))
}

// EditTask shows the pre-filled form on GET and saves changes on POST.
// A changed name moves the task to a new slug.
func (h *TaskHandler) EditTask(c *gin.Context) {
	task, ok := h.taskFromContext(c)
	if !ok {
		return
	}
	original := dto.ToTaskView(*task)

	if c.Request.Method != http.MethodPost {
		h.renderEditForm(c, original, forms.NewEditTaskForm(task))
		return
	}

	form := forms.BindEditTaskForm(c, task)
	if !form.IsValid() {
		h.renderEditForm(c, original, form)
		return
	}

	if _, err := form.Save(); err != nil {
		h.serverError(c, err, "Failed to apply task form")
		return
	}

	if err := h.taskService.UpdateTask(c.Request.Context(), task); err != nil {
		if addSlugError(&form.TaskForm, err) {
			h.renderEditForm(c, original, form)
			return
		}
		h.serverError(c, err, "Failed to update task")
		return
	}

	h.redirectHome(c, fmt.Sprintf("Task %q updated.", task.Name))
}

// TaskDelete asks for confirmation on GET and deletes on POST
func (h *TaskHandler) TaskDelete(c *gin.Context) {
	task, ok := h.taskFromContext(c)
	if !ok {
		return
	}

	if c.Request.Method != http.MethodPost {
		h.render(c, http.StatusOK, confirmDeleteTemplate, gin.H{
			"title": "Delete " + task.Name,
			"task":  dto.ToTaskView(*task),
		})
		return
	}

	if err := h.taskService.DeleteTask(c.Request.Context(), task); err != nil {
		if errors.Is(err, services.ErrTaskNotFound) {
			apierrors.NotFound(c, "No task matches the given query.")
			return
		}
		h.serverError(c, err, "Failed to delete task")
		return
	}

	h.redirectHome(c, fmt.Sprintf("Task %q deleted.", task.Name))
}

// Toggle flips the completion flag and returns to the list
func (h *TaskHandler) Toggle(c *gin.Context) {
	task, ok := h.taskFromContext(c)
	if !ok {
		return
	}

	if err := h.taskService.ToggleTask(c.Request.Context(), task); err != nil {
		h.serverError(c, err, "Failed to toggle task")
		return
	}

	state := "pending"
	if task.IsDone() {
		state = "done"
	}
	h.redirectHome(c, fmt.Sprintf("Task %q marked %s.", task.Name, state))
}

// GenerateTasks creates tasks from free text using AI
func (h *TaskHandler) GenerateTasks(c *gin.Context) {
	if !h.taskService.GenerationEnabled() {
		apierrors.ServiceUnavailable(c, "Task generation is not configured. Set OPENAI_API_KEY to enable it.")
		return
	}

	if c.Request.Method != http.MethodPost {
		h.renderGenerateForm(c, "", nil)
		return
	}

	text := strings.TrimSpace(c.PostForm("text"))
	created, err := h.taskService.GenerateTasks(c.Request.Context(), text)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrGenerateTextRequired):
			h.renderGenerateForm(c, text, []string{forms.MsgRequired})
		case errors.Is(err, services.ErrAINoTasksGenerated), errors.Is(err, services.ErrAINoValidTasks):
			h.renderGenerateForm(c, text, []string{err.Error()})
		case len(created) > 0:
			logger.Log.WithError(err).Error("Task generation stopped early")
			h.redirectHome(c, fmt.Sprintf("%d tasks generated before an error stopped generation.", len(created)))
		default:
			logger.Log.WithError(err).Error("Task generation failed")
			h.renderGenerateForm(c, text, []string{"Task generation failed. Please try again."})
		}
		return
	}

	h.redirectHome(c, fmt.Sprintf("%d tasks generated.", len(created)))
}

func (h *TaskHandler) renderList(c *gin.Context, name, title string) {
	tasks, _, err := h.taskService.ListTasks(c.Request.Context())
	if err != nil {
		h.serverError(c, err, "Failed to list tasks")
		return
	}

	h.render(c, http.StatusOK, name, gin.H{
		"title": title,
		"tasks": dto.ToTaskViews(tasks),
	})
}

func (h *TaskHandler) renderAddForm(c *gin.Context, form *forms.AddTaskForm) {
	h.render(c, http.StatusOK, addTemplate, gin.H{
		"title": "Add task",
		"form":  form,
	})
}

func (h *TaskHandler) renderEditForm(c *gin.Context, task dto.TaskView, form *forms.EditTaskForm) {
	h.render(c, http.StatusOK, editTemplate, gin.H{
		"title": "Edit " + task.Name,
		"task":  task,
		"form":  form,
	})
}

func (h *TaskHandler) renderGenerateForm(c *gin.Context, text string, errs []string) {
	h.render(c, http.StatusOK, generateTemplate, gin.H{
		"title":  "Generate tasks",
		"text":   text,
		"errors": errs,
	})
}

// render adds pending flash messages to data and renders the page
func (h *TaskHandler) render(c *gin.Context, status int, name string, data gin.H) {
	data["generationEnabled"] = h.taskService.GenerationEnabled()
	session := sessions.Default(c)
	if flashes := session.Flashes(); len(flashes) > 0 {
		data["flashes"] = flashes
		if err := session.Save(); err != nil {
			logger.Log.WithError(err).Warn("Failed to clear flash messages")
		}
	}

	c.HTML(status, name, data)
}

func (h *TaskHandler) redirectHome(c *gin.Context, message string) {
	session := sessions.Default(c)
	session.AddFlash(message)
	if err := session.Save(); err != nil {
		logger.Log.WithError(err).Warn("Failed to store flash message")
	}

	c.Redirect(http.StatusFound, routes.URL(routes.Namespaced(routes.Home)))
}

func (h *TaskHandler) taskFromContext(c *gin.Context) (*models.Task, bool) {
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return nil, false
	}
	return task, true
}

func (h *TaskHandler) serverError(c *gin.Context, err error, message string) {
	logger.Log.WithFields(logrus.Fields{
		"path":  c.Request.URL.Path,
		"error": err.Error(),
	}).Error(message)
	apierrors.InternalError(c, "")
}

// addSlugError reports slug conflicts as errors on the name field
func addSlugError(form *forms.TaskForm, err error) bool {
	switch {
	case errors.Is(err, services.ErrSlugTaken):
		form.AddError(forms.FieldName, "Task with this name already exists.")
	case errors.Is(err, services.ErrSlugEmpty):
		form.AddError(forms.FieldName, "Enter a name containing at least one letter or number.")
	case errors.Is(err, services.ErrSlugTooLong):
		form.AddError(forms.FieldName, fmt.Sprintf("Enter a shorter name (its slug may have at most %d characters).", constants.SlugMaxLength))
	default:
		return false
	}
	return true
}
