// Package forms binds and validates the task add and edit submissions.
package forms

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/yukikurage/task-tracker/internal/constants"
	"github.com/yukikurage/task-tracker/internal/logger"
	"github.com/yukikurage/task-tracker/internal/models"
)

// Field names as submitted by the HTML forms
const (
	FieldName           = "name"
	FieldDescription    = "description"
	FieldCompleteBefore = "complete_before"

	// NonFieldErrors collects errors not tied to a single input.
	NonFieldErrors = "__all__"
)

// Error messages
const (
	MsgRequired        = "This field is required."
	MsgInvalidDateTime = "Enter a valid date/time."
	msgMaxLength       = "Ensure this value has at most %s characters (it has %d)."
)

// dateTimeInputFormat is the layout of an HTML datetime-local input.
const dateTimeInputFormat = "2006-01-02T15:04"

var dateTimeLayouts = []string{
	dateTimeInputFormat,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC3339,
}

// FieldSpec describes one input of the task schema.
type FieldSpec struct {
	Name      string
	Label     string
	InputType string
	Required  bool
	MaxLength int
}

// TaskSchema lists the editable task fields in display order.
var TaskSchema = []FieldSpec{
	{Name: FieldName, Label: "Name", InputType: "text", Required: true, MaxLength: constants.NameMaxLength},
	{Name: FieldDescription, Label: "Description", InputType: "textarea", Required: true},
	{Name: FieldCompleteBefore, Label: "Complete before", InputType: "datetime-local"},
}

// TaskInput holds submitted values. The binding tags mirror TaskSchema.
type TaskInput struct {
	Name           string `binding:"notblank,max=100"`
	Description    string `binding:"notblank"`
	CompleteBefore string `binding:"omitempty,datetimeinput"`
}

var inputFields = map[string]string{
	"Name":           FieldName,
	"Description":    FieldDescription,
	"CompleteBefore": FieldCompleteBefore,
}

// FieldErrors maps a field name to its error messages.
type FieldErrors map[string][]string

var (
	registerOnce sync.Once
	registerErr  error
)

// registerValidations installs the custom tags on gin's validator engine.
func registerValidations() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerErr = fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
			return
		}
		if err := v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		}); err != nil {
			registerErr = fmt.Errorf("failed to register notblank: %w", err)
			return
		}
		if err := v.RegisterValidation("datetimeinput", func(fl validator.FieldLevel) bool {
			_, err := ParseDateTime(fl.Field().String())
			return err == nil
		}); err != nil {
			registerErr = fmt.Errorf("failed to register datetimeinput: %w", err)
		}
	})
	return registerErr
}

// ParseDateTime accepts the layouts produced by browsers and typed by hand.
func ParseDateTime(value string) (time.Time, error) {
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date/time %q", value)
}

// FormatDateTime renders t for a datetime-local input.
func FormatDateTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(dateTimeInputFormat)
}

// TaskForm is the state shared by the add and edit forms.
type TaskForm struct {
	Input  TaskInput
	Errors FieldErrors
	bound  bool
}

// IsBound reports whether the form was populated from a submission.
func (f *TaskForm) IsBound() bool {
	return f.bound
}

// IsValid reports whether a bound submission passed validation.
func (f *TaskForm) IsValid() bool {
	return f.bound && len(f.Errors) == 0
}

// Fields returns the schema, used by templates to render inputs.
func (f *TaskForm) Fields() []FieldSpec {
	return TaskSchema
}

// Value returns the current value of a field.
func (f *TaskForm) Value(field string) string {
	switch field {
	case FieldName:
		return f.Input.Name
	case FieldDescription:
		return f.Input.Description
	case FieldCompleteBefore:
		return f.Input.CompleteBefore
	default:
		return ""
	}
}

// ErrorsFor returns the messages attached to a field.
func (f *TaskForm) ErrorsFor(field string) []string {
	return f.Errors[field]
}

// AddError attaches a message to a field, making the form invalid.
func (f *TaskForm) AddError(field, message string) {
	if f.Errors == nil {
		f.Errors = FieldErrors{}
	}
	f.Errors[field] = append(f.Errors[field], message)
}

// bind reads the POST body, trims every value and validates it.
func (f *TaskForm) bind(c *gin.Context) {
	f.bound = true
	f.Errors = FieldErrors{}

	if err := registerValidations(); err != nil {
		logger.Log.WithError(err).Error("Form validations unavailable")
		f.AddError(NonFieldErrors, "The form cannot be validated right now.")
		return
	}

	if err := c.Request.ParseForm(); err != nil {
		f.AddError(NonFieldErrors, "The submitted form could not be read.")
		return
	}

	f.Input = TaskInput{
		Name:           strings.TrimSpace(c.Request.PostForm.Get(FieldName)),
		Description:    strings.TrimSpace(c.Request.PostForm.Get(FieldDescription)),
		CompleteBefore: strings.TrimSpace(c.Request.PostForm.Get(FieldCompleteBefore)),
	}

	err := binding.Validator.ValidateStruct(&f.Input)
	if err == nil {
		return
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		f.AddError(NonFieldErrors, err.Error())
		return
	}
	for _, fe := range verrs {
		field, ok := inputFields[fe.Field()]
		if !ok {
			field = NonFieldErrors
		}
		f.AddError(field, f.message(fe, field))
	}
}

func (f *TaskForm) message(fe validator.FieldError, field string) string {
	switch fe.Tag() {
	case "notblank", "required":
		return MsgRequired
	case "max":
		return fmt.Sprintf(msgMaxLength, fe.Param(), utf8.RuneCountInString(f.Value(field)))
	case "datetimeinput":
		return MsgInvalidDateTime
	default:
		return fmt.Sprintf("Invalid value (%s).", fe.Tag())
	}
}

// apply copies the validated input onto task without persisting it.
func (f *TaskForm) apply(task *models.Task) error {
	if !f.IsValid() {
		return errors.New("cannot save an invalid form")
	}

	task.Name = f.Input.Name
	task.Description = f.Input.Description
	task.CompleteBefore = nil
	if f.Input.CompleteBefore != "" {
		deadline, err := ParseDateTime(f.Input.CompleteBefore)
		if err != nil {
			return err
		}
		task.CompleteBefore = &deadline
	}
	return nil
}

// AddTaskForm creates new tasks.
type AddTaskForm struct {
	TaskForm
}

// NewAddTaskForm returns an unbound, empty form.
func NewAddTaskForm() *AddTaskForm {
	return &AddTaskForm{}
}

// BindAddTaskForm returns a form bound to the request body.
func BindAddTaskForm(c *gin.Context) *AddTaskForm {
	form := &AddTaskForm{}
	form.bind(c)
	return form
}

// Save returns a new, unsaved task. The slug is left for the caller to assign.
func (f *AddTaskForm) Save() (*models.Task, error) {
	task := &models.Task{}
	if err := f.apply(task); err != nil {
		return nil, err
	}
	return task, nil
}

// EditTaskForm changes an existing task.
type EditTaskForm struct {
	TaskForm
	instance *models.Task
}

// NewEditTaskForm returns an unbound form pre-filled from task.
func NewEditTaskForm(task *models.Task) *EditTaskForm {
	return &EditTaskForm{
		TaskForm: TaskForm{
			Input: TaskInput{
				Name:           task.Name,
				Description:    task.Description,
				CompleteBefore: FormatDateTime(task.CompleteBefore),
			},
		},
		instance: task,
	}
}

// BindEditTaskForm returns a form bound to the request body for task.
func BindEditTaskForm(c *gin.Context, task *models.Task) *EditTaskForm {
	form := &EditTaskForm{instance: task}
	form.bind(c)
	return form
}

// Save applies the submission to the bound instance without persisting it.
func (f *EditTaskForm) Save() (*models.Task, error) {
	if err := f.apply(f.instance); err != nil {
		return nil, err
	}
	return f.instance, nil
}
