// Package routes is the named URL table of the tasks application.
package routes

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/task-tracker/internal/constants"
)

// Route names, namespaced as "tasks:<name>" when reversed.
const (
	Home          = "home"
	TaskDetail    = "task-detail"
	Done          = "done"
	Pending       = "pending"
	AddTask       = "add-task"
	EditTask      = "edit-task"
	TaskDelete    = "task-delete"
	Toggle        = "toggle"
	GenerateTasks = "generate-tasks"
)

// TaskHandlers is implemented by the request handlers behind the table.
type TaskHandlers interface {
	Home(c *gin.Context)
	TaskDetail(c *gin.Context)
	Done(c *gin.Context)
	Pending(c *gin.Context)
	AddTask(c *gin.Context)
	EditTask(c *gin.Context)
	TaskDelete(c *gin.Context)
	Toggle(c *gin.Context)
	GenerateTasks(c *gin.Context)
}

// Route maps a path pattern to a handler.
type Route struct {
	Name    string
	Path    string
	Methods []string
	// WithTask routes resolve the :slug parameter before the handler runs.
	WithTask bool
	Handle   func(TaskHandlers, *gin.Context)
}

var (
	readOnly = []string{http.MethodGet}
	readForm = []string{http.MethodGet, http.MethodPost}
)

// Table is the full route table. The toggle route also answers GET so that
// plain links can flip a task.
var Table = []Route{
	{Name: Home, Path: "/", Methods: readOnly, Handle: TaskHandlers.Home},
	{Name: TaskDetail, Path: "/task/:slug/", Methods: readOnly, WithTask: true, Handle: TaskHandlers.TaskDetail},
	{Name: Done, Path: "/done", Methods: readOnly, Handle: TaskHandlers.Done},
	{Name: Pending, Path: "/pending", Methods: readOnly, Handle: TaskHandlers.Pending},
	{Name: AddTask, Path: "/add", Methods: readForm, Handle: TaskHandlers.AddTask},
	{Name: EditTask, Path: "/task/:slug/edit/", Methods: readForm, WithTask: true, Handle: TaskHandlers.EditTask},
	{Name: TaskDelete, Path: "/task/:slug/delete/", Methods: readForm, WithTask: true, Handle: TaskHandlers.TaskDelete},
	{Name: Toggle, Path: "/task/:slug", Methods: readForm, WithTask: true, Handle: TaskHandlers.Toggle},
	{Name: GenerateTasks, Path: "/generate", Methods: readForm, Handle: TaskHandlers.GenerateTasks},
}

var byName = func() map[string]Route {
	m := make(map[string]Route, len(Table))
	for _, rt := range Table {
		m[Namespaced(rt.Name)] = rt
	}
	return m
}()

// Namespaced qualifies a route name for Reverse.
func Namespaced(name string) string {
	return constants.RouteNamespace + ":" + name
}

// Register installs every route of the table on r. loadTask runs before
// handlers of routes carrying a slug.
func Register(r gin.IRouter, h TaskHandlers, loadTask gin.HandlerFunc) {
	for _, rt := range Table {
		handle := rt.Handle
		chain := []gin.HandlerFunc{}
		if rt.WithTask {
			chain = append(chain, loadTask)
		}
		chain = append(chain, func(c *gin.Context) {
			handle(h, c)
		})

		for _, method := range rt.Methods {
			r.Handle(method, rt.Path, chain...)
		}
	}
}

// Reverse returns the path of the named route ("tasks:toggle") with params
// substituted for its :parameters in order.
func Reverse(name string, params ...string) (string, error) {
	rt, ok := byName[name]
	if !ok {
		return "", fmt.Errorf("no route named %q", name)
	}

	segments := strings.Split(rt.Path, "/")
	next := 0
	for i, segment := range segments {
		if !strings.HasPrefix(segment, ":") {
			continue
		}
		if next >= len(params) {
			return "", fmt.Errorf("route %q expects more parameters", name)
		}
		segments[i] = url.PathEscape(params[next])
		next++
	}
	if next != len(params) {
		return "", fmt.Errorf("route %q takes %d parameters, got %d", name, next, len(params))
	}

	return strings.Join(segments, "/"), nil
}

// URL is Reverse for callers holding a known-good route name; it panics otherwise.
func URL(name string, params ...string) string {
	path, err := Reverse(name, params...)
	if err != nil {
		panic(err)
	}
	return path
}
