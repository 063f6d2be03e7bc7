// Package web holds the HTML templates of the task pages.
package web

import (
	"embed"
	"html/template"
	"time"

	"github.com/yukikurage/task-tracker/internal/dto"
	"github.com/yukikurage/task-tracker/internal/routes"
)

//go:embed templates/*.html
var files embed.FS

const displayFormat = "Jan 2, 2006 15:04"

// Funcs are the helpers available to every template.
var Funcs = template.FuncMap{
	"url":      routes.Reverse,
	"datetime": formatTime,
	"deadline": formatDeadline,
	"stateLabel": func(state string) string {
		switch state {
		case dto.StateDone:
			return "Done"
		case dto.StatePending:
			return "Pending"
		default:
			return "Not started"
		}
	},
}

// Templates parses every page with its partials.
func Templates() (*template.Template, error) {
	return template.New("").Funcs(Funcs).ParseFS(files, "templates/*.html")
}

// MustTemplates is Templates for program start, panicking on a parse error.
func MustTemplates() *template.Template {
	return template.Must(Templates())
}

func formatTime(t time.Time) string {
	return t.UTC().Format(displayFormat)
}

func formatDeadline(t *time.Time) string {
	if t == nil {
		return "No deadline"
	}
	return formatTime(*t)
}
