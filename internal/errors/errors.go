package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error codes
const (
	// Validation errors
	ErrCodeInvalidInput = "INVALID_INPUT"

	// Resource errors
	ErrCodeNotFound = "NOT_FOUND"

	// Service errors
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// ErrorTemplate is the template rendered for every error page
const ErrorTemplate = "error.html"

// PageError is the data rendered on an error page
type PageError struct {
	Status  int
	Code    string
	Title   string
	Message string
}

// Error implements the error interface
func (e *PageError) Error() string {
	return e.Message
}

// NewPageError creates a new PageError
func NewPageError(status int, code, message string) *PageError {
	return &PageError{
		Status:  status,
		Code:    code,
		Title:   http.StatusText(status),
		Message: message,
	}
}

// RespondWithError renders the error page with the error's status
func RespondWithError(c *gin.Context, err *PageError) {
	c.HTML(err.Status, ErrorTemplate, gin.H{
		"title": err.Title,
		"error": err,
	})
}

// Helper functions for common error responses

// NotFound sends a 404 page
func NotFound(c *gin.Context, message string) {
	if message == "" {
		message = "Page not found"
	}
	RespondWithError(c, NewPageError(http.StatusNotFound, ErrCodeNotFound, message))
}

// BadRequest sends a 400 page
func BadRequest(c *gin.Context, message string) {
	if message == "" {
		message = "Invalid request"
	}
	RespondWithError(c, NewPageError(http.StatusBadRequest, ErrCodeInvalidInput, message))
}

// InternalError sends a 500 page
func InternalError(c *gin.Context, message string) {
	if message == "" {
		message = "Internal server error"
	}
	RespondWithError(c, NewPageError(http.StatusInternalServerError, ErrCodeInternalError, message))
}

// ServiceUnavailable sends a 503 page
func ServiceUnavailable(c *gin.Context, message string) {
	if message == "" {
		message = "Service temporarily unavailable"
	}
	RespondWithError(c, NewPageError(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, message))
}
