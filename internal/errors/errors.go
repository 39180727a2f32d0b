// Package errors defines the API error model and maps the processing
// error taxonomy onto HTTP responses: input validation errors surface
// as 400 before any parsing, extraction errors as 422 terminal for the
// request, rendering errors per artifact, and classification gaps are
// not errors at all.
package errors

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// APIError is a structured API error response
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// New creates a new APIError with the given parameters
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// NewWithDetails creates a new APIError with additional details
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// Predefined error types for common scenarios
var (
	ErrInvalidRequest   = New(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")
	ErrValidationFailed = New(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed")
	ErrMissingParameter = New(http.StatusBadRequest, "MISSING_PARAMETER", "Required parameter is missing")

	ErrNotFound = New(http.StatusNotFound, "NOT_FOUND", "Resource not found")

	ErrPayloadTooLarge = New(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Uploaded file exceeds the size limit")

	ErrUnprocessable = New(http.StatusUnprocessableEntity, "UNPROCESSABLE_ENTITY", "Request could not be processed")

	ErrInternalServer = New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
	ErrFileSystem     = New(http.StatusInternalServerError, "FILESYSTEM_ERROR", "File system error")
)

// ValidationFailed wraps an input validation failure (bad filename
// grammar, date mismatch, missing file type, oversized upload). These
// surface before any parsing begins.
func ValidationFailed(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED", "Upload validation failed", err.Error())
}

// ExtractionFailed wraps an extraction or analysis failure. The request
// is terminal but the message carries the precise reason (which file,
// which constraint).
func ExtractionFailed(err error) *APIError {
	return NewWithDetails(http.StatusUnprocessableEntity, "EXTRACTION_FAILED", "Report extraction failed", err.Error())
}

// RenderingFailed wraps a rendering failure that prevented the
// aggregate artifact from being produced.
func RenderingFailed(err error) *APIError {
	return NewWithDetails(http.StatusInternalServerError, "RENDERING_FAILED", "Report rendering failed", err.Error())
}

// NotFoundError creates a not found error with details
func NotFoundError(resource string) *APIError {
	return NewWithDetails(http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("%s not found", resource), resource)
}

// FileSystemError creates a filesystem error
func FileSystemError(operation string, err error) *APIError {
	return NewWithDetails(http.StatusInternalServerError, "FILESYSTEM_ERROR",
		fmt.Sprintf("File system error during %s", operation), err.Error())
}

// ErrorResponse is the standard error envelope
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   *APIError `json:"error"`
}

// NewErrorResponse creates a new error response
func NewErrorResponse(err *APIError) *ErrorResponse {
	return &ErrorResponse{Success: false, Error: err}
}

// Render implements the render.Renderer interface
func (e *ErrorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return e.Error.Render(w, r)
}
