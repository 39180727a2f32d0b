package errors

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// ErrorHandler provides centralized error handling for the transport
// layer: every error is logged with request context and rendered as a
// structured JSON response.
type ErrorHandler struct {
	logger *slog.Logger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorHandler{logger: logger.With(slog.String("component", "error_handler"))}
}

// HandleError converts any error to the API error model and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := middleware.GetReqID(r.Context())
	h.logger.ErrorContext(r.Context(), "request failed",
		slog.String("error", err.Error()),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path))

	apiErr := toAPIError(err)
	if renderErr := render.Render(w, r, NewErrorResponse(apiErr)); renderErr != nil {
		h.logger.Error("failed to render error response",
			slog.String("error", renderErr.Error()))
		http.Error(w, apiErr.Message, apiErr.StatusCode)
	}
}

// toAPIError normalizes arbitrary errors into the APIError model
func toAPIError(err error) *APIError {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}
	switch {
	case stderrors.Is(err, context.Canceled):
		return New(499, "REQUEST_CANCELLED", "Request was cancelled by the client")
	case stderrors.Is(err, context.DeadlineExceeded):
		return New(http.StatusGatewayTimeout, "REQUEST_TIMEOUT", "Request processing timed out")
	}
	return NewWithDetails(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error", err.Error())
}
