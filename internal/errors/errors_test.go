package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIError(t *testing.T) {
	err := New(http.StatusBadRequest, "BAD", "bad request")
	assert.Equal(t, "bad request", err.Error())
	assert.Equal(t, http.StatusBadRequest, err.StatusCode)

	detailed := NewWithDetails(http.StatusNotFound, "NOT_FOUND", "missing", "the details")
	assert.Equal(t, "the details", detailed.Details)
}

func TestTaxonomyHelpers(t *testing.T) {
	tests := []struct {
		name       string
		err        *APIError
		wantStatus int
		wantCode   string
	}{
		{name: "validation", err: ValidationFailed(stderrors.New("bad name")), wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_FAILED"},
		{name: "extraction", err: ExtractionFailed(stderrors.New("bad data")), wantStatus: http.StatusUnprocessableEntity, wantCode: "EXTRACTION_FAILED"},
		{name: "rendering", err: RenderingFailed(stderrors.New("no disk")), wantStatus: http.StatusInternalServerError, wantCode: "RENDERING_FAILED"},
		{name: "not found", err: NotFoundError("report"), wantStatus: http.StatusNotFound, wantCode: "NOT_FOUND"},
		{name: "filesystem", err: FileSystemError("bundling", stderrors.New("disk full")), wantStatus: http.StatusInternalServerError, wantCode: "FILESYSTEM_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantStatus, tt.err.StatusCode)
			assert.Equal(t, tt.wantCode, tt.err.ErrorCode)
			assert.NotNil(t, tt.err.Details)
		})
	}
}

func TestHandleError(t *testing.T) {
	h := NewErrorHandler(nil)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "api error passes through",
			err:        ValidationFailed(stderrors.New("bad upload")),
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "wrapped api error unwrapped",
			err:        NotFoundError("artifact"),
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "context cancellation",
			err:        context.Canceled,
			wantStatus: 499,
			wantCode:   "REQUEST_CANCELLED",
		},
		{
			name:       "deadline exceeded",
			err:        context.DeadlineExceeded,
			wantStatus: http.StatusGatewayTimeout,
			wantCode:   "REQUEST_TIMEOUT",
		},
		{
			name:       "unknown errors become 500",
			err:        stderrors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_SERVER_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/test", nil)

			h.HandleError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.False(t, body.Success)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.wantCode, body.Error.ErrorCode)
		})
	}
}

func TestHandleErrorNil(t *testing.T) {
	h := NewErrorHandler(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)

	h.HandleError(rec, req, nil)
	assert.Empty(t, rec.Body.String())
}
