package http

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "nbslab/internal/errors"
	"nbslab/internal/services"
)

// AnalyzerHandler handles document analysis requests
type AnalyzerHandler struct {
	service      *services.AnalyzerService
	maxUploadMem int64
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewAnalyzerHandler creates a new analyzer handler
func NewAnalyzerHandler(service *services.AnalyzerService, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *AnalyzerHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyzerHandler{
		service:      service,
		maxUploadMem: 32 << 20,
		logger:       logger.With(slog.String("component", "analyzer_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the analyzer routes
func (h *AnalyzerHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/analyze", h.Analyze)
	r.Post("/analyze-batch", h.AnalyzeBatch)
	return r
}

// Analyze accepts a single document in the "file" form field and
// returns its classified analysis result.
func (h *AnalyzerHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	f, fh, err := h.formFile(r, ".json")
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	defer f.Close()

	result, err := h.service.AnalyzeDocument(r.Context(), f, fh.Filename, fh.Size)
	if err != nil {
		h.errorHandler.HandleError(w, r, classifyAnalyzerError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"success": true,
		"result":  result,
	})
}

// AnalyzeBatch accepts a ZIP archive of documents in the "file" form
// field and returns the bucketed batch result. Individual document
// failures are reported inside the result, not as request errors.
func (h *AnalyzerHandler) AnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	f, fh, err := h.formFile(r, ".zip")
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	defer f.Close()

	result, err := h.service.AnalyzeBatch(r.Context(), f, fh.Filename, fh.Size)
	if err != nil {
		h.errorHandler.HandleError(w, r, classifyAnalyzerError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"success": true,
		"result":  result,
	})
}

// formFile pulls the single "file" upload out of the request and
// checks its extension before any content is read.
func (h *AnalyzerHandler) formFile(r *http.Request, wantExt string) (multipart.File, *multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(h.maxUploadMem); err != nil {
		return nil, nil, apierrors.ValidationFailed(fmt.Errorf("invalid multipart form: %w", err))
	}
	f, fh, err := r.FormFile("file")
	if err != nil {
		return nil, nil, apierrors.ValidationFailed(fmt.Errorf("form field %q is required: %w", "file", err))
	}
	if !strings.EqualFold(ext(fh.Filename), wantExt) {
		f.Close()
		return nil, nil, apierrors.ValidationFailed(fmt.Errorf("file %s must have a %s extension", fh.Filename, wantExt))
	}
	return f, fh, nil
}

func ext(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i:]
	}
	return ""
}

// classifyAnalyzerError maps analyzer failures onto HTTP status codes.
// Size violations already carry their own status; everything else is a
// 422 with the reason.
func classifyAnalyzerError(err error) error {
	var apiErr *apierrors.APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}
	return apierrors.ExtractionFailed(err)
}
