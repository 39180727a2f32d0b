// Package http contains the HTTP transport layer: chi routers and
// handlers for the processing pipeline and the document analyzer.
package http

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "nbslab/internal/errors"
	"nbslab/internal/services"
)

// rawFileFields are the multipart form fields carrying the three
// instrument exports. Exactly one file per field.
var rawFileFields = []string{"file_aa", "file_ac", "file_ac_ext"}

// ReportHandler handles pipeline processing and artifact downloads
type ReportHandler struct {
	service      *services.ReportService
	maxUploadMem int64
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewReportHandler creates a new report handler
func NewReportHandler(service *services.ReportService, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ReportHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportHandler{
		service:      service,
		maxUploadMem: 32 << 20,
		logger:       logger.With(slog.String("component", "report_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the report routes
func (h *ReportHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/process", h.Process)
	r.Get("/download/*", h.Download)
	return r
}

// Process accepts the three raw export files as multipart form data and
// runs the full pipeline. Optional form values: patient_count (enforced
// against the files when positive) and uploaded_by.
func (h *ReportHandler) Process(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxUploadMem); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ValidationFailed(fmt.Errorf("invalid multipart form: %w", err)))
		return
	}
	defer r.MultipartForm.RemoveAll()

	uploads, closers, err := collectUploads(r.MultipartForm)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ValidationFailed(err))
		return
	}
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	declaredPatients := 0
	if raw := r.FormValue("patient_count"); raw != "" {
		declaredPatients, err = strconv.Atoi(raw)
		if err != nil || declaredPatients < 0 {
			h.errorHandler.HandleError(w, r, apierrors.ValidationFailed(fmt.Errorf("invalid patient_count %q", raw)))
			return
		}
	}

	outcome, err := h.service.Process(r.Context(), uploads, declaredPatients, r.FormValue("uploaded_by"))
	if err != nil {
		h.errorHandler.HandleError(w, r, classifyPipelineError(err))
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]interface{}{
		"success": true,
		"result":  outcome,
	})
}

// Download streams a previously rendered artifact. The wildcard carries
// the store-relative path ({runID}/{file}) handed out in ProcessOutcome.
func (h *ReportHandler) Download(w http.ResponseWriter, r *http.Request) {
	rel, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil || rel == "" {
		h.errorHandler.HandleError(w, r, apierrors.ErrMissingParameter)
		return
	}

	f, err := h.service.OpenArtifact(rel)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.NotFoundError("artifact "+rel))
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.FileSystemError("artifact stat", err))
		return
	}

	name := filepath.Base(rel)
	w.Header().Set("Content-Type", contentTypeFor(name))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, stat.ModTime(), f)
}

// classifyPipelineError maps pipeline failures onto the error taxonomy:
// anything the validator rejects is a 400, extraction and structuring
// problems are 422, rendering and filesystem trouble are 500.
func classifyPipelineError(err error) error {
	var apiErr *apierrors.APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}
	return apierrors.ExtractionFailed(err)
}

// collectUploads pulls exactly one file out of each required form field
func collectUploads(form *multipart.Form) ([]services.Upload, []multipart.File, error) {
	uploads := make([]services.Upload, 0, len(rawFileFields))
	var closers []multipart.File
	for _, field := range rawFileFields {
		headers := form.File[field]
		if len(headers) != 1 {
			return nil, closers, fmt.Errorf("form field %q must carry exactly one file, got %d", field, len(headers))
		}
		fh := headers[0]
		f, err := fh.Open()
		if err != nil {
			return nil, closers, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err)
		}
		closers = append(closers, f)
		uploads = append(uploads, services.Upload{
			Name:   fh.Filename,
			Size:   fh.Size,
			Reader: f,
		})
	}
	return uploads, closers, nil
}

func contentTypeFor(name string) string {
	switch filepath.Ext(name) {
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".zip":
		return "application/zip"
	}
	return "application/octet-stream"
}
