// Package services contains the application services that orchestrate
// the processing pipeline and the document analyzer behind the
// transport layer.
package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	apierrors "nbslab/internal/errors"
	"nbslab/internal/extractor"
	"nbslab/internal/files"
	"nbslab/internal/renderer"
	"nbslab/internal/structurer"
	"nbslab/internal/validation"
	"nbslab/pkg/contracts/domain"
)

// AggregateFileName is the workbook every run produces
const AggregateFileName = "final_results.xlsx"

// BundleFileName is the zip containing all artifacts of a run
const BundleFileName = "reports.zip"

// Upload is one raw instrument export handed to the pipeline
type Upload struct {
	Name   string
	Size   int64
	Reader io.Reader
}

// ProcessOutcome describes a completed pipeline run
type ProcessOutcome struct {
	RunID            string                     `json:"run_id"`
	DateCode         string                     `json:"date_code"`
	UploadedBy       string                     `json:"uploaded_by"`
	PatientCount     int                        `json:"patient_count"`
	CompoundCount    int                        `json:"compound_count"`
	AggregatePath    string                     `json:"aggregate_path"`
	BundlePath       string                     `json:"bundle_path"`
	PatientReports   []string                   `json:"patient_reports"`
	ArtifactFailures []renderer.ArtifactFailure `json:"artifact_failures,omitempty"`
	ProcessedAt      time.Time                  `json:"processed_at"`
}

// ReportService runs the full pipeline: validate the export triplet,
// extract each file, merge, structure, render and bundle.
type ReportService struct {
	validator  *validation.FileValidator
	extractor  *extractor.Extractor
	structurer *structurer.Structurer
	renderer   *renderer.Renderer
	store      *files.Store
	maxRawSize int64
	logger     *slog.Logger
}

// NewReportService creates the pipeline service
func NewReportService(
	validator *validation.FileValidator,
	ext *extractor.Extractor,
	str *structurer.Structurer,
	rnd *renderer.Renderer,
	store *files.Store,
	maxRawSize int64,
	logger *slog.Logger,
) *ReportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportService{
		validator:  validator,
		extractor:  ext,
		structurer: str,
		renderer:   rnd,
		store:      store,
		maxRawSize: maxRawSize,
		logger:     logger.With(slog.String("component", "report_service")),
	}
}

// Process runs the pipeline end to end for one export triplet.
// declaredPatients of zero means the patient count is taken from the
// files themselves; a positive value is enforced against every file.
// uploadedBy defaults to "anonymous" when empty.
func (s *ReportService) Process(ctx context.Context, uploads []Upload, declaredPatients int, uploadedBy string) (*ProcessOutcome, error) {
	if uploadedBy == "" {
		uploadedBy = "anonymous"
	}

	names := make([]string, len(uploads))
	byName := make(map[string]Upload, len(uploads))
	for i, u := range uploads {
		if err := s.validator.ValidateExtension(u.Name, ".txt"); err != nil {
			return nil, apierrors.ValidationFailed(err)
		}
		if err := s.validator.ValidateFileSize(u.Name, u.Size, s.maxRawSize); err != nil {
			return nil, apierrors.ValidationFailed(err)
		}
		names[i] = u.Name
		byName[u.Name] = u
	}

	triplet, err := s.validator.ValidateTriplet(names)
	if err != nil {
		return nil, apierrors.ValidationFailed(err)
	}

	var dateCode string
	grids := make(map[domain.ExportType]*domain.RawSampleGrid, len(triplet))
	for _, exportType := range domain.AllExportTypes {
		exp := triplet[exportType]
		dateCode = exp.DateCode
		upload := byName[exp.Name]

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		grid, err := s.extractor.Extract(upload.Reader, exportType, declaredPatients)
		if err != nil {
			return nil, apierrors.ExtractionFailed(fmt.Errorf("%s: %w", exp.Name, err))
		}
		grids[exportType] = grid
	}

	merged, err := extractor.Merge(grids)
	if err != nil {
		return nil, apierrors.ExtractionFailed(err)
	}

	report, err := s.structurer.Build(merged, dateCode)
	if err != nil {
		return nil, apierrors.ExtractionFailed(err)
	}

	runDir, err := s.store.CreateRunDir(dateCode)
	if err != nil {
		return nil, apierrors.FileSystemError("run directory creation", err)
	}
	runID := filepath.Base(runDir)

	if err := s.renderer.RenderAggregate(report, filepath.Join(runDir, AggregateFileName)); err != nil {
		return nil, apierrors.RenderingFailed(err)
	}

	patientPaths, artifactFailures := s.renderer.RenderPatients(report, runDir)

	if err := s.store.Bundle(runDir, filepath.Join(runDir, BundleFileName)); err != nil {
		return nil, apierrors.FileSystemError("artifact bundling", err)
	}

	// Outcome paths are relative to the store so they can be handed
	// straight back to the download endpoint.
	patientRels := make([]string, len(patientPaths))
	for i, p := range patientPaths {
		patientRels[i] = filepath.Join(runID, filepath.Base(p))
	}

	outcome := &ProcessOutcome{
		RunID:            runID,
		DateCode:         dateCode,
		UploadedBy:       uploadedBy,
		PatientCount:     len(merged.PatientSamples()),
		CompoundCount:    len(merged.Compounds),
		AggregatePath:    filepath.Join(runID, AggregateFileName),
		BundlePath:       filepath.Join(runID, BundleFileName),
		PatientReports:   patientRels,
		ArtifactFailures: artifactFailures,
		ProcessedAt:      time.Now().UTC(),
	}

	s.logger.InfoContext(ctx, "pipeline run complete",
		slog.String("run_id", runID),
		slog.String("date_code", dateCode),
		slog.String("uploaded_by", uploadedBy),
		slog.Int("patients", outcome.PatientCount),
		slog.Int("compounds", outcome.CompoundCount),
		slog.Int("artifact_failures", len(artifactFailures)))
	return outcome, nil
}

// OpenArtifact opens a previously produced artifact by its path
// relative to the report store.
func (s *ReportService) OpenArtifact(rel string) (*os.File, error) {
	return s.store.Open(rel)
}
