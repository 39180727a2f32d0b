package services

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"nbslab/internal/analyzer"
	apierrors "nbslab/internal/errors"
	"nbslab/pkg/contracts/domain"
)

// AnalyzerService fronts the document analyzer with the upload size
// caps and archive handling the transport layer needs.
type AnalyzerService struct {
	analyzer        *analyzer.Analyzer
	maxDocumentSize int64
	maxArchiveSize  int64
	maxBatchEntries int
	logger          *slog.Logger
}

// NewAnalyzerService creates the analyzer service
func NewAnalyzerService(a *analyzer.Analyzer, maxDocumentSize, maxArchiveSize int64, maxBatchEntries int, logger *slog.Logger) *AnalyzerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyzerService{
		analyzer:        a,
		maxDocumentSize: maxDocumentSize,
		maxArchiveSize:  maxArchiveSize,
		maxBatchEntries: maxBatchEntries,
		logger:          logger.With(slog.String("component", "analyzer_service")),
	}
}

// AnalyzeDocument decodes and analyzes a single extracted-field
// document. size is the caller-reported upload size; zero means
// unknown and the stream is still capped while reading.
func (s *AnalyzerService) AnalyzeDocument(ctx context.Context, r io.Reader, name string, size int64) (*domain.AnalysisResult, error) {
	if size > s.maxDocumentSize {
		return nil, apierrors.NewWithDetails(413, "PAYLOAD_TOO_LARGE", "Document exceeds the size limit",
			fmt.Sprintf("document %s exceeds the %d byte limit", name, s.maxDocumentSize))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := analyzer.DecodeDocument(io.LimitReader(r, s.maxDocumentSize+1), s.analyzer.Validator())
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", name, err)
	}
	result := s.analyzer.Analyze(doc, name)
	return &result, nil
}

// AnalyzeBatch reads a ZIP archive of documents and analyzes every
// supported entry, isolating per-entry failures.
func (s *AnalyzerService) AnalyzeBatch(ctx context.Context, r io.Reader, name string, size int64) (*domain.BatchResult, error) {
	if size > s.maxArchiveSize {
		return nil, apierrors.NewWithDetails(413, "PAYLOAD_TOO_LARGE", "Archive exceeds the size limit",
			fmt.Sprintf("archive %s exceeds the %d byte limit", name, s.maxArchiveSize))
	}

	// zip needs random access, so the upload is buffered in memory.
	// The archive cap keeps this bounded.
	buf, err := io.ReadAll(io.LimitReader(r, s.maxArchiveSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read archive %s: %w", name, err)
	}
	if int64(len(buf)) > s.maxArchiveSize {
		return nil, apierrors.NewWithDetails(413, "PAYLOAD_TOO_LARGE", "Archive exceeds the size limit",
			fmt.Sprintf("archive %s exceeds the %d byte limit", name, s.maxArchiveSize))
	}

	zr, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return nil, fmt.Errorf("archive %s is not a valid zip file: %w", name, err)
	}

	s.logger.InfoContext(ctx, "batch analysis started",
		slog.String("archive", name),
		slog.Int("entries", len(zr.File)))
	return s.analyzer.AnalyzeArchive(ctx, zr, s.maxBatchEntries)
}
