package analyzer

import (
	"archive/zip"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"golang.org/x/sync/errgroup"

	"nbslab/pkg/contracts/domain"
)

// batchConcurrency bounds the number of archive entries analyzed at
// once. Entries are independent, so fan-out is safe; the bound keeps
// memory flat on large archives.
const batchConcurrency = 4

// supportedDocumentExt lists the archive entry extensions the batch
// path understands. Anything else is skipped, not failed.
var supportedDocumentExt = map[string]bool{
	".json": true,
}

// itemOutcome is one archive entry's result: exactly one of result or
// err is set.
type itemOutcome struct {
	path   string
	result *domain.AnalysisResult
	err    error
}

// AnalyzeArchive processes every supported document inside the archive.
// Each entry is analyzed independently; an entry that fails to decode
// or classify is recorded under failed_reports and never aborts the
// rest. maxEntries caps the batch (0 means no cap).
func (a *Analyzer) AnalyzeArchive(ctx context.Context, zr *zip.Reader, maxEntries int) (*domain.BatchResult, error) {
	var entries []*zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if strings.HasPrefix(path.Base(f.Name), ".") {
			continue
		}
		if !supportedDocumentExt[strings.ToLower(path.Ext(f.Name))] {
			a.logger.Debug("skipping unsupported archive entry", slog.String("entry", f.Name))
			continue
		}
		entries = append(entries, f)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no supported documents found in archive")
	}
	if maxEntries > 0 && len(entries) > maxEntries {
		return nil, fmt.Errorf("too many documents in archive (%d), maximum is %d", len(entries), maxEntries)
	}

	outcomes := make([]itemOutcome, len(entries))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			outcomes[i] = a.analyzeEntry(entry)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := reduce(outcomes)
	a.logger.Info("batch analysis complete",
		slog.Int("total", result.Total),
		slog.Int("successful", result.Successful),
		slog.Int("failed", result.Failed),
		slog.Int("abnormal", result.Abnormal))
	return result, nil
}

// analyzeEntry opens, decodes and analyzes one archive entry, folding
// any error into the outcome instead of propagating it.
func (a *Analyzer) analyzeEntry(entry *zip.File) itemOutcome {
	out := itemOutcome{path: entry.Name}

	rc, err := entry.Open()
	if err != nil {
		out.err = fmt.Errorf("failed to open archive entry: %w", err)
		return out
	}
	defer rc.Close()

	doc, err := DecodeDocument(rc, a.validate)
	if err != nil {
		out.err = err
		return out
	}
	res := a.Analyze(doc, entry.Name)
	out.result = &res
	return out
}

// reduce folds per-entry outcomes into the bucketed batch result. The
// counting happens in one place so total == successful + failed and
// successful == normal + abnormal hold by construction, not convention.
func reduce(outcomes []itemOutcome) *domain.BatchResult {
	result := &domain.BatchResult{
		NormalReports:   []domain.AnalysisResult{},
		AbnormalReports: []domain.AnalysisResult{},
		FailedReports:   []domain.FailedReport{},
	}
	for _, o := range outcomes {
		result.Total++
		switch {
		case o.err != nil:
			result.Failed++
			result.FailedReports = append(result.FailedReports, domain.FailedReport{
				Path:  o.path,
				Error: o.err.Error(),
			})
		case o.result.Summary.Status == domain.StatusAbnormal:
			result.Successful++
			result.Abnormal++
			result.AbnormalReports = append(result.AbnormalReports, *o.result)
		default:
			result.Successful++
			result.Normal++
			result.NormalReports = append(result.NormalReports, *o.result)
		}
	}
	return result
}
