package renderer

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"nbslab/internal/files"
	"nbslab/internal/structurer"
)

// Template cell layout for per-patient workbooks. The first sheet
// carries the printable report with the patient name in two header
// cells and the measurement column; the second sheet is renamed after
// the patient.
const (
	templateSheet1 = "Sheet1"
	templateSheet2 = "Sheet2"
	nameCellLeft   = "B3"
	nameCellRight  = "K3"
	valueColumn    = 11 // column K
	valueStartRow  = 4
)

// ArtifactFailure records one per-subject artifact that could not be
// rendered. Sibling artifacts are unaffected.
type ArtifactFailure struct {
	Subject string `json:"subject"`
	Ordinal int    `json:"ordinal"`
	Error   string `json:"error"`
}

// RenderPatients writes one workbook per patient row into outDir and
// returns the rendered paths plus the isolated failures. Artifact names
// embed the sample ordinal so two patients with the same display name
// cannot collide.
func (r *Renderer) RenderPatients(report *structurer.Report, outDir string) ([]string, []ArtifactFailure) {
	var rendered []string
	var failures []ArtifactFailure

	for _, row := range report.Patients.Rows {
		if row.Kind != structurer.RowPatient || row.Sample == nil {
			continue
		}
		name := fmt.Sprintf("%02d_%s.xlsx", row.Sample.Ordinal, files.SanitizeName(row.Sample.Name))
		path := filepath.Join(outDir, name)
		if err := r.renderPatient(&row, path); err != nil {
			r.logger.Error("patient artifact failed",
				slog.String("subject", row.Sample.Name),
				slog.Int("ordinal", row.Sample.Ordinal),
				slog.String("error", err.Error()))
			failures = append(failures, ArtifactFailure{
				Subject: row.Sample.Name,
				Ordinal: row.Sample.Ordinal,
				Error:   err.Error(),
			})
			continue
		}
		rendered = append(rendered, path)
	}

	r.logger.Info("patient artifacts rendered",
		slog.Int("rendered", len(rendered)),
		slog.Int("failed", len(failures)))
	return rendered, failures
}

// renderPatient fills a fresh copy of the template with one patient's
// measurements and saves it. The template is reopened per patient so a
// previous patient's content can never leak into the next workbook.
func (r *Renderer) renderPatient(row *structurer.Row, outPath string) error {
	f, err := excelize.OpenFile(r.templatePath)
	if err != nil {
		return fmt.Errorf("failed to open template %s: %w", r.templatePath, err)
	}
	defer f.Close()

	if err := f.SetCellValue(templateSheet1, nameCellLeft, row.Sample.Name); err != nil {
		return fmt.Errorf("failed to write patient name: %w", err)
	}
	if err := f.SetCellValue(templateSheet1, nameCellRight, row.Sample.Name); err != nil {
		return fmt.Errorf("failed to write patient name: %w", err)
	}

	for i, cell := range row.Cells {
		if cell.Value == nil {
			continue
		}
		ref, err := excelize.CoordinatesToCellName(valueColumn, valueStartRow+i)
		if err != nil {
			return fmt.Errorf("invalid value cell for measurement %d: %w", i, err)
		}
		if err := f.SetCellValue(templateSheet1, ref, *cell.Value); err != nil {
			return fmt.Errorf("failed to write measurement %d: %w", i, err)
		}
	}

	if idx, err := f.GetSheetIndex(templateSheet2); err == nil && idx >= 0 {
		if err := f.SetSheetName(templateSheet2, files.SanitizeName(row.Sample.Name)); err != nil {
			return fmt.Errorf("failed to rename result sheet: %w", err)
		}
	}

	if err := f.SaveAs(outPath); err != nil {
		return fmt.Errorf("failed to save patient workbook: %w", err)
	}
	return nil
}
