// Package renderer projects structured report tables into Excel
// workbooks: one aggregate Final_Results workbook covering controls and
// every patient with color-coded cells, plus one workbook per patient
// built from a fixed template. Rendering is a read-only projection of
// the structured tables; a failure on one subject's artifact never
// blocks the others or the aggregate.
package renderer

import (
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"nbslab/internal/structurer"
	"nbslab/pkg/contracts/domain"
)

const (
	aggregateSheet = "Final_Results"

	// Fill colors matching the lab's reviewing conventions
	fillGreen  = "C6EFCE" // normal
	fillYellow = "FFFF00" // out of range
	fillRed    = "FFC7CE" // critical, also bold

	// First block header row and the blank rows kept between blocks.
	// The later block offsets depend on the control batch size, so they
	// are derived from the actual table heights in blockRows.
	firstBlockRow = 1
	blockGap      = 2
)

// blockRows returns the header row of each aggregate block. A block
// spans its header row plus len(Rows) data rows; the next block starts
// blockGap rows below so a larger control batch never overwrites the
// following block.
func blockRows(report *structurer.Report) (control1, control2, patients int) {
	control1 = firstBlockRow
	control2 = control1 + 1 + len(report.Control1.Rows) + blockGap
	patients = control2 + 1 + len(report.Control2.Rows) + blockGap
	return control1, control2, patients
}

// Renderer emits workbook artifacts from structured tables
type Renderer struct {
	templatePath string
	logger       *slog.Logger
}

// New creates a renderer. templatePath points at the fixed per-patient
// template workbook; it is injected so tests can substitute a fixture.
func New(templatePath string, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{templatePath: templatePath, logger: logger}
}

// cellStyles caches the style IDs registered on one workbook
type cellStyles struct {
	green  int
	yellow int
	red    int
}

func newCellStyles(f *excelize.File) (*cellStyles, error) {
	green, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{fillGreen}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register green style: %w", err)
	}
	yellow, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{fillYellow}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register yellow style: %w", err)
	}
	red, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{fillRed}},
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register red style: %w", err)
	}
	return &cellStyles{green: green, yellow: yellow, red: red}, nil
}

// RenderAggregate writes the aggregate workbook to outPath. The
// per-patient template is used as the base workbook when available so
// the reference sheets travel with the results; a missing template
// degrades to a bare workbook rather than failing the aggregate.
func (r *Renderer) RenderAggregate(report *structurer.Report, outPath string) error {
	f, err := excelize.OpenFile(r.templatePath)
	if err != nil {
		r.logger.Warn("template unavailable for aggregate, using empty workbook",
			slog.String("template", r.templatePath),
			slog.String("error", err.Error()))
		f = excelize.NewFile()
	}
	defer f.Close()

	if _, err := f.NewSheet(aggregateSheet); err != nil {
		return fmt.Errorf("failed to create %s sheet: %w", aggregateSheet, err)
	}

	styles, err := newCellStyles(f)
	if err != nil {
		return err
	}

	control1Row, control2Row, patientsRow := blockRows(report)
	if err := r.writeTable(f, styles, &report.Control1, control1Row); err != nil {
		return err
	}
	if err := r.writeTable(f, styles, &report.Control2, control2Row); err != nil {
		return err
	}
	if err := r.writeTable(f, styles, &report.Patients, patientsRow); err != nil {
		return err
	}

	if err := f.SaveAs(outPath); err != nil {
		return fmt.Errorf("failed to save aggregate workbook: %w", err)
	}
	r.logger.Info("aggregate workbook rendered",
		slog.String("path", outPath),
		slog.String("date_code", report.DateCode))
	return nil
}

// writeTable writes one structured table starting at startRow (1-based).
// Layout per sheet row: label column, one spacer column, then the
// compound columns in table order.
func (r *Renderer) writeTable(f *excelize.File, styles *cellStyles, table *structurer.Table, startRow int) error {
	// Header row: title, spacer, compound names.
	if err := setCell(f, 1, startRow, table.Title); err != nil {
		return err
	}
	for c, compound := range table.Compounds {
		if err := setCell(f, c+3, startRow, compound); err != nil {
			return err
		}
	}

	for i, row := range table.Rows {
		sheetRow := startRow + 1 + i
		if row.Kind == structurer.RowBlank {
			continue
		}
		if err := setCell(f, 1, sheetRow, row.Label); err != nil {
			return err
		}
		for c, cell := range row.Cells {
			col := c + 3
			switch {
			case cell.Value != nil:
				if err := setCell(f, col, sheetRow, *cell.Value); err != nil {
					return err
				}
			case cell.Text != "":
				if err := setCell(f, col, sheetRow, cell.Text); err != nil {
					return err
				}
			default:
				continue
			}
			if cell.Classification != nil {
				if err := r.styleCell(f, styles, col, sheetRow, cell.Classification.Color); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (r *Renderer) styleCell(f *excelize.File, styles *cellStyles, col, row int, color domain.Color) error {
	var styleID int
	switch color {
	case domain.ColorGreen:
		styleID = styles.green
	case domain.ColorYellow:
		styleID = styles.yellow
	case domain.ColorRed:
		styleID = styles.red
	default:
		return nil
	}
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("invalid cell coordinates (%d,%d): %w", col, row, err)
	}
	if err := f.SetCellStyle(aggregateSheet, ref, ref, styleID); err != nil {
		return fmt.Errorf("failed to style cell %s: %w", ref, err)
	}
	return nil
}

func setCell(f *excelize.File, col, row int, value interface{}) error {
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("invalid cell coordinates (%d,%d): %w", col, row, err)
	}
	if err := f.SetCellValue(aggregateSheet, ref, value); err != nil {
		return fmt.Errorf("failed to set cell %s: %w", ref, err)
	}
	return nil
}
