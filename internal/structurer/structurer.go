// Package structurer joins extracted grids with classifier output into
// annotated tables ready for rendering: every numeric cell carries its
// classification, reference bounds travel with the data as extra rows,
// and blank separator rows improve readability without changing any
// data semantics. Row and column ordering is always preserved; the
// structurer never re-sorts subjects.
package structurer

import (
	"fmt"
	"log/slog"
	"strconv"

	"nbslab/internal/classifier"
	"nbslab/pkg/contracts/domain"
)

// RowKind tells the renderer what a structured row represents
type RowKind string

const (
	RowControl    RowKind = "control"
	RowMean       RowKind = "mean"
	RowLowerLimit RowKind = "lower_limit"
	RowUpperLimit RowKind = "upper_limit"
	RowReference  RowKind = "reference"
	RowPatient    RowKind = "patient"
	RowBlank      RowKind = "blank"
)

// Cell is one structured table cell. Numeric cells carry a value and a
// classification; annotation cells carry display text only.
type Cell struct {
	Value          *float64
	Text           string
	Classification *domain.MeasurementClassification
}

// Row is one structured table row
type Row struct {
	Label  string
	Kind   RowKind
	Sample *domain.Sample
	Cells  []Cell
}

// Table is one annotated block of the structured report
type Table struct {
	Title     string
	Tier      domain.Tier
	Compounds []string
	Rows      []Row
}

// Report is the full structured output for one processing run
type Report struct {
	DateCode string
	Control1 Table
	Control2 Table
	Patients Table
}

// Structurer builds annotated tables from merged grids
type Structurer struct {
	cls    *classifier.Classifier
	logger *slog.Logger
}

// New creates a structurer backed by the shared classifier
func New(cls *classifier.Classifier, logger *slog.Logger) *Structurer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Structurer{cls: cls, logger: logger}
}

// Build structures the merged grid into the three report tables
func (s *Structurer) Build(grid *domain.RawSampleGrid, dateCode string) (*Report, error) {
	if err := grid.CheckShape(); err != nil {
		return nil, fmt.Errorf("structurer: %w", err)
	}

	c1 := grid.ControlSamples(domain.RoleControl1)
	c2 := grid.ControlSamples(domain.RoleControl2)
	patients := grid.PatientSamples()
	if len(c1) == 0 || len(c2) == 0 {
		return nil, fmt.Errorf("structurer: control blocks missing (%d tier I, %d tier II)", len(c1), len(c2))
	}
	if len(patients) == 0 {
		return nil, fmt.Errorf("structurer: no patient samples")
	}

	report := &Report{
		DateCode: dateCode,
		Control1: s.controlTable(grid, c1, "Control I", domain.TierControl1),
		Control2: s.controlTable(grid, c2, "Control II", domain.TierControl2),
		Patients: s.patientTable(grid, patients),
	}

	s.logger.Info("structured report built",
		slog.String("date_code", dateCode),
		slog.Int("compounds", len(grid.Compounds)),
		slog.Int("patients", len(patients)))
	return report, nil
}

// controlTable lays out one control tier: the control rows, a blank
// separator, their mean, another separator, then the lower and upper
// control limits pulled from the reference table.
func (s *Structurer) controlTable(grid *domain.RawSampleGrid, samples []domain.Sample, title string, tier domain.Tier) Table {
	t := Table{Title: title, Tier: tier, Compounds: grid.Compounds}

	sums := make([]float64, len(grid.Compounds))
	for _, smp := range samples {
		smp := smp
		row := Row{Label: title, Kind: RowControl, Sample: &smp, Cells: make([]Cell, len(grid.Compounds))}
		for c, compound := range grid.Compounds {
			v := grid.Value(smp.Ordinal-1, c)
			sums[c] += v
			row.Cells[c] = s.numericCell(compound, smp.Name, tier, v)
		}
		t.Rows = append(t.Rows, row)
	}

	t.Rows = append(t.Rows, s.blankRow(len(grid.Compounds)))

	mean := Row{Label: "Mean Values", Kind: RowMean, Cells: make([]Cell, len(grid.Compounds))}
	for c, compound := range grid.Compounds {
		mean.Cells[c] = s.numericCell(compound, "Mean Values", tier, sums[c]/float64(len(samples)))
	}
	t.Rows = append(t.Rows, mean)

	t.Rows = append(t.Rows, s.blankRow(len(grid.Compounds)))

	lower := Row{Label: "Lower Control Limit", Kind: RowLowerLimit, Cells: make([]Cell, len(grid.Compounds))}
	upper := Row{Label: "Upper Control Limit", Kind: RowUpperLimit, Cells: make([]Cell, len(grid.Compounds))}
	for c, compound := range grid.Compounds {
		if r, ok := s.cls.Table().Lookup(compound, tier); ok {
			lo, up := r.Lower, r.Upper
			lower.Cells[c] = Cell{Value: &lo, Text: formatBound(lo)}
			upper.Cells[c] = Cell{Value: &up, Text: formatBound(up)}
		} else {
			lower.Cells[c] = Cell{}
			upper.Cells[c] = Cell{}
		}
	}
	t.Rows = append(t.Rows, lower, upper)
	return t
}

// patientTable lays out the patient block: the combined reference range
// row first, a blank separator, then every patient in instrument order.
func (s *Structurer) patientTable(grid *domain.RawSampleGrid, patients []domain.Sample) Table {
	t := Table{Title: "Patients", Tier: domain.TierPatient, Compounds: grid.Compounds}

	ref := Row{Label: "Reference Range", Kind: RowReference, Cells: make([]Cell, len(grid.Compounds))}
	for c, compound := range grid.Compounds {
		if r, ok := s.cls.Table().Lookup(compound, domain.TierPatient); ok {
			ref.Cells[c] = Cell{Text: formatBound(r.Lower) + " - " + formatBound(r.Upper)}
		} else {
			ref.Cells[c] = Cell{}
		}
	}
	t.Rows = append(t.Rows, ref, s.blankRow(len(grid.Compounds)))

	for _, smp := range patients {
		smp := smp
		row := Row{Label: smp.Name, Kind: RowPatient, Sample: &smp, Cells: make([]Cell, len(grid.Compounds))}
		for c, compound := range grid.Compounds {
			row.Cells[c] = s.numericCell(compound, smp.Name, domain.TierPatient, grid.Value(smp.Ordinal-1, c))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func (s *Structurer) numericCell(compound, sample string, tier domain.Tier, v float64) Cell {
	val := v
	mc := s.cls.Classify(compound, tier, &val)
	mc.Sample = sample
	return Cell{Value: &val, Text: formatBound(v), Classification: &mc}
}

func (s *Structurer) blankRow(width int) Row {
	return Row{Kind: RowBlank, Cells: make([]Cell, width)}
}

// formatBound renders a number the way the lab sheets print it, without
// trailing zeros.
func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
