package domain

import "fmt"

// SampleRole distinguishes patient rows from instrument quality controls
type SampleRole string

const (
	RolePatient  SampleRole = "patient"
	RoleControl1 SampleRole = "control_1"
	RoleControl2 SampleRole = "control_2"
)

// Sample identifies one subject column within a raw export
type Sample struct {
	Name    string     `json:"name"`
	Role    SampleRole `json:"role"`
	Ordinal int        `json:"ordinal"` // 1-based position as printed by the instrument
}

// RawSampleGrid is the numeric matrix extracted from one export file,
// addressed as Values[sample][compound]. It is created fully populated
// and treated as read-only afterwards.
type RawSampleGrid struct {
	Type      ExportType  `json:"type"`
	Compounds []string    `json:"compounds"`
	Samples   []Sample    `json:"samples"`
	Values    [][]float64 `json:"values"`
}

// Value returns the scaled measurement for the given sample and compound
// indices. Callers index within the validated shape.
func (g *RawSampleGrid) Value(sample, compound int) float64 {
	return g.Values[sample][compound]
}

// CheckShape verifies the matrix is exactly sampleCount x compoundCount.
// Extraction calls this before and after the reshape so an index slip is
// caught instead of silently corrupting downstream classifications.
func (g *RawSampleGrid) CheckShape() error {
	if len(g.Values) != len(g.Samples) {
		return fmt.Errorf("%s grid: %d value rows for %d samples", g.Type, len(g.Values), len(g.Samples))
	}
	for i, row := range g.Values {
		if len(row) != len(g.Compounds) {
			return fmt.Errorf("%s grid: row %d has %d values for %d compounds", g.Type, i, len(row), len(g.Compounds))
		}
	}
	return nil
}

// PatientSamples returns the samples holding the patient role, preserving
// instrument order.
func (g *RawSampleGrid) PatientSamples() []Sample {
	var out []Sample
	for _, s := range g.Samples {
		if s.Role == RolePatient {
			out = append(out, s)
		}
	}
	return out
}

// ControlSamples returns the samples for the requested control role
func (g *RawSampleGrid) ControlSamples(role SampleRole) []Sample {
	var out []Sample
	for _, s := range g.Samples {
		if s.Role == role {
			out = append(out, s)
		}
	}
	return out
}
