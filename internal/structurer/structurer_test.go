package structurer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nbslab/internal/classifier"
	"nbslab/internal/reference"
	"nbslab/pkg/contracts/domain"
)

func testStructurer(t *testing.T) *Structurer {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ranges.yaml")
	content := []byte(`
patient:
  Phe: {lower: 10, upper: 100}
control_1:
  Phe: {lower: 50, upper: 60}
control_2:
  Phe: {lower: 70, upper: 80}
`)
	require.NoError(t, os.WriteFile(path, content, 0644))
	table, err := reference.LoadTable(path)
	require.NoError(t, err)
	return New(classifier.New(table), nil)
}

func testGrid() *domain.RawSampleGrid {
	return &domain.RawSampleGrid{
		Type:      domain.ExportAA,
		Compounds: []string{"Phe"},
		Samples: []domain.Sample{
			{Name: "Sample 1", Role: domain.RoleControl1, Ordinal: 1},
			{Name: "Sample 2", Role: domain.RoleControl1, Ordinal: 2},
			{Name: "Sample 3", Role: domain.RoleControl2, Ordinal: 3},
			{Name: "Sample 4", Role: domain.RoleControl2, Ordinal: 4},
			{Name: "Baby A", Role: domain.RolePatient, Ordinal: 5},
			{Name: "Baby B", Role: domain.RolePatient, Ordinal: 6},
		},
		Values: [][]float64{{52}, {58}, {72}, {78}, {55}, {400}},
	}
}

func rowKinds(rows []Row) []RowKind {
	kinds := make([]RowKind, len(rows))
	for i, r := range rows {
		kinds[i] = r.Kind
	}
	return kinds
}

func TestBuild(t *testing.T) {
	s := testStructurer(t)

	report, err := s.Build(testGrid(), "01072024")
	require.NoError(t, err)
	assert.Equal(t, "01072024", report.DateCode)

	t.Run("control table layout", func(t *testing.T) {
		// Controls, separator, mean, separator, then the two limit rows.
		assert.Equal(t, []RowKind{
			RowControl, RowControl, RowBlank, RowMean, RowBlank, RowLowerLimit, RowUpperLimit,
		}, rowKinds(report.Control1.Rows))
		assert.Equal(t, "Control I", report.Control1.Title)
		assert.Equal(t, domain.TierControl1, report.Control1.Tier)
	})

	t.Run("control mean", func(t *testing.T) {
		var mean *Row
		for i := range report.Control1.Rows {
			if report.Control1.Rows[i].Kind == RowMean {
				mean = &report.Control1.Rows[i]
			}
		}
		require.NotNil(t, mean)
		require.NotNil(t, mean.Cells[0].Value)
		assert.InDelta(t, 55.0, *mean.Cells[0].Value, 1e-9) // (52+58)/2
		require.NotNil(t, mean.Cells[0].Classification)
		assert.Equal(t, domain.VerdictNormal, mean.Cells[0].Classification.Verdict)
	})

	t.Run("control limits from the reference table", func(t *testing.T) {
		rows := report.Control2.Rows
		lower, upper := rows[len(rows)-2], rows[len(rows)-1]
		assert.Equal(t, RowLowerLimit, lower.Kind)
		assert.Equal(t, RowUpperLimit, upper.Kind)
		assert.Equal(t, "70", lower.Cells[0].Text)
		assert.Equal(t, "80", upper.Cells[0].Text)
	})

	t.Run("patient table layout", func(t *testing.T) {
		assert.Equal(t, []RowKind{
			RowReference, RowBlank, RowPatient, RowPatient,
		}, rowKinds(report.Patients.Rows))

		ref := report.Patients.Rows[0]
		assert.Equal(t, "Reference Range", ref.Label)
		assert.Equal(t, "10 - 100", ref.Cells[0].Text)
		assert.Nil(t, ref.Cells[0].Classification)
	})

	t.Run("patients keep instrument order and classification", func(t *testing.T) {
		babyA := report.Patients.Rows[2]
		babyB := report.Patients.Rows[3]
		assert.Equal(t, "Baby A", babyA.Label)
		assert.Equal(t, "Baby B", babyB.Label)

		require.NotNil(t, babyA.Cells[0].Classification)
		assert.Equal(t, domain.VerdictNormal, babyA.Cells[0].Classification.Verdict)

		// 400 is beyond 1.5x the upper bound of 100.
		require.NotNil(t, babyB.Cells[0].Classification)
		assert.Equal(t, domain.VerdictCritical, babyB.Cells[0].Classification.Verdict)
		assert.Equal(t, domain.ColorRed, babyB.Cells[0].Classification.Color)
	})
}

func TestBuildErrors(t *testing.T) {
	s := testStructurer(t)

	t.Run("bad shape", func(t *testing.T) {
		g := testGrid()
		g.Values = g.Values[:3]
		_, err := s.Build(g, "01072024")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "value rows")
	})

	t.Run("no patients", func(t *testing.T) {
		g := testGrid()
		for i := range g.Samples {
			if g.Samples[i].Role == domain.RolePatient {
				g.Samples[i].Role = domain.RoleControl2
			}
		}
		_, err := s.Build(g, "01072024")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no patient samples")
	})

	t.Run("missing control tier", func(t *testing.T) {
		g := testGrid()
		for i := range g.Samples {
			if g.Samples[i].Role == domain.RoleControl2 {
				g.Samples[i].Role = domain.RoleControl1
			}
		}
		_, err := s.Build(g, "01072024")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "control blocks missing")
	})
}

func TestFormatBound(t *testing.T) {
	assert.Equal(t, "10", formatBound(10))
	assert.Equal(t, "0.01", formatBound(0.01))
	assert.Equal(t, "1142", formatBound(1142))
	assert.Equal(t, "0.5", formatBound(0.5))
}
