// Package extractor parses raw NBS instrument exports into per-sample
// numeric grids. Each export is a tab-separated text dump: compound
// header lines announce a compound, then one data line per sample with
// the instrument response in the last column. The flat response stream
// is therefore compound-major, and the extractor reindexes it into
// (sample, compound) addressing with the arithmetic spelled out rather
// than relying on an implicit reshape.
package extractor

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"nbslab/internal/reference"
	"nbslab/pkg/contracts/domain"
)

// controlLabelPattern matches the sample-text field the instrument
// writes for quality-control wells (CONTROL1, CONTROL2, ...).
var controlLabelPattern = regexp.MustCompile(`^CONTROL\d+$`)

// Extractor turns raw export files into scaled sample grids
type Extractor struct {
	table        *reference.Table
	logger       *slog.Logger
	controlCount int // leading control samples per batch, split evenly over tiers I and II
}

// New creates an extractor. controlCount must be even and positive; the
// first half of the control block is control tier I, the second half
// tier II.
func New(table *reference.Table, logger *slog.Logger, controlCount int) (*Extractor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if controlCount <= 0 || controlCount%2 != 0 {
		return nil, fmt.Errorf("control count must be a positive even number, got %d", controlCount)
	}
	return &Extractor{table: table, logger: logger, controlCount: controlCount}, nil
}

// ControlCount returns the configured number of leading control samples
func (e *Extractor) ControlCount() int {
	return e.controlCount
}

// Extract parses one raw export. declaredPatients is the expected number
// of patient samples (excluding controls); zero means auto-detect. The
// whole export is rejected on a missing control block, a subject-count
// mismatch, or a non-numeric token where a measurement is expected.
func (e *Extractor) Extract(r io.Reader, export domain.ExportType, declaredPatients int) (*domain.RawSampleGrid, error) {
	if !export.Valid() {
		return nil, fmt.Errorf("unknown export type %q", export)
	}

	scan, err := e.scan(r, export)
	if err != nil {
		return nil, err
	}

	sampleCount := len(scan.names)
	if scan.maxOrdinal != sampleCount {
		return nil, fmt.Errorf("%s export: %d distinct samples but ordinals run to %d", export, sampleCount, scan.maxOrdinal)
	}
	if sampleCount <= e.controlCount {
		return nil, fmt.Errorf("%s export: only %d samples, need the %d control samples plus at least one patient",
			export, sampleCount, e.controlCount)
	}
	if scan.controlsSeen < e.controlCount {
		return nil, fmt.Errorf("%s export: expected %d leading control samples, found %d", export, e.controlCount, scan.controlsSeen)
	}
	if declaredPatients > 0 && sampleCount-e.controlCount != declaredPatients {
		return nil, fmt.Errorf("%s export: patient count mismatch, expected %d, found %d",
			export, declaredPatients, sampleCount-e.controlCount)
	}

	// Shape check on the flat stream before any reindexing.
	if len(scan.responses) != len(scan.compounds)*sampleCount {
		return nil, fmt.Errorf("%s export: %d response values, expected %d compounds x %d samples = %d",
			export, len(scan.responses), len(scan.compounds), sampleCount, len(scan.compounds)*sampleCount)
	}

	scaled, err := e.applyFactors(export, scan.compounds, scan.responses, sampleCount)
	if err != nil {
		return nil, err
	}

	grid := &domain.RawSampleGrid{
		Type:      export,
		Compounds: scan.compounds,
		Samples:   e.assignRoles(scan.names),
		Values:    make([][]float64, sampleCount),
	}
	// Flat index k holds (compound = k / sampleCount, sample = k % sampleCount):
	// the file lists every sample for one compound before moving to the next.
	for s := 0; s < sampleCount; s++ {
		row := make([]float64, len(scan.compounds))
		for c := range scan.compounds {
			row[c] = scaled[c*sampleCount+s]
		}
		grid.Values[s] = row
	}
	if err := grid.CheckShape(); err != nil {
		return nil, fmt.Errorf("%s export: %w", export, err)
	}

	e.logger.Info("export extracted",
		slog.String("type", string(export)),
		slog.Int("compounds", len(scan.compounds)),
		slog.Int("samples", sampleCount),
		slog.Int("patients", sampleCount-e.controlCount))
	return grid, nil
}

// scanResult accumulates one pass over the raw lines
type scanResult struct {
	compounds    []string
	names        []string
	responses    []string
	maxOrdinal   int
	controlsSeen int
}

func (e *Extractor) scan(r io.Reader, export domain.ExportType) (*scanResult, error) {
	res := &scanResult{}
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if strings.HasPrefix(trimmed, "Compound") {
			if stopMarker(trimmed, export) {
				break
			}
			parts := strings.SplitN(line, "  ", 3)
			if len(parts) < 2 {
				return nil, fmt.Errorf("%s export: malformed compound header: %q", export, trimmed)
			}
			res.compounds = append(res.compounds, strings.TrimSpace(parts[1]))
			continue
		}

		if !unicode.IsDigit(rune(trimmed[0])) {
			continue
		}

		parts := strings.Split(line, "\t")
		if len(parts) < 3 {
			return nil, fmt.Errorf("%s export: malformed data line: %q", export, trimmed)
		}
		ordinal, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("%s export: invalid sample ordinal %q", export, parts[0])
		}

		// The first controlCount wells of every batch must be the
		// instrument's quality controls.
		if ordinal >= 1 && ordinal <= e.controlCount {
			label := strings.ToUpper(strings.TrimSpace(parts[2]))
			if !controlLabelPattern.MatchString(label) {
				return nil, fmt.Errorf("%s export: controls not provided properly, sample %d is %q, expected CONTROL<n>",
					export, ordinal, strings.TrimSpace(parts[2]))
			}
		}

		if ordinal > res.maxOrdinal {
			res.maxOrdinal = ordinal
		}
		name := strings.TrimSpace(parts[1])
		if !seen[name] {
			seen[name] = true
			res.names = append(res.names, name)
			if ordinal <= e.controlCount {
				res.controlsSeen++
			}
		}
		res.responses = append(res.responses, strings.TrimSpace(parts[len(parts)-1]))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%s export: read failed: %w", export, err)
	}
	if len(res.compounds) == 0 {
		return nil, fmt.Errorf("%s export: no compound headers found", export)
	}
	if len(res.names) == 0 {
		return nil, fmt.Errorf("%s export: no sample data lines found", export)
	}
	return res, nil
}

// stopMarker reports whether a compound header ends the measured panel.
// The amino acid export trails off at the Suac internal section; the
// acylcarnitine exports end where the internal-standard compounds begin.
func stopMarker(line string, export domain.ExportType) bool {
	switch export {
	case domain.ExportAA:
		return strings.Contains(line, "Suac")
	case domain.ExportAC, domain.ExportACExt:
		return strings.HasSuffix(line, "IS")
	}
	return false
}

// applyFactors scales every response by its compound's multiplication
// factor, exactly once. Empty responses become zero; anything else that
// fails to parse as a number aborts the extraction.
func (e *Extractor) applyFactors(export domain.ExportType, compounds, responses []string, sampleCount int) ([]float64, error) {
	out := make([]float64, 0, len(responses))
	k := 0
	for _, compound := range compounds {
		factor, err := e.table.Factor(export, compound)
		if err != nil {
			return nil, err
		}
		for j := 0; j < sampleCount; j++ {
			if k >= len(responses) {
				return nil, fmt.Errorf("%s export: not enough responses for %d compounds x %d samples",
					export, len(compounds), sampleCount)
			}
			raw := responses[k]
			k++
			if raw == "" {
				out = append(out, 0)
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("%s export: non-numeric measurement %q for compound %s", export, raw, compound)
			}
			out = append(out, v*factor)
		}
	}
	if len(out) != len(responses) {
		return nil, fmt.Errorf("%s export: result count mismatch after scaling", export)
	}
	return out, nil
}

// assignRoles partitions the samples: the first half of the control
// block is control tier I, the second half tier II, everything after is
// a patient. Instrument order is preserved.
func (e *Extractor) assignRoles(names []string) []domain.Sample {
	samples := make([]domain.Sample, len(names))
	perTier := e.controlCount / 2
	for i, name := range names {
		role := domain.RolePatient
		switch {
		case i < perTier:
			role = domain.RoleControl1
		case i < e.controlCount:
			role = domain.RoleControl2
		}
		samples[i] = domain.Sample{Name: name, Role: role, Ordinal: i + 1}
	}
	return samples
}

// Merge joins the three per-export grids side by side into one combined
// grid, in canonical export order. All grids must agree on the sample
// column exactly; a disagreement means the uploads do not describe the
// same batch.
func Merge(grids map[domain.ExportType]*domain.RawSampleGrid) (*domain.RawSampleGrid, error) {
	var ordered []*domain.RawSampleGrid
	for _, t := range domain.AllExportTypes {
		g, ok := grids[t]
		if !ok {
			return nil, fmt.Errorf("missing extracted grid for export type %s", t)
		}
		ordered = append(ordered, g)
	}

	base := ordered[0]
	for _, g := range ordered[1:] {
		if len(g.Samples) != len(base.Samples) {
			return nil, fmt.Errorf("patient count mismatch across files: %s has %d samples, %s has %d",
				base.Type, len(base.Samples), g.Type, len(g.Samples))
		}
		for i, s := range g.Samples {
			if s.Name != base.Samples[i].Name {
				return nil, fmt.Errorf("sample order mismatch across files: position %d is %q in %s but %q in %s",
					i+1, base.Samples[i].Name, base.Type, s.Name, g.Type)
			}
		}
	}

	merged := &domain.RawSampleGrid{
		Type:    base.Type,
		Samples: base.Samples,
		Values:  make([][]float64, len(base.Samples)),
	}
	for _, g := range ordered {
		merged.Compounds = append(merged.Compounds, g.Compounds...)
	}
	for s := range base.Samples {
		row := make([]float64, 0, len(merged.Compounds))
		for _, g := range ordered {
			row = append(row, g.Values[s]...)
		}
		merged.Values[s] = row
	}
	if err := merged.CheckShape(); err != nil {
		return nil, err
	}
	return merged, nil
}
