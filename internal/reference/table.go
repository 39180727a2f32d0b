// Package reference holds the static compound reference data consulted
// by the extractor and the classifier: per-compound multiplication
// factors and the four-tier reference ranges (patient, control I,
// control II, ratio). The table is built once, validated, and treated
// as read-only afterwards, which makes it safe for concurrent use.
package reference

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"nbslab/pkg/contracts/domain"
)

//go:embed ranges.yaml
var defaultRangesYAML []byte

// FactorDefaultKey is the fallback entry in an export's factor map.
// Only the amino acid export uses a default; the acylcarnitine exports
// require an explicit factor per compound.
const FactorDefaultKey = "default"

// tableFile mirrors the YAML document layout
type tableFile struct {
	Patient  map[string]domain.Range       `yaml:"patient"`
	Control1 map[string]domain.Range       `yaml:"control_1"`
	Control2 map[string]domain.Range       `yaml:"control_2"`
	Ratio    map[string]domain.Range       `yaml:"ratio"`
	Factors  map[string]map[string]float64 `yaml:"factors"`
}

// measurementUnit is the concentration unit of every measured compound.
// The instrument reports micromolar; ratios are dimensionless.
const measurementUnit = "uM"

// Table is the immutable compound reference table
type Table struct {
	tiers   map[domain.Tier]map[string]domain.Range
	factors map[domain.ExportType]map[string]float64
	defs    map[string]domain.CompoundDefinition
}

// NewDefaultTable builds the table from the embedded laboratory data
func NewDefaultTable() (*Table, error) {
	return parse(defaultRangesYAML)
}

// LoadTable reads an alternate table from a YAML file. Used by tests and
// deployments that carry site-specific ranges.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read reference table: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse reference table: %w", err)
	}

	t := &Table{
		tiers: map[domain.Tier]map[string]domain.Range{
			domain.TierPatient:  f.Patient,
			domain.TierControl1: f.Control1,
			domain.TierControl2: f.Control2,
			domain.TierRatio:    f.Ratio,
		},
		factors: make(map[domain.ExportType]map[string]float64, len(f.Factors)),
	}
	for name, m := range f.Factors {
		et := domain.ExportType(name)
		if !et.Valid() {
			return nil, fmt.Errorf("reference table: unknown export type %q in factors", name)
		}
		t.factors[et] = m
	}

	t.defs = buildDefinitions(t)

	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// buildDefinitions derives the static compound definitions from the
// loaded data: every patient-tier compound is a measured analyte whose
// category follows the export that carries its factor, and every
// ratio-tier entry is a dimensionless ratio.
func buildDefinitions(t *Table) map[string]domain.CompoundDefinition {
	defs := make(map[string]domain.CompoundDefinition)
	for name := range t.tiers[domain.TierPatient] {
		category := domain.CategoryAminoAcid
		factor := 1.0
		if f, ok := t.factors[domain.ExportAC][name]; ok {
			category = domain.CategoryAcylcarnitine
			factor = f
		} else if f, ok := t.factors[domain.ExportACExt][name]; ok {
			category = domain.CategoryAcylcarnitine
			factor = f
		} else if f, err := t.Factor(domain.ExportAA, name); err == nil {
			factor = f
		}
		defs[name] = domain.CompoundDefinition{
			Name:     name,
			Unit:     measurementUnit,
			Factor:   factor,
			Category: category,
		}
	}
	for name := range t.tiers[domain.TierRatio] {
		defs[name] = domain.CompoundDefinition{
			Name:     name,
			Factor:   1.0,
			Category: domain.CategoryRatio,
		}
	}
	return defs
}

// validate enforces lower <= upper for every entry in every tier
func (t *Table) validate() error {
	for tier, ranges := range t.tiers {
		for compound, r := range ranges {
			if r.Lower > r.Upper {
				return fmt.Errorf("reference table: %s/%s has lower %v > upper %v", tier, compound, r.Lower, r.Upper)
			}
		}
	}
	return nil
}

// Lookup returns the reference interval for a compound at a tier.
// A missing entry is not an error; callers treat it as "no reference".
func (t *Table) Lookup(compound string, tier domain.Tier) (domain.Range, bool) {
	ranges, ok := t.tiers[tier]
	if !ok {
		return domain.Range{}, false
	}
	r, ok := ranges[compound]
	return r, ok
}

// Definition returns the static definition of a compound: its unit,
// extraction factor and panel category.
func (t *Table) Definition(name string) (domain.CompoundDefinition, bool) {
	def, ok := t.defs[name]
	return def, ok
}

// Compounds returns the compound names configured for a tier
func (t *Table) Compounds(tier domain.Tier) []string {
	ranges := t.tiers[tier]
	out := make([]string, 0, len(ranges))
	for name := range ranges {
		out = append(out, name)
	}
	return out
}

// Factor returns the multiplication factor for a compound in the given
// export. Amino acid compounds fall back to the export's default factor;
// an acylcarnitine compound without an explicit factor is a hard error
// because a silently unscaled value would corrupt every classification.
func (t *Table) Factor(export domain.ExportType, compound string) (float64, error) {
	factors, ok := t.factors[export]
	if !ok {
		return 0, fmt.Errorf("no multiplication factors configured for export type %s", export)
	}
	if f, ok := factors[compound]; ok {
		return f, nil
	}
	if export == domain.ExportAA {
		if f, ok := factors[FactorDefaultKey]; ok {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%s export: unknown compound %q for multiplication", export, compound)
}
