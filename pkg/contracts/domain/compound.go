package domain

// CompoundCategory classifies an analyte by its panel group
type CompoundCategory string

const (
	CategoryAminoAcid     CompoundCategory = "amino_acid"
	CategoryAcylcarnitine CompoundCategory = "acylcarnitine"
	CategoryRatio         CompoundCategory = "ratio"
	CategoryBiochemical   CompoundCategory = "biochemical"
)

// ExportType identifies one of the three raw instrument export files
type ExportType string

const (
	ExportAA    ExportType = "AA"     // amino acids
	ExportAC    ExportType = "AC"     // acylcarnitines
	ExportACExt ExportType = "AC_EXT" // extended acylcarnitines
)

// AllExportTypes lists the export types a complete submission must cover,
// in canonical processing order.
var AllExportTypes = []ExportType{ExportAA, ExportAC, ExportACExt}

// Valid reports whether t is one of the three known export types
func (t ExportType) Valid() bool {
	switch t {
	case ExportAA, ExportAC, ExportACExt:
		return true
	}
	return false
}

// CompoundDefinition describes a single measured analyte. Definitions are
// static configuration loaded once at startup and never mutated.
type CompoundDefinition struct {
	Name     string           `json:"name" yaml:"name" validate:"required"`
	Unit     string           `json:"unit" yaml:"unit"`
	Factor   float64          `json:"factor" yaml:"factor"`
	Category CompoundCategory `json:"category" yaml:"category" validate:"required"`
}

// Range is an inclusive reference interval for one compound at one tier
type Range struct {
	Lower float64 `json:"lower" yaml:"lower"`
	Upper float64 `json:"upper" yaml:"upper"`
}

// Contains reports whether v falls inside the inclusive interval
func (r Range) Contains(v float64) bool {
	return v >= r.Lower && v <= r.Upper
}

// Tier selects which reference interval applies to a measurement
type Tier string

const (
	TierPatient  Tier = "patient"
	TierControl1 Tier = "control_1"
	TierControl2 Tier = "control_2"
	TierRatio    Tier = "ratio"
)
