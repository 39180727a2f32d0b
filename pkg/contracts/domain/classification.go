package domain

// Verdict is the outcome of classifying one measurement against its
// reference interval.
type Verdict string

const (
	VerdictNormal       Verdict = "normal"
	VerdictOutOfRange   Verdict = "out_of_range"
	VerdictCritical     Verdict = "critical"
	VerdictNotEvaluated Verdict = "not_evaluated"
	VerdictNoReference  Verdict = "no_reference"
)

// Abnormal reports whether the verdict counts towards abnormality totals.
// Missing values and missing reference ranges are deliberately excluded.
func (v Verdict) Abnormal() bool {
	return v == VerdictOutOfRange || v == VerdictCritical
}

// Color is the highlight applied when the measurement is rendered
type Color string

const (
	ColorGreen  Color = "green"
	ColorYellow Color = "yellow"
	ColorRed    Color = "red"
	ColorNone   Color = "none"
)

// MeasurementClassification annotates one grid cell or document field.
// It is derived data and only ever lives inside its owning table.
type MeasurementClassification struct {
	Compound string   `json:"compound"`
	Sample   string   `json:"sample"`
	Value    *float64 `json:"value,omitempty"`
	Tier     Tier     `json:"tier"`
	Verdict  Verdict  `json:"verdict"`
	Color    Color    `json:"color"`
	Reason   string   `json:"reason,omitempty"`
}
