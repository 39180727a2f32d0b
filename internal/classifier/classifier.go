// Package classifier maps measurements onto verdicts and highlight
// colors using the compound reference table. Classification is a pure
// function of its inputs; the classifier holds no mutable state and may
// be shared across concurrent requests.
package classifier

import (
	"fmt"

	"nbslab/internal/reference"
	"nbslab/pkg/contracts/domain"
)

// Critical threshold policy: a value more than 50% beyond either bound
// is flagged critical. Applied uniformly across all compounds and tiers;
// pending clinical confirmation this must not vary per compound.
const (
	CriticalLowerFactor = 0.5
	CriticalUpperFactor = 1.5
)

// Classifier evaluates measurements against an immutable reference table
type Classifier struct {
	table *reference.Table
}

// New creates a classifier backed by the given reference table
func New(table *reference.Table) *Classifier {
	return &Classifier{table: table}
}

// Classify evaluates a single measurement for a compound at a tier.
// A nil value means the instrument reported nothing; that is recorded as
// not-evaluated, never as an error. A compound without a configured
// range classifies as no-reference and is excluded from abnormality
// counts.
func (c *Classifier) Classify(compound string, tier domain.Tier, value *float64) domain.MeasurementClassification {
	mc := domain.MeasurementClassification{
		Compound: compound,
		Tier:     tier,
		Value:    value,
	}

	if value == nil {
		mc.Verdict = domain.VerdictNotEvaluated
		mc.Color = domain.ColorNone
		mc.Reason = "value not reported"
		return mc
	}

	r, ok := c.table.Lookup(compound, tier)
	if !ok {
		mc.Verdict = domain.VerdictNoReference
		mc.Color = domain.ColorNone
		mc.Reason = "no reference range configured"
		return mc
	}

	mc.Verdict, mc.Color, mc.Reason = Against(r, *value)
	return mc
}

// Against applies the verdict policy to an explicit interval. Bounds are
// inclusive: v == lower and v == upper are both normal.
func Against(r domain.Range, v float64) (domain.Verdict, domain.Color, string) {
	if r.Contains(v) {
		return domain.VerdictNormal, domain.ColorGreen, "within range"
	}

	criticalLower := r.Lower * CriticalLowerFactor
	criticalUpper := r.Upper * CriticalUpperFactor
	if v < criticalLower || v > criticalUpper {
		if v < r.Lower {
			return domain.VerdictCritical, domain.ColorRed, fmt.Sprintf("critically below minimum (%v)", r.Lower)
		}
		return domain.VerdictCritical, domain.ColorRed, fmt.Sprintf("critically above maximum (%v)", r.Upper)
	}

	if v < r.Lower {
		return domain.VerdictOutOfRange, domain.ColorYellow, fmt.Sprintf("below minimum (%v)", r.Lower)
	}
	return domain.VerdictOutOfRange, domain.ColorYellow, fmt.Sprintf("above maximum (%v)", r.Upper)
}

// Table exposes the backing reference table for callers that need the
// raw bounds (the structurer prints them alongside the data).
func (c *Classifier) Table() *reference.Table {
	return c.table
}
