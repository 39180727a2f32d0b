package classifier

import (
	"strconv"
	"strings"

	"nbslab/pkg/contracts/domain"
)

// ParseRangeString parses a reference range as printed on a report
// document into an inclusive interval. Supported forms:
//
//	"<3.00"       upper bound only
//	">5.0"        lower bound only
//	"0.9-45"      closed interval
//	"0.00 - 0.5"  closed interval with spaces
//	"1256"        bare number, treated as an upper bound
//
// The boolean result is false when the string carries no usable bounds;
// callers treat that as "no reference available", not as an error.
// One-sided forms are widened with an open bound so the same inclusive
// interval policy applies everywhere.
func ParseRangeString(s string) (domain.Range, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.Range{}, false
	}

	if strings.HasPrefix(s, "<") {
		upper, err := strconv.ParseFloat(strings.TrimSpace(s[1:]), 64)
		if err != nil {
			return domain.Range{}, false
		}
		return domain.Range{Lower: 0, Upper: upper}, true
	}

	if strings.HasPrefix(s, ">") {
		lower, err := strconv.ParseFloat(strings.TrimSpace(s[1:]), 64)
		if err != nil {
			return domain.Range{}, false
		}
		return domain.Range{Lower: lower, Upper: openUpper}, true
	}

	if strings.Contains(s, "-") {
		normalized := strings.ReplaceAll(s, " ", "")
		parts := make([]string, 0, 2)
		for _, p := range strings.Split(normalized, "-") {
			if p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) == 2 {
			lower, err1 := strconv.ParseFloat(parts[0], 64)
			upper, err2 := strconv.ParseFloat(parts[1], 64)
			if err1 == nil && err2 == nil && lower <= upper {
				return domain.Range{Lower: lower, Upper: upper}, true
			}
		}
		return domain.Range{}, false
	}

	if upper, err := strconv.ParseFloat(s, 64); err == nil {
		return domain.Range{Lower: 0, Upper: upper}, true
	}
	return domain.Range{}, false
}

// openUpper stands in for a missing upper bound. Large enough that no
// physiological measurement reaches it, finite so interval arithmetic
// stays ordinary.
const openUpper = 1e12
