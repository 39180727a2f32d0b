// Package validation gates uploads before any parsing begins: the
// instrument-export filename grammar, the three-file grouping
// invariants, and size/extension limits on the document-analysis path.
package validation

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"nbslab/pkg/contracts/domain"
)

// filenamePattern is the naming convention for raw instrument exports:
// DDMMYYYY_<TYPE>.txt with TYPE one of AA, AC, AC_EXT.
var filenamePattern = regexp.MustCompile(`^(\d{2})(\d{2})(\d{4})_(AA|AC|AC_EXT)\.txt$`)

// FileValidator validates upload filenames and sizes
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{logger: logger}
}

// ExportName is a validated instrument-export filename
type ExportName struct {
	Name     string
	DateCode string // DDMMYYYY as written in the filename
	Date     time.Time
	Type     domain.ExportType
}

// ValidateFilename checks a single filename against the export grammar
// and the date component ranges (day 1-31, month 1-12, year 2000-2100).
func (v *FileValidator) ValidateFilename(name string) (ExportName, error) {
	m := filenamePattern.FindStringSubmatch(name)
	if m == nil {
		return ExportName{}, fmt.Errorf(
			"invalid filename format: %q, expected DDMMYYYY_AA.txt, DDMMYYYY_AC.txt or DDMMYYYY_AC_EXT.txt", name)
	}

	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])

	if day < 1 || day > 31 {
		return ExportName{}, fmt.Errorf("invalid day in filename %q: %d", name, day)
	}
	if month < 1 || month > 12 {
		return ExportName{}, fmt.Errorf("invalid month in filename %q: %d", name, month)
	}
	if year < 2000 || year > 2100 {
		return ExportName{}, fmt.Errorf("invalid year in filename %q: %d", name, year)
	}

	return ExportName{
		Name:     name,
		DateCode: m[1] + m[2] + m[3],
		Date:     time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC),
		Type:     domain.ExportType(m[4]),
	}, nil
}

// ValidateTriplet verifies a complete submission: three valid filenames
// sharing one date token and covering exactly {AA, AC, AC_EXT}. Returns
// the validated names keyed by export type. Runs before any file content
// is read.
func (v *FileValidator) ValidateTriplet(names []string) (map[domain.ExportType]ExportName, error) {
	if len(names) != 3 {
		return nil, fmt.Errorf("expected exactly 3 files, got %d", len(names))
	}

	parsed := make([]ExportName, 0, 3)
	for _, name := range names {
		p, err := v.ValidateFilename(name)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, p)
	}

	for _, p := range parsed[1:] {
		if p.DateCode != parsed[0].DateCode {
			return nil, fmt.Errorf(
				"date mismatch in uploaded files: %s has date %s, %s has date %s; all files must share the same date",
				parsed[0].Name, parsed[0].DateCode, p.Name, p.DateCode)
		}
	}

	byType := make(map[domain.ExportType]ExportName, 3)
	for _, p := range parsed {
		if _, dup := byType[p.Type]; dup {
			return nil, fmt.Errorf("duplicate file type %s; expected one each of AA, AC, AC_EXT", p.Type)
		}
		byType[p.Type] = p
	}
	for _, t := range domain.AllExportTypes {
		if _, ok := byType[t]; !ok {
			got := make([]string, 0, len(byType))
			for k := range byType {
				got = append(got, string(k))
			}
			sort.Strings(got)
			return nil, fmt.Errorf("missing file type %s; expected one each of AA, AC, AC_EXT, got: %s",
				t, strings.Join(got, ", "))
		}
	}

	v.logger.Info("upload triplet validated",
		slog.String("date_code", parsed[0].DateCode))
	return byType, nil
}

// ValidateFileSize rejects files beyond maxBytes and empty files
func (v *FileValidator) ValidateFileSize(name string, size, maxBytes int64) error {
	if size == 0 {
		return fmt.Errorf("file %q is empty", name)
	}
	if size > maxBytes {
		return fmt.Errorf("file %q is too large (%.2f MB), maximum is %d MB",
			name, float64(size)/(1024*1024), maxBytes/(1024*1024))
	}
	return nil
}

// ValidateExtension checks the filename carries one of the allowed
// extensions (compared case-insensitively).
func (v *FileValidator) ValidateExtension(name string, allowed ...string) error {
	ext := strings.ToLower(filepath.Ext(name))
	for _, a := range allowed {
		if ext == a {
			return nil
		}
	}
	return fmt.Errorf("invalid file extension %q for %q, allowed: %s", ext, name, strings.Join(allowed, ", "))
}
