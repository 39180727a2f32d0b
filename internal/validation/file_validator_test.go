package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nbslab/pkg/contracts/domain"
)

func TestValidateFilename(t *testing.T) {
	v := NewFileValidator(nil)

	tests := []struct {
		name     string
		filename string
		wantErr  string
		wantType domain.ExportType
		wantDate time.Time
	}{
		{
			name:     "valid AA file",
			filename: "01072024_AA.txt",
			wantType: domain.ExportAA,
			wantDate: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "valid AC file",
			filename: "31122099_AC.txt",
			wantType: domain.ExportAC,
			wantDate: time.Date(2099, 12, 31, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "valid AC_EXT file",
			filename: "15032024_AC_EXT.txt",
			wantType: domain.ExportACExt,
			wantDate: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "wrong extension",
			filename: "01072024_AA.csv",
			wantErr:  "invalid filename format",
		},
		{
			name:     "unknown type token",
			filename: "01072024_XX.txt",
			wantErr:  "invalid filename format",
		},
		{
			name:     "missing underscore",
			filename: "01072024AA.txt",
			wantErr:  "invalid filename format",
		},
		{
			name:     "day out of range",
			filename: "32072024_AA.txt",
			wantErr:  "invalid day",
		},
		{
			name:     "day zero",
			filename: "00072024_AA.txt",
			wantErr:  "invalid day",
		},
		{
			name:     "month out of range",
			filename: "01132024_AA.txt",
			wantErr:  "invalid month",
		},
		{
			name:     "year below 2000",
			filename: "01071999_AA.txt",
			wantErr:  "invalid year",
		},
		{
			name:     "year above 2100",
			filename: "01072101_AA.txt",
			wantErr:  "invalid year",
		},
		{
			name:     "lowercase type rejected",
			filename: "01072024_aa.txt",
			wantErr:  "invalid filename format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.ValidateFilename(tt.filename)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.filename, got.Name)
			assert.Equal(t, tt.wantType, got.Type)
			assert.Equal(t, tt.wantDate, got.Date)
			assert.Len(t, got.DateCode, 8)
		})
	}
}

func TestValidateTriplet(t *testing.T) {
	v := NewFileValidator(nil)

	tests := []struct {
		name    string
		files   []string
		wantErr string
	}{
		{
			name:  "complete triplet",
			files: []string{"01072024_AA.txt", "01072024_AC.txt", "01072024_AC_EXT.txt"},
		},
		{
			name:  "order does not matter",
			files: []string{"01072024_AC_EXT.txt", "01072024_AA.txt", "01072024_AC.txt"},
		},
		{
			name:    "too few files",
			files:   []string{"01072024_AA.txt", "01072024_AC.txt"},
			wantErr: "expected exactly 3 files",
		},
		{
			name:    "too many files",
			files:   []string{"01072024_AA.txt", "01072024_AC.txt", "01072024_AC_EXT.txt", "01072024_AA.txt"},
			wantErr: "expected exactly 3 files",
		},
		{
			name:    "date mismatch",
			files:   []string{"01072024_AA.txt", "02072024_AC.txt", "01072024_AC_EXT.txt"},
			wantErr: "date mismatch",
		},
		{
			name:    "duplicate type",
			files:   []string{"01072024_AA.txt", "01072024_AA.txt", "01072024_AC_EXT.txt"},
			wantErr: "duplicate file type AA",
		},
		{
			name:    "missing AC_EXT",
			files:   []string{"01072024_AA.txt", "01072024_AC.txt", "01072024_AC.txt"},
			wantErr: "duplicate file type AC",
		},
		{
			name:    "invalid member fails the whole triplet",
			files:   []string{"01072024_AA.txt", "bad.txt", "01072024_AC_EXT.txt"},
			wantErr: "invalid filename format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.ValidateTriplet(tt.files)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Len(t, got, 3)
			assert.Equal(t, "01072024_AA.txt", got[domain.ExportAA].Name)
			assert.Equal(t, "01072024_AC.txt", got[domain.ExportAC].Name)
			assert.Equal(t, "01072024_AC_EXT.txt", got[domain.ExportACExt].Name)
			for _, p := range got {
				assert.Equal(t, "01072024", p.DateCode)
			}
		})
	}
}

func TestValidateFileSize(t *testing.T) {
	v := NewFileValidator(nil)

	assert.NoError(t, v.ValidateFileSize("a.txt", 1, 1024))
	assert.NoError(t, v.ValidateFileSize("a.txt", 1024, 1024))

	err := v.ValidateFileSize("a.txt", 0, 1024)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")

	err = v.ValidateFileSize("a.txt", 1025, 1024)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestValidateExtension(t *testing.T) {
	v := NewFileValidator(nil)

	assert.NoError(t, v.ValidateExtension("report.txt", ".txt"))
	assert.NoError(t, v.ValidateExtension("REPORT.TXT", ".txt"))
	assert.NoError(t, v.ValidateExtension("doc.json", ".txt", ".json"))
	assert.Error(t, v.ValidateExtension("report.pdf", ".txt"))
	assert.Error(t, v.ValidateExtension("report", ".txt"))
}
