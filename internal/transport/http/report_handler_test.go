package http

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"nbslab/internal/classifier"
	apierrors "nbslab/internal/errors"
	"nbslab/internal/extractor"
	"nbslab/internal/files"
	"nbslab/internal/reference"
	"nbslab/internal/renderer"
	"nbslab/internal/services"
	"nbslab/internal/structurer"
	"nbslab/internal/validation"
)

const (
	aaFixture = `Compound 1  Phe
1	Sample 1	CONTROL1	0.5
2	Sample 2	CONTROL2	1.0
3	Sample 3	Baby A	2.0
`
	acFixture = `Compound 1  C0
1	Sample 1	CONTROL1	1.0
2	Sample 2	CONTROL2	2.0
3	Sample 3	Baby A	3.0
`
	acExtFixture = `Compound 1  C5OH
1	Sample 1	CONTROL1	4.0
2	Sample 2	CONTROL2	5.0
3	Sample 3	Baby A	6.0
`
)

func testReportRouter(t *testing.T) (chi.Router, string) {
	t.Helper()
	dir := t.TempDir()

	rangesPath := filepath.Join(dir, "ranges.yaml")
	require.NoError(t, os.WriteFile(rangesPath, []byte(`
patient:
  Phe: {lower: 1, upper: 100}
  C0: {lower: 1, upper: 100}
  C5OH: {lower: 1, upper: 100}
control_1:
  Phe: {lower: 1, upper: 100}
control_2:
  Phe: {lower: 1, upper: 100}
factors:
  AA:
    default: 10
  AC:
    C0: 3
  AC_EXT:
    C5OH: 4
`), 0644))
	table, err := reference.LoadTable(rangesPath)
	require.NoError(t, err)

	templatePath := filepath.Join(dir, "template.xlsx")
	tf := excelize.NewFile()
	_, err = tf.NewSheet("Sheet2")
	require.NoError(t, err)
	require.NoError(t, tf.SaveAs(templatePath))
	require.NoError(t, tf.Close())

	outputDir := filepath.Join(dir, "reports")
	require.NoError(t, os.MkdirAll(outputDir, 0755))

	cls := classifier.New(table)
	ext, err := extractor.New(table, nil, 2)
	require.NoError(t, err)

	svc := services.NewReportService(
		validation.NewFileValidator(nil),
		ext,
		structurer.New(cls, nil),
		renderer.New(templatePath, nil),
		files.NewStore(outputDir, nil),
		10*1024*1024,
		nil,
	)

	handler := NewReportHandler(svc, nil, apierrors.NewErrorHandler(nil))
	return handler.Routes(), outputDir
}

// multipartBody builds a process request carrying the named files
func multipartBody(t *testing.T, fields map[string]struct{ name, content string }, values map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for field, file := range fields {
		fw, err := w.CreateFormFile(field, file.name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(file.content))
		require.NoError(t, err)
	}
	for k, v := range values {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func validTriplet() map[string]struct{ name, content string } {
	return map[string]struct{ name, content string }{
		"file_aa":     {"01072024_AA.txt", aaFixture},
		"file_ac":     {"01072024_AC.txt", acFixture},
		"file_ac_ext": {"01072024_AC_EXT.txt", acExtFixture},
	}
}

func TestProcessEndpoint(t *testing.T) {
	router, outputDir := testReportRouter(t)

	body, contentType := multipartBody(t, validTriplet(), map[string]string{
		"uploaded_by":   "tech1",
		"patient_count": "1",
	})

	req := httptest.NewRequest(http.MethodPost, "/process", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Success bool                    `json:"success"`
		Result  services.ProcessOutcome `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "01072024", resp.Result.DateCode)
	assert.Equal(t, "tech1", resp.Result.UploadedBy)
	assert.Equal(t, 1, resp.Result.PatientCount)
	assert.Equal(t, 3, resp.Result.CompoundCount)
	assert.Len(t, resp.Result.PatientReports, 1)
	assert.Empty(t, resp.Result.ArtifactFailures)

	// The artifacts really exist under the store.
	assert.FileExists(t, filepath.Join(outputDir, resp.Result.AggregatePath))
	assert.FileExists(t, filepath.Join(outputDir, resp.Result.BundlePath))
}

func TestProcessEndpointValidation(t *testing.T) {
	router, _ := testReportRouter(t)

	tests := []struct {
		name       string
		fields     map[string]struct{ name, content string }
		values     map[string]string
		wantStatus int
		wantCode   string
	}{
		{
			name: "missing form field",
			fields: map[string]struct{ name, content string }{
				"file_aa": {"01072024_AA.txt", aaFixture},
				"file_ac": {"01072024_AC.txt", acFixture},
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name: "bad filename grammar",
			fields: map[string]struct{ name, content string }{
				"file_aa":     {"report.txt", aaFixture},
				"file_ac":     {"01072024_AC.txt", acFixture},
				"file_ac_ext": {"01072024_AC_EXT.txt", acExtFixture},
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name: "date mismatch",
			fields: map[string]struct{ name, content string }{
				"file_aa":     {"01072024_AA.txt", aaFixture},
				"file_ac":     {"02072024_AC.txt", acFixture},
				"file_ac_ext": {"01072024_AC_EXT.txt", acExtFixture},
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "invalid patient count",
			fields:     validTriplet(),
			values:     map[string]string{"patient_count": "-1"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name: "broken content is unprocessable",
			fields: map[string]struct{ name, content string }{
				"file_aa":     {"01072024_AA.txt", "Compound 1  Phe\n1\tSample 1\tCONTROL1\tnot-a-number\n2\tSample 2\tCONTROL2\t1\n3\tSample 3\tBaby A\t2\n"},
				"file_ac":     {"01072024_AC.txt", acFixture},
				"file_ac_ext": {"01072024_AC_EXT.txt", acExtFixture},
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "EXTRACTION_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartBody(t, tt.fields, tt.values)
			req := httptest.NewRequest(http.MethodPost, "/process", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			var resp apierrors.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.ErrorCode)
		})
	}
}

func TestDownloadEndpoint(t *testing.T) {
	router, outputDir := testReportRouter(t)

	runDir := filepath.Join(outputDir, "01072024")
	require.NoError(t, os.MkdirAll(runDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "final_results.xlsx"), []byte("workbook-bytes"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "05_Baby A.xlsx"), []byte("patient-bytes"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "reports.zip"), []byte("zip-bytes"), 0644))

	t.Run("existing artifact", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/download/01072024/final_results.xlsx", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "workbook-bytes", rec.Body.String())
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "final_results.xlsx")
		assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	})

	t.Run("escaped patient artifact name", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/download/01072024/05_Baby%20A.xlsx", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "patient-bytes", rec.Body.String())
	})

	t.Run("zip bundle", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/download/01072024/reports.zip", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	})

	t.Run("missing artifact", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/download/01072024/nope.xlsx", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("path traversal rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/download/..%2f..%2fetc%2fpasswd", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
