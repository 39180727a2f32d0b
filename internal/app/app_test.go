package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nbslab/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Server.Port = 0
	cfg.Server.ReadTimeout = 5 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.IdleTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = time.Second
	cfg.Server.RateLimitRPS = 1000
	cfg.Server.RateLimitBurst = 1000
	cfg.Logging.Level = "error"
	cfg.Logging.Format = "text"
	cfg.Logging.Output = "stderr"
	cfg.Paths.DataDir = dir
	cfg.Paths.OutputDir = filepath.Join(dir, "reports")
	cfg.Paths.TemplateFile = filepath.Join(dir, "template.xlsx")
	cfg.Processing.ControlCount = 4
	cfg.Processing.MaxRawFileSizeMB = 10
	cfg.Processing.MaxDocumentSizeMB = 10
	cfg.Processing.MaxArchiveSizeMB = 10
	cfg.Processing.MaxBatchEntries = 10
	require.NoError(t, cfg.EnsureDirs())
	return cfg
}

func TestNewApplication(t *testing.T) {
	app, err := NewApplication(testConfig(t))
	require.NoError(t, err)
	require.NotNil(t, app)
	assert.NotNil(t, app.Reports)
	assert.NotNil(t, app.Analyzer)
}

func TestHealthEndpoint(t *testing.T) {
	app, err := NewApplication(testConfig(t))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, body["version"])
	assert.NotEmpty(t, body["go_version"])
	assert.NotEmpty(t, body["build_time"])
	assert.NotEmpty(t, body["git_commit"])
}

func TestRoutesAreMounted(t *testing.T) {
	app, err := NewApplication(testConfig(t))
	require.NoError(t, err)
	handler := app.Handler()

	// Mounted routes respond with handler-level errors, not 404s.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reports/process", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/analyzer/analyze", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestIDHeaderOnResponses(t *testing.T) {
	app, err := NewApplication(testConfig(t))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
