package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"nbslab/pkg/contracts"
)

// HealthHandler reports process liveness
type HealthHandler struct {
	version contracts.VersionInfo
	started time.Time
	logger  *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version contracts.VersionInfo, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{
		version: version,
		started: time.Now().UTC(),
		logger:  logger,
	}
}

// Health responds with the service status and build metadata
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"status":     "healthy",
		"version":    h.version.Version,
		"build_time": h.version.BuildTime,
		"git_commit": h.version.GitCommit,
		"go_version": h.version.GoVersion,
		"uptime":     time.Since(h.started).String(),
		"time":       time.Now().UTC().Format(time.RFC3339),
	})
}
