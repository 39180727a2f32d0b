// Package app assembles the application: configuration, logging,
// the processing pipeline services and the HTTP server.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"nbslab/internal/analyzer"
	"nbslab/internal/classifier"
	"nbslab/internal/config"
	"nbslab/internal/errors"
	"nbslab/internal/extractor"
	"nbslab/internal/files"
	"nbslab/internal/infrastructure"
	"nbslab/internal/middleware"
	"nbslab/internal/reference"
	"nbslab/internal/renderer"
	"nbslab/internal/services"
	"nbslab/internal/structurer"
	transporthttp "nbslab/internal/transport/http"
	"nbslab/internal/validation"
	"nbslab/pkg/contracts"
)

// Application holds the wired service graph and the HTTP server
type Application struct {
	config *config.Config
	logger *slog.Logger
	server *http.Server

	Reports  *services.ReportService
	Analyzer *services.AnalyzerService
}

// NewApplication wires every component from configuration
func NewApplication(cfg *config.Config) (*Application, error) {
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	container, err := buildServices(cfg, logger)
	if err != nil {
		return nil, err
	}

	app := &Application{
		config:   cfg,
		logger:   logger,
		Reports:  container.reports,
		Analyzer: container.analyzer,
	}
	app.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      app.router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return app, nil
}

// serviceContainer groups the application services during wiring
type serviceContainer struct {
	reports  *services.ReportService
	analyzer *services.AnalyzerService
}

func buildServices(cfg *config.Config, logger *slog.Logger) (*serviceContainer, error) {
	table, err := loadReferenceTable(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load reference table: %w", err)
	}

	cls := classifier.New(table)

	ext, err := extractor.New(table, logger, cfg.Processing.ControlCount)
	if err != nil {
		return nil, fmt.Errorf("failed to create extractor: %w", err)
	}

	reports := services.NewReportService(
		validation.NewFileValidator(logger),
		ext,
		structurer.New(cls, logger),
		renderer.New(cfg.Paths.TemplateFile, logger),
		files.NewStore(cfg.Paths.OutputDir, logger),
		cfg.MaxRawFileBytes(),
		logger,
	)

	analyzerSvc := services.NewAnalyzerService(
		analyzer.New(cls, logger),
		cfg.MaxDocumentBytes(),
		cfg.MaxArchiveBytes(),
		cfg.Processing.MaxBatchEntries,
		logger,
	)

	return &serviceContainer{reports: reports, analyzer: analyzerSvc}, nil
}

func loadReferenceTable(cfg *config.Config) (*reference.Table, error) {
	if cfg.Paths.ReferenceTable != "" {
		return reference.LoadTable(cfg.Paths.ReferenceTable)
	}
	return reference.NewDefaultTable()
}

// router builds the HTTP routing tree with the full middleware chain
func (app *Application) router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.StructuredLogger(app.logger))
	r.Use(middleware.Recoverer(app.logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.NewRateLimiter(app.config.Server.RateLimitRPS, app.config.Server.RateLimitBurst, app.logger).Handler)
	r.Use(chimiddleware.Timeout(app.config.Server.WriteTimeout))

	errorHandler := errors.NewErrorHandler(app.logger)
	healthHandler := transporthttp.NewHealthHandler(contracts.GetVersionInfo(), app.logger)

	r.Get("/healthz", healthHandler.Health)
	r.Route("/api", func(r chi.Router) {
		r.Mount("/reports", transporthttp.NewReportHandler(app.Reports, app.logger, errorHandler).Routes())
		r.Mount("/analyzer", transporthttp.NewAnalyzerHandler(app.Analyzer, app.logger, errorHandler).Routes())
	})
	return r
}

// Run starts the HTTP server and blocks until the context is cancelled
// or the server fails. Shutdown is graceful within the configured
// timeout.
func (app *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("http server listening",
			slog.String("addr", app.server.Addr),
			slog.String("version", contracts.Version))
		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
	defer cancel()

	app.logger.Info("shutting down http server",
		slog.Duration("timeout", app.config.Server.ShutdownTimeout))
	if err := app.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// Addr returns the server's listen address
func (app *Application) Addr() string {
	return app.server.Addr
}

// Handler exposes the fully assembled router, mainly for tests
func (app *Application) Handler() http.Handler {
	return app.router()
}
