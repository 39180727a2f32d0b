// Package infrastructure wires process-wide concerns that the rest of
// the application consumes but never configures itself.
package infrastructure

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"nbslab/internal/config"
)

var (
	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
)

// InitializeLogger builds the process logger from configuration and
// installs it as slog's default. Safe to call more than once; the
// first configuration wins.
func InitializeLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	loggerOnce.Do(func() {
		logger, loggerErr = createLogger(cfg)
		if loggerErr == nil {
			slog.SetDefault(logger)
		}
	})
	return logger, loggerErr
}

func createLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	out, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}
	return slog.New(handler), nil
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level: %q", s)
}

// openOutput maps the configured output to a writer. Anything other
// than the two stream names is treated as a file path.
func openOutput(output string) (io.Writer, error) {
	switch output {
	case "stdout", "":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}
