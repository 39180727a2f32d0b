// Package files owns the rendered-artifact storage: per-run output
// directories, filesystem-safe artifact names, and ZIP bundling for
// retrieval. Artifacts are the only persisted byproduct of a processing
// run; re-running the same inputs overwrites them identically.
package files

import (
	"archive/zip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// unsafeNameChars matches everything stripped from artifact names
var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9 ._-]+`)

// Store manages output artifacts under a single base directory
type Store struct {
	baseDir string
	logger  *slog.Logger
}

// NewStore creates an artifact store rooted at baseDir
func NewStore(baseDir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{baseDir: baseDir, logger: logger}
}

// BaseDir returns the store's root directory
func (s *Store) BaseDir() string {
	return s.baseDir
}

// CreateRunDir creates a fresh output directory for a processing run,
// named by the submission's date code. When a directory for that date
// already exists a numeric suffix is appended, so reprocessing the same
// date never clobbers an earlier run: 01072024, 01072024(1), ...
func (s *Store) CreateRunDir(dateCode string) (string, error) {
	dir := filepath.Join(s.baseDir, dateCode)
	for i := 1; ; i++ {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			break
		}
		dir = filepath.Join(s.baseDir, fmt.Sprintf("%s(%d)", dateCode, i))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create run directory: %w", err)
	}
	s.logger.Info("run directory created", slog.String("dir", dir))
	return dir, nil
}

// SanitizeName strips path separators and shell-hostile characters from
// a subject name so it can be embedded in an artifact filename. Falls
// back to "report" when nothing survives.
func SanitizeName(name string) string {
	cleaned := unsafeNameChars.ReplaceAllString(name, "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return "report"
	}
	return cleaned
}

// Bundle writes every file in runDir (non-recursive) into a single ZIP
// archive at zipPath.
func (s *Store) Bundle(runDir, zipPath string) error {
	entries, err := os.ReadDir(runDir)
	if err != nil {
		return fmt.Errorf("failed to read run directory: %w", err)
	}

	out, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("failed to create bundle: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	count := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := s.addToZip(zw, filepath.Join(runDir, entry.Name()), entry.Name()); err != nil {
			zw.Close()
			return err
		}
		count++
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize bundle: %w", err)
	}

	s.logger.Info("artifact bundle written",
		slog.String("zip", zipPath),
		slog.Int("files", count))
	return nil
}

func (s *Store) addToZip(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s for bundling: %w", name, err)
	}
	defer f.Close()

	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("failed to add %s to bundle: %w", name, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to write %s into bundle: %w", name, err)
	}
	return nil
}

// Open returns a reader for an artifact inside the store. The relative
// path is cleaned and confined to the base directory.
func (s *Store) Open(rel string) (*os.File, error) {
	clean := filepath.Clean(rel)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return nil, fmt.Errorf("invalid artifact path %q", rel)
	}
	return os.Open(filepath.Join(s.baseDir, clean))
}
