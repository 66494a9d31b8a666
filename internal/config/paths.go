package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains the resolved, absolute application paths.
type Paths struct {
	BaseDir     string
	DataDir     string
	LogsDir     string
	ExportDir   string
	DatasetFile string
	LogFile     string
}

// ResolvePaths turns the configured paths into absolute ones.
func (c *Config) ResolvePaths() (*Paths, error) {
	base := c.Paths.BaseDir
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		base = wd
	}
	base, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}

	dataDir := resolve(base, c.Paths.DataDir)
	return &Paths{
		BaseDir:     base,
		DataDir:     dataDir,
		LogsDir:     resolve(base, c.Paths.LogsDir),
		ExportDir:   resolve(base, c.Paths.ExportDir),
		DatasetFile: resolve(dataDir, c.Dataset.File),
		LogFile:     resolve(base, c.Logging.FilePath),
	}, nil
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

// EnsureDirectories creates the writable directories. The data directory is
// read-only input and is not created.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.LogsDir, p.ExportDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		slog.Debug("Ensured directory exists", slog.String("directory", dir))
	}
	return nil
}

// FileExists reports whether path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
