package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains the resolved file system locations used at runtime.
type Paths struct {
	BaseDir     string
	StorageRoot string
	LogsDir     string
	LogFile     string
}

// ResolvePaths turns the configured paths into absolute ones. Relative paths
// are taken from the current working directory.
func ResolvePaths(cfg *Config) (*Paths, error) {
	base, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return resolvePathsFrom(base, cfg), nil
}

func resolvePathsFrom(base string, cfg *Config) *Paths {
	abs := func(p string) string {
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(base, p)
	}
	logFile := abs(cfg.Logging.FilePath)
	return &Paths{
		BaseDir:     base,
		StorageRoot: abs(cfg.Storage.Root),
		LogsDir:     filepath.Dir(logFile),
		LogFile:     logFile,
	}
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.StorageRoot, p.LogsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// LogPathResolution records the resolved paths
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("resolved application paths",
		slog.String("base_dir", p.BaseDir),
		slog.String("storage_root", p.StorageRoot),
		slog.String("logs_dir", p.LogsDir),
	)
}
