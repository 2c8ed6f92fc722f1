package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePathsFrom(t *testing.T) {
	base := t.TempDir()

	t.Run("relative paths join the base", func(t *testing.T) {
		cfg := Default()
		p := resolvePathsFrom(base, cfg)
		assert.Equal(t, filepath.Join(base, "data"), p.StorageRoot)
		assert.Equal(t, filepath.Join(base, "logs", "app.log"), p.LogFile)
		assert.Equal(t, filepath.Join(base, "logs"), p.LogsDir)
	})

	t.Run("absolute paths are kept", func(t *testing.T) {
		cfg := Default()
		abs := filepath.Join(t.TempDir(), "store")
		cfg.Storage.Root = abs
		p := resolvePathsFrom(base, cfg)
		assert.Equal(t, abs, p.StorageRoot)
	})
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	p := resolvePathsFrom(base, Default())
	require.NoError(t, p.EnsureDirectories())

	for _, dir := range []string{p.StorageRoot, p.LogsDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestResolvePaths(t *testing.T) {
	p, err := ResolvePaths(Default())
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(p.StorageRoot))
	assert.True(t, filepath.IsAbs(p.LogFile))
}
