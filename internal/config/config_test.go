package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreNonEmpty(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, 1, cfg.NumThreads)
	assert.NotEmpty(t, cfg.LogPath)
	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, "bloom", cfg.ScheduledSetBackend)
}

func TestLoadYAMLMissingFileIsNotError(t *testing.T) {
	cfg := Defaults()
	err := LoadYAML(filepath.Join(t.TempDir(), "missing.yaml"), &cfg)
	assert.NoError(t, err)
}

func TestLoadYAMLOverlaysFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("num_threads: 8\nserver_id: 2\n"), 0o644))

	cfg := Defaults()
	require.NoError(t, LoadYAML(path, &cfg))
	assert.Equal(t, 8, cfg.NumThreads)
	assert.Equal(t, 2, cfg.ServerID)
}
