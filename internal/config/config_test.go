package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestSaveThenLoad_RoundTrips(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cfg := Default()
	cfg.Graph.URL = "bolt://example:7687"
	cfg.Vector.BatchSize = 64
	cfg.Context.TokenLimit = 12000

	require.NoError(t, Save(dir, cfg))
	assert.FileExists(t, filepath.Join(dir, ".cv", "config.json"))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoad_MalformedJSONErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, Save(dir, Default()))

	// Corrupt the file.
	path := Path(dir)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}
