package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/findex-dev/findex/internal/errors"
)

func TestNew_Defaults(t *testing.T) {
	cfg := New()

	assert.Equal(t, 500, cfg.Chunking.ChunkSize)
	assert.Equal(t, 50, cfg.Chunking.Overlap)
	assert.Equal(t, 500, cfg.Chunking.Threshold)
	assert.Equal(t, 0.6, cfg.Search.VectorWeight)
	assert.Equal(t, 0.4, cfg.Search.TextWeight)
	assert.Equal(t, 768, cfg.Embed.Dimensions)
	assert.Equal(t, int64(0), cfg.Index.MachineID)

	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.Chunking.ChunkSize)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	content := `
index:
  machine_id: 7
  workers: 2
chunking:
  chunk_size: 800
  overlap: 100
search:
  vector_weight: 0.5
  text_weight: 0.5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, int64(7), cfg.Index.MachineID)
	assert.Equal(t, 2, cfg.Index.Workers)
	assert.Equal(t, 800, cfg.Chunking.ChunkSize)
	assert.Equal(t, 100, cfg.Chunking.Overlap)
	assert.Equal(t, 0.5, cfg.Search.VectorWeight)
	// Untouched fields keep defaults.
	assert.Equal(t, 768, cfg.Embed.Dimensions)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FINDEX_MACHINE_ID", "42")
	t.Setenv("FINDEX_CHUNK_SIZE", "600")
	t.Setenv("FINDEX_VECTOR_WEIGHT", "0.7")
	t.Setenv("FINDEX_TEXT_WEIGHT", "0.3")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, int64(42), cfg.Index.MachineID)
	assert.Equal(t, 600, cfg.Chunking.ChunkSize)
	assert.Equal(t, 0.7, cfg.Search.VectorWeight)
	assert.Equal(t, 0.3, cfg.Search.TextWeight)
}

func TestValidate_MachineIDRange(t *testing.T) {
	for _, id := range []int64{-1, 1024, 99999} {
		cfg := New()
		cfg.Index.MachineID = id
		err := cfg.Validate()
		require.Error(t, err, "machine id %d", id)
		assert.Equal(t, ferrors.ErrCodeMachineIDRange, ferrors.GetCode(err))
	}

	for _, id := range []int64{0, 1, 1023} {
		cfg := New()
		cfg.Index.MachineID = id
		assert.NoError(t, cfg.Validate(), "machine id %d", id)
	}
}

func TestValidate_ChunkParams(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		overlap   int
		wantError bool
	}{
		{"valid", 500, 50, false},
		{"zero overlap", 500, 0, false},
		{"overlap equals size", 500, 500, true},
		{"overlap exceeds size", 500, 600, true},
		{"negative overlap", 500, -1, true},
		{"zero size", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			cfg.Chunking.ChunkSize = tt.size
			cfg.Chunking.Overlap = tt.overlap
			err := cfg.Validate()
			if tt.wantError {
				require.Error(t, err)
				assert.Equal(t, ferrors.ErrCodeChunkParams, ferrors.GetCode(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateWeights(t *testing.T) {
	assert.NoError(t, ValidateWeights(0.6, 0.4))
	assert.NoError(t, ValidateWeights(0.5, 0.3))
	assert.NoError(t, ValidateWeights(0, 0))
	assert.NoError(t, ValidateWeights(1, 0))

	assert.Error(t, ValidateWeights(-0.1, 0.5))
	assert.Error(t, ValidateWeights(0.5, -0.1))
	assert.Error(t, ValidateWeights(0.7, 0.4))
	assert.Error(t, ValidateWeights(1.1, 0))
}

func TestLoad_InvalidConfigFails(t *testing.T) {
	dir := t.TempDir()
	content := "chunking:\n  chunk_size: 100\n  overlap: 100\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.True(t, ferrors.IsConfig(err))
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)

	cfg := New()
	cfg.Index.MachineID = 3
	require.NoError(t, cfg.WriteYAML(path))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, int64(3), loaded.Index.MachineID)
}
