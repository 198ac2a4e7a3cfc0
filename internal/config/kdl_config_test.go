package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKDL_Defaults(t *testing.T) {
	cfg, err := parseKDL("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, int64(10*1024*1024), cfg.ChunkSize)
	assert.Equal(t, 64*1024, cfg.BufferSize)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "utf-8", cfg.Encoding)
	assert.Equal(t, 256, cfg.OutputQueue)
}

func TestParseKDL_Overrides(t *testing.T) {
	kdlContent := `
chunk_size "20MB"
buffer_size 131072
workers 8
encoding "latin-1"
output_queue 512
`
	cfg, err := parseKDL(kdlContent)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, int64(20*1024*1024), cfg.ChunkSize)
	assert.Equal(t, 131072, cfg.BufferSize)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "latin-1", cfg.Encoding)
	assert.Equal(t, 512, cfg.OutputQueue)
}

func TestParseKDL_PlainIntChunkSize(t *testing.T) {
	cfg, err := parseKDL(`chunk_size 5242880`)
	require.NoError(t, err)
	assert.Equal(t, int64(5242880), cfg.ChunkSize)
}

func TestParseKDL_InvalidSyntax(t *testing.T) {
	_, err := parseKDL("chunk_size {{{")
	assert.Error(t, err)
}

func TestLoadKDL_MissingFile(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadKDL(dir)
	require.NoError(t, err)
	assert.Equal(t, defaultToolConfig(), cfg)
}

func TestLoadKDL_ExistingFile(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, ".pymala.kdl"), []byte(`workers 16`), 0644)
	require.NoError(t, err)

	cfg, err := LoadKDL(dir)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Workers)
}
