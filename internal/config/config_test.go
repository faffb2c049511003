package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadReadsYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stride.yaml")
	require.NoError(t, os.WriteFile(path, []byte("solver: /usr/bin/mysolver\ntimeout: 60\nparallel: 4\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/mysolver", cfg.Solver)
	assert.Equal(t, 60, cfg.SoftTimeout)
	assert.Equal(t, 4, cfg.ParallelJobs)
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stride.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timeout: 60\n"), 0o644))

	t.Setenv("STRIDE_TIMEOUT", "90")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 90, cfg.SoftTimeout)
}

func TestEnvOverridesBoolAndInt(t *testing.T) {
	t.Setenv("STRIDE_OPTIMAL", "true")
	t.Setenv("STRIDE_PARALLEL", "8")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.RequireOptimal)
	assert.Equal(t, 8, cfg.ParallelJobs)
}
