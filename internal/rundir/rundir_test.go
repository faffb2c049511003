package rundir

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithinCreatesDirAndLatestLink(t *testing.T) {
	parent := t.TempDir()

	rd, err := NewWithin(parent)
	require.NoError(t, err)
	assert.DirExists(t, rd.Path())

	linkTarget, err := os.Readlink(filepath.Join(parent, LatestLink))
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(rd.Path()), linkTarget)
}

func TestNewWithinSecondRunUpdatesLatest(t *testing.T) {
	parent := t.TempDir()

	first, err := NewWithin(parent)
	require.NoError(t, err)

	second, err := NewWithin(parent)
	require.NoError(t, err)
	assert.NotEqual(t, first.Path(), second.Path())

	linkTarget, err := os.Readlink(filepath.Join(parent, LatestLink))
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(second.Path()), linkTarget)
}

func TestCreateInstanceDirDisambiguates(t *testing.T) {
	parent := t.TempDir()
	rd, err := NewWithin(parent)
	require.NoError(t, err)

	d1, err := rd.CreateInstanceDir("foo")
	require.NoError(t, err)
	d2, err := rd.CreateInstanceDir("foo")
	require.NoError(t, err)

	assert.NotEqual(t, d1, d2)
	assert.DirExists(t, d1)
	assert.DirExists(t, d2)
}

func TestCreateInstanceDirRejectsEmptyName(t *testing.T) {
	parent := t.TempDir()
	rd, err := NewWithin(parent)
	require.NoError(t, err)

	_, err = rd.CreateInstanceDir("")
	assert.ErrorIs(t, err, ErrEmptyInstanceName)
}

func TestCreateInstanceDirForPathUsesStem(t *testing.T) {
	parent := t.TempDir()
	rd, err := NewWithin(parent)
	require.NoError(t, err)

	dir, err := rd.CreateInstanceDirForPath("/somewhere/foo.gr")
	require.NoError(t, err)
	assert.Equal(t, "foo", filepath.Base(dir))
}

func TestFinalizeOutcomeMovesDirectory(t *testing.T) {
	parent := t.TempDir()
	rd, err := NewWithin(parent)
	require.NoError(t, err)

	taskDir, err := rd.CreateInstanceDir("foo")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(taskDir, "stdout.log"), []byte("hi"), 0o644))

	dest, err := rd.FinalizeOutcome(taskDir, "valid")
	require.NoError(t, err)

	assert.NoDirExists(t, taskDir)
	assert.DirExists(t, dest)
	assert.FileExists(t, filepath.Join(dest, "stdout.log"))
}

func TestPruneOldRunsKeepsOnlyMostRecent(t *testing.T) {
	parent := t.TempDir()
	for i := 0; i < 5; i++ {
		_, err := NewWithin(parent)
		require.NoError(t, err)
	}

	require.NoError(t, PruneOldRuns(parent, 2))

	entries, err := os.ReadDir(parent)
	require.NoError(t, err)
	var runs int
	for _, e := range entries {
		if e.IsDir() {
			runs++
		}
	}
	assert.Equal(t, 2, runs)
}
