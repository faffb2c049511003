package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithRunLogWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.log")
	logger, closeFn, err := NewWithRunLog(path)
	require.NoError(t, err)
	defer closeFn()

	logger.Info("task completed", "task", "foo", "result", "Valid")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan())
	var line map[string]any
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
	assert.Equal(t, "task completed", line["msg"])
	assert.Equal(t, "foo", line["task"])
}

func TestNewToWritesToGivenWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	logger := NewTo(f)
	logger.Warn("something odd")

	require.NoError(t, f.Sync())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "something odd")
}
