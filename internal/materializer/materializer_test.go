package materializer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarqd/ldactl/internal/autoconfig"
)

func TestWriteProducesExpectedJSON(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "envs.json")
	m := New(target)

	err := m.Write(map[string]autoconfig.Environment{
		"/e/A": {Path: "/e/A", EnvID: "c1", EnvKey: "dev", ProjectKey: "p", MobileKey: "m1", SDKKey: "s1", Version: 1},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(target)
	require.NoError(t, err)

	var decoded map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Contains(t, decoded, "/e/A")
	assert.Equal(t, "c1", decoded["/e/A"]["envID"])
	assert.Equal(t, "s1", decoded["/e/A"]["sdkKey"])
	assert.Equal(t, float64(1), decoded["/e/A"]["version"])
}

func TestWriteLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "envs.json")
	m := New(target)

	require.NoError(t, m.Write(map[string]autoconfig.Environment{}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "envs.json", entries[0].Name())
}

func TestWriteReplacesExistingContentAtomically(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "envs.json")
	m := New(target)

	require.NoError(t, m.Write(map[string]autoconfig.Environment{
		"/e/A": {Path: "/e/A", EnvID: "c1", Version: 1},
	}))
	first, err := os.ReadFile(target)
	require.NoError(t, err)

	require.NoError(t, m.Write(map[string]autoconfig.Environment{
		"/e/B": {Path: "/e/B", EnvID: "c2", Version: 1},
	}))
	second, err := os.ReadFile(target)
	require.NoError(t, err)

	assert.NotEqual(t, string(first), string(second))
	assert.Contains(t, string(second), "c2")
	assert.NotContains(t, string(second), "c1")
}

func TestWriteFailsCleanlyWhenDirectoryMissing(t *testing.T) {
	m := New(filepath.Join(t.TempDir(), "nonexistent-subdir", "envs.json"))
	err := m.Write(map[string]autoconfig.Environment{})
	require.Error(t, err)
}
