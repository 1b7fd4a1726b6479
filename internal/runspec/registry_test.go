package runspec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemplate(t *testing.T, dir, file, name string) {
	t.Helper()
	doc := `
name: ` + name + `
symbol: BTCUSDT
timeframe: 1h
start_ts: 0
end_ts: 3600000
execution_policies:
  - name: entry
    priority: 30
fill_model:
  name: close
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(doc), 0o644))
}

func TestRegistryLoadsTemplates(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "b.yaml", "beta")
	writeTemplate(t, dir, "a.yaml", "alpha")
	// 非模板文件直接跳过
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore"), 0o644))

	reg, err := NewRegistry(dir)
	require.NoError(t, err)
	defer reg.Close()

	assert.Equal(t, []string{"alpha", "beta"}, reg.Names())

	spec, ok := reg.Resolve("alpha")
	require.True(t, ok)
	assert.Equal(t, "BTCUSDT", spec.Symbol)

	_, ok = reg.Resolve("missing")
	assert.False(t, ok)

	snap := reg.Snapshot()
	assert.Equal(t, int64(1), snap.Version)
	assert.Len(t, snap.Specs, 2)
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "a.yaml", "same")
	writeTemplate(t, dir, "b.yaml", "same")

	_, err := NewRegistry(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "重复")
}

func TestRegistryRejectsInvalidTemplate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("name: only"), 0o644))

	_, err := NewRegistry(dir)
	require.Error(t, err)
}
