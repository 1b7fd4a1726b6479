package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", `
app:
  env: prod
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.App.Env)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, ":9980", cfg.App.HTTPAddr)
	assert.Equal(t, "data/candles", cfg.Data.Dir)
	assert.Equal(t, "data/runs.db", cfg.Runs.DBPath)
	assert.Equal(t, "configs/runspecs", cfg.Runs.TemplateDir)
	assert.Equal(t, 4, cfg.Runs.MaxConcurrent)
	assert.Equal(t, "data/reports", cfg.Report.OutputDir)
	assert.Equal(t, 30, cfg.Report.RenderTimeoutSeconds)
}

func TestLoadNormalizesLogLevel(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", `
app:
  log_level: " WARN "
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.App.LogLevel)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()

	t.Run("bad log level", func(t *testing.T) {
		path := writeConfig(t, dir, "bad-level.yaml", `
app:
  log_level: verbose
`)
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "log_level")
	})

	t.Run("max_concurrent too large", func(t *testing.T) {
		path := writeConfig(t, dir, "bad-concurrent.yaml", `
runs:
  max_concurrent: 128
`)
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_concurrent")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "nope.yaml"))
		require.Error(t, err)
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := Load("")
		require.Error(t, err)
	})
}

func TestLoadMergesIncludes(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "base.yaml", `
app:
  env: base
  http_addr: ":7000"
runs:
  max_concurrent: 2
`)
	main := writeConfig(t, dir, "config.yaml", `
include:
  - base.yaml
app:
  env: override
`)
	cfg, err := Load(main)
	require.NoError(t, err)
	// 主文件后加载，同名键覆盖 include
	assert.Equal(t, "override", cfg.App.Env)
	assert.Equal(t, ":7000", cfg.App.HTTPAddr)
	assert.Equal(t, 2, cfg.Runs.MaxConcurrent)
}

func TestLoadDetectsIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "a.yaml", "include:\n  - b.yaml\n")
	pathA := filepath.Join(dir, "a.yaml")
	writeConfig(t, dir, "b.yaml", "include:\n  - a.yaml\n")

	_, err := Load(pathA)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestExplicitZeroBeatsDefault(t *testing.T) {
	// 显式设置的键即使为空也不回填默认值
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", `
runs:
  max_concurrent: 0
`)
	_, err := Load(path)
	require.Error(t, err, "显式 0 不回填默认值，校验阶段报错")
}
