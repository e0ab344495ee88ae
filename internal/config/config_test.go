package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MIRADOR_INV_CONFIG", "")
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":50061", cfg.Server.Address)
	assert.True(t, cfg.Policy.AlwaysInvestigateOperatorQueries)
	assert.Equal(t, 4, cfg.Workers.MaxConcurrent)
	assert.Equal(t, 5, cfg.Inference.MaxAttempts)
	assert.Equal(t, 1024, cfg.Inference.Budget("triage").MaxTokens)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
server:
  address: ":6000"
inference:
  model: test-model
  maxAttempts: 3
  stages:
    diagnosis:
      maxTokens: 512
      temperature: 0.3
workers:
  maxConcurrent: 8
policy:
  alwaysInvestigateOperatorQueries: false
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	t.Setenv("MIRADOR_INV_STORE_PATH", "/tmp/inv.db")
	t.Setenv("MIRADOR_INV_CACHE_TTL", "2m")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":6000", cfg.Server.Address)
	assert.Equal(t, "test-model", cfg.Inference.Model)
	assert.Equal(t, 3, cfg.Inference.MaxAttempts)
	assert.Equal(t, 8, cfg.Workers.MaxConcurrent)
	assert.False(t, cfg.Policy.AlwaysInvestigateOperatorQueries)
	assert.Equal(t, "/tmp/inv.db", cfg.Store.Path)
	assert.Equal(t, 2*time.Minute, cfg.Cache.TTL)

	budget := cfg.Inference.Budget("diagnosis")
	assert.Equal(t, 512, budget.MaxTokens)
	assert.InDelta(t, 0.3, budget.Temperature, 1e-9)
	assert.Equal(t, 2048, cfg.Inference.Budget("remediation").MaxTokens)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	cfg.Workers.MaxConcurrent = 0
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Tracing.Enabled = true
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Inference.InitialBackoff = time.Minute
	assert.Error(t, cfg.Validate())
}

func TestLoadSampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "investigator.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.LogQuery.BaseURL)
	assert.True(t, cfg.Execution.DryRun)
	assert.True(t, cfg.Routing.Watch)
	assert.Equal(t, 2048, cfg.Inference.Budget("remediation").MaxTokens)
	assert.Equal(t, 15*time.Minute, cfg.Cache.TTL)
}
