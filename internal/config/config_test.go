package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "gemini-2.5-pro", cfg.LLM.Model)
	assert.Equal(t, 10, cfg.Pipeline.RetryBudget)
	assert.Equal(t, "30s", cfg.Simulator.CompileTimeout)
	assert.Equal(t, "30s", cfg.Simulator.RunTimeout)
	assert.Equal(t, "chipster.db", cfg.Store.ArchivePath)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "no-such-file.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Pipeline.RetryBudget, cfg.Pipeline.RetryBudget)
}

func TestLoadLayersFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chipster.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  model: gemini-2.5-flash
pipeline:
  retry_budget: 3
simulator:
  run_timeout: 2m
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.Model)
	assert.Equal(t, 3, cfg.Pipeline.RetryBudget)
	assert.Equal(t, "2m", cfg.Simulator.RunTimeout)
	// Untouched sections keep their defaults.
	assert.Equal(t, "30s", cfg.Simulator.CompileTimeout)
	assert.Equal(t, "generated", cfg.Store.OutputDir)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [not a mapping"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnvPrefersGeminiKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "gem")
	t.Setenv("GOOGLE_API_KEY", "goo")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "gem", cfg.LLM.APIKey)
}

func TestApplyEnvFallsBackToGoogleKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "goo")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "goo", cfg.LLM.APIKey)
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 30*time.Second, Duration("30s", time.Minute))
	assert.Equal(t, time.Minute, Duration("", time.Minute))
	assert.Equal(t, time.Minute, Duration("soon", time.Minute))
	assert.Equal(t, time.Minute, Duration("-5s", time.Minute))
}
