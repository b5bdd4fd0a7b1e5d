package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ScanDir = ""
	cfg.DBPath = ""
	cfg.Nikto.Concurrency = 0
	cfg.Scoring.CVSSWeight = 1.5
	cfg.Scoring.TopN = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan_dir")
	assert.Contains(t, err.Error(), "db_path")
	assert.Contains(t, err.Error(), "concurrency")
	assert.Contains(t, err.Error(), "cvss_weight")
	assert.Contains(t, err.Error(), "top_n")
}

func TestValidateConcurrencyBounds(t *testing.T) {
	for _, bad := range []int{0, -1, 17} {
		cfg := DefaultConfig()
		cfg.Nikto.Concurrency = bad
		assert.Error(t, cfg.Validate(), "concurrency %d", bad)
	}
	for _, ok := range []int{1, 8, 16} {
		cfg := DefaultConfig()
		cfg.Nikto.Concurrency = ok
		assert.NoError(t, cfg.Validate(), "concurrency %d", ok)
	}
}

func TestValidateWeightBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scoring.AgeWeight = -0.1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "age_weight")
}

func TestValidateAIProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AI.Enabled = true
	cfg.AI.Provider = "gemini"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"gemini"`)

	// Provider is only checked when AI analysis is on.
	cfg.AI.Enabled = false
	assert.NoError(t, cfg.Validate())

	for _, provider := range []string{"openai", "ollama"} {
		cfg := DefaultConfig()
		cfg.AI.Enabled = true
		cfg.AI.Provider = provider
		assert.NoError(t, cfg.Validate(), provider)
	}
}

func TestWriteDefaultLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vulnpipe.yaml")
	require.NoError(t, WriteDefault(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vulnpipe.yaml")
	raw := `scan_dir: /var/lib/vulnpipe/scans
db_path: /var/lib/vulnpipe/history.db
nikto:
  path: nikto
  concurrency: 4
  enabled: false
scoring:
  cvss_weight: 0.5
  epss_weight: 0.3
  exploit_weight: 0.1
  exposure_weight: 0.05
  age_weight: 0.05
  top_n: 25
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/vulnpipe/scans", cfg.ScanDir)
	assert.Equal(t, 4, cfg.Nikto.Concurrency)
	assert.False(t, cfg.Nikto.Enabled)
	assert.Equal(t, 0.5, cfg.Scoring.CVSSWeight)
	assert.Equal(t, 25, cfg.Scoring.TopN)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vulnpipe.yaml")
	raw := `scan_dir: scans
db_path: history.db
nikto:
  concurrency: 99
scoring:
  top_n: 10
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
