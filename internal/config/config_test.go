package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 10, cfg.BatchLimit)
	assert.Equal(t, 100*time.Millisecond, cfg.BatchDelay)
	assert.Equal(t, "Data operacji", cfg.CSV.HeaderAnchor)
	assert.Equal(t, ';', cfg.CSV.DelimiterRune())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "assistant.yaml")
	yamlDoc := `
port: "9090"
model: gemini-2.5-pro
completion_timeout: 45s
batch_limit: 5
csv:
  header_anchor: "Transaction date"
  delimiter: ","
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))

	t.Setenv("BATCH_LIMIT", "7")
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "gemini-2.5-pro", cfg.Model)
	assert.Equal(t, 45*time.Second, cfg.CompletionTimeout)
	assert.Equal(t, 7, cfg.BatchLimit, "env overrides yaml")
	assert.Equal(t, "test-key", cfg.GeminiAPIKey)
	assert.Equal(t, "Transaction date", cfg.CSV.HeaderAnchor)
	assert.Equal(t, "#", cfg.CSV.HeaderMarker, "unset yaml keys keep defaults")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		errorString string
	}{
		{
			name:        "non-numeric port",
			mutate:      func(c *Config) { c.Port = "abc" },
			errorString: "invalid port 'abc': must be a number",
		},
		{
			name:        "port out of range",
			mutate:      func(c *Config) { c.Port = "70000" },
			errorString: "invalid port 70000: must be between 1 and 65535",
		},
		{
			name:        "batch limit zero",
			mutate:      func(c *Config) { c.BatchLimit = 0 },
			errorString: "invalid batch limit 0",
		},
		{
			name:        "short timeout",
			mutate:      func(c *Config) { c.CompletionTimeout = 10 * time.Millisecond },
			errorString: "invalid completion timeout",
		},
		{
			name:        "bad cron spec",
			mutate:      func(c *Config) { c.AutoAssignSchedule = "every tuesday" },
			errorString: "invalid auto-assign schedule",
		},
		{
			name:        "multi-char delimiter",
			mutate:      func(c *Config) { c.CSV.Delimiter = ";;" },
			errorString: "invalid CSV delimiter",
		},
		{
			name:        "missing credentials file",
			mutate:      func(c *Config) { c.GCSCredentialsFile = "/does/not/exist.json" },
			errorString: "GCS credentials file does not exist",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorString)
		})
	}
}

func TestConfig_ValidateSchedule(t *testing.T) {
	cfg := Default()
	cfg.AutoAssignSchedule = "*/15 * * * *"
	assert.NoError(t, cfg.Validate())
}

func TestConfig_BatchInterval(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 100*time.Millisecond, cfg.BatchInterval())

	cfg.BatchRatePerMinute = 6
	assert.Equal(t, 10*time.Second, cfg.BatchInterval())

	cfg.BatchRatePerMinute = 6000
	assert.Equal(t, 100*time.Millisecond, cfg.BatchInterval())
}
