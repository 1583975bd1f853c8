package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://relay.arda.app/v1", cfg.Relay.BaseURL)
	assert.InDelta(t, 5.0, cfg.Relay.RatePerSecond, 0.001)
	assert.Equal(t, 5, cfg.Relay.Burst)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, int64(2048), cfg.Anthropic.MaxTokens)
	assert.Equal(t, "orders.db", cfg.Archive.Path)
	assert.Equal(t, 50, cfg.Job.MaxCandidates)
	assert.Equal(t, 5, cfg.Job.FallbackThreshold)
	assert.Equal(t, 60, cfg.Job.RetentionMins)
	assert.Equal(t, 10, cfg.Job.SweepIntervalMins)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chTempDir(t)

	yaml := `
relay:
  token: tok-123
log:
  level: debug
  format: console
server:
  port: 9090
job:
  max_candidates: 25
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "tok-123", cfg.Relay.Token)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 25, cfg.Job.MaxCandidates)
	// Defaults still apply for unset values
	assert.Equal(t, 60, cfg.Job.RetentionMins)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chTempDir(t)

	yaml := `
relay:
  token: from-file
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("REORDER_RELAY_TOKEN", "from-env")
	t.Setenv("REORDER_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "from-env", cfg.Relay.Token)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chTempDir(t)

	t.Setenv("REORDER_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Relay.Token = "tok"
	cfg.Anthropic.Key = "sk-ant-key"
	cfg.Archive.Path = "orders.db"
	cfg.Server.Port = 8080
	cfg.Job.MaxCandidates = 50
	cfg.Job.RetentionMins = 60
	return cfg
}

func TestValidateIngest_AllPresent(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("ingest"))
}

func TestValidateIngest_MissingCredentials(t *testing.T) {
	cfg := validDefaults()
	cfg.Relay.Token = ""
	cfg.Anthropic.Key = ""

	err := cfg.Validate("ingest")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "relay.token is required")
	assert.Contains(t, err.Error(), "anthropic.key is required")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateReport_NeedsArchive(t *testing.T) {
	cfg := validDefaults()
	cfg.Archive.Path = ""

	err := cfg.Validate("report")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "archive.path is required")
}

func TestValidateCandidateBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Job.MaxCandidates = 0
	err := cfg.Validate("ingest")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "max_candidates must be between 1 and 500")

	cfg.Job.MaxCandidates = 501
	err = cfg.Validate("ingest")
	assert.Error(t, err)

	cfg.Job.MaxCandidates = 500
	assert.NoError(t, cfg.Validate("ingest"))
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
