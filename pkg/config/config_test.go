package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/pkg/panel/store"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, store.DatabaseTypeSQLite, cfg.Database.Type)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, "admin", cfg.Admin.Username)
	assert.Positive(t, cfg.Engine.PortRangeStart)
	assert.GreaterOrEqual(t, cfg.Engine.PortRangeEnd, cfg.Engine.PortRangeStart)

	require.NoError(t, Validate(cfg))
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "INFO", cfg.Logging.Level)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
logging:
  level: debug
  format: json
shutdown_timeout: 5s
database:
  type: sqlite
  sqlite:
    path: /tmp/warden-test.db
engine:
  port_range_start: 30000
  port_range_end: 31000
api:
  port: 9000
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	// Level is normalized to uppercase.
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "/tmp/warden-test.db", cfg.Database.SQLite.Path)
	assert.Equal(t, 30000, cfg.Engine.PortRangeStart)
	assert.Equal(t, 31000, cfg.Engine.PortRangeEnd)
	assert.Equal(t, 9000, cfg.API.Port)

	// Unspecified values fall back to defaults.
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, 10*time.Second, cfg.API.ReadTimeout)
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
logging:
  level: info
database:
  sqlite:
    path: /tmp/warden-test.db
`)

	t.Setenv("WARDEN_LOGGING_LEVEL", "ERROR")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ERROR", cfg.Logging.Level)
}

func TestLoadDurationStrings(t *testing.T) {
	path := writeConfigFile(t, `
shutdown_timeout: 2m
database:
  sqlite:
    path: /tmp/warden-test.db
api:
  read_timeout: 15s
  jwt:
    access_token_duration: 30m
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cfg.ShutdownTimeout)
	assert.Equal(t, 15*time.Second, cfg.API.ReadTimeout)
	assert.Equal(t, 30*time.Minute, cfg.API.JWT.AccessTokenDuration)
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	path := writeConfigFile(t, `
logging:
  level: verbose
database:
  sqlite:
    path: /tmp/warden-test.db
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Logging.Level")
}

func TestValidateRejectsInvertedPortRange(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Engine.PortRangeStart = 31000
	cfg.Engine.PortRangeEnd = 30000

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port_range_start")
}

func TestValidateRejectsPortRangeOutOfBounds(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Engine.PortRangeStart = 1000
	cfg.Engine.PortRangeEnd = 70000

	err := Validate(cfg)
	require.Error(t, err)
}

func TestValidateRejectsMissingDatabasePath(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Database.SQLite.Path = ""

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database")
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Logging.Level = "DEBUG"
	cfg.API.Port = 9999
	cfg.API.JWT.Secret = "roundtrip-secret-that-is-32-chars!!!"

	require.NoError(t, SaveConfig(cfg, path))

	// Config files carry secrets and must not be world-readable.
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", loaded.Logging.Level)
	assert.Equal(t, 9999, loaded.API.Port)
	assert.Equal(t, cfg.API.JWT.Secret, loaded.API.JWT.Secret)
}
