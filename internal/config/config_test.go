package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultwatch/vaultwatch/internal/audit"
	vwerrors "github.com/vaultwatch/vaultwatch/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vaultwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{Path: filepath.Join(t.TempDir(), "absent.yaml")}
	require.NoError(t, cfg.Load())

	def := cfg.Definition
	assert.Equal(t, 1, def.Version)
	assert.Equal(t, audit.DefaultQueueSize, def.Audit.QueueSize)
	assert.Equal(t, 10, def.Audit.MaxFileSizeMB)
	assert.True(t, def.Audit.Console.Enabled)
	assert.Equal(t, "medium", def.Audit.Console.MinLevel)
	assert.True(t, def.Monitoring.Enabled)
	assert.Equal(t, 30*time.Second, def.MonitorInterval())
	assert.Equal(t, "vaultwatch", def.Keyring.Service)
	assert.NotEmpty(t, def.Audit.LogDir)
	assert.NotEmpty(t, def.Monitoring.IncidentDir)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
version: 1
audit:
  log_dir: /var/log/vaultwatch
  queue_size: 250
  console:
    enabled: false
    min_level: high
  syslog:
    enabled: true
    tag: vw
monitoring:
  enabled: false
  interval_seconds: 120
  disabled_rules:
    - crash_loop
notifications:
  desktop:
    enabled: true
keyring:
  service: myvault
`)

	cfg := &Config{Path: path}
	require.NoError(t, cfg.Load())

	def := cfg.Definition
	assert.Equal(t, "/var/log/vaultwatch", def.Audit.LogDir)
	assert.Equal(t, 250, def.Audit.QueueSize)
	assert.False(t, def.Audit.Console.Enabled)
	assert.Equal(t, audit.LevelHigh, def.ConsoleMinLevel())
	assert.True(t, def.Audit.Syslog.Enabled)
	assert.Equal(t, "vw", def.Audit.Syslog.Tag)
	assert.False(t, def.Monitoring.Enabled)
	assert.Equal(t, 2*time.Minute, def.MonitorInterval())
	assert.Equal(t, []string{"crash_loop"}, def.Monitoring.DisabledRules)
	assert.True(t, def.Notifications.Desktop.Enabled)
	assert.Equal(t, "myvault", def.Keyring.Service)
}

func TestLoad_MalformedYAML(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "version: [unclosed")
	cfg := &Config{Path: path}
	assert.Error(t, cfg.Load())
}

func TestLoad_UnsupportedVersion(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "version: 2")
	cfg := &Config{Path: path}

	err := cfg.Load()
	require.Error(t, err)

	var cfgErr vwerrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "version", cfgErr.Field)
}

func TestLoad_InvalidConsoleLevel(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
version: 1
audit:
  console:
    min_level: verbose
`)
	cfg := &Config{Path: path}

	err := cfg.Load()
	require.Error(t, err)

	var cfgErr vwerrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "audit.console.min_level", cfgErr.Field)
	assert.Contains(t, cfgErr.Suggestion, "low, medium, high, critical")
}

func TestAuditSetupMapping(t *testing.T) {
	t.Parallel()

	def := DefaultDefinition()
	def.Audit.LogDir = "/tmp/logs"
	def.Audit.MaxFileSizeMB = 2
	def.Audit.Syslog.Enabled = true
	def.Audit.Syslog.Tag = "vw"
	def.applyDefaults()

	setup := def.AuditSetup(nil, true)
	assert.Equal(t, "/tmp/logs", setup.LogDir)
	assert.Equal(t, audit.DefaultQueueSize, setup.QueueSize)
	assert.Equal(t, int64(2*1024*1024), setup.MaxFileBytes)
	assert.Equal(t, audit.DefaultBackupCount, setup.BackupCount)
	assert.True(t, setup.EnableConsole)
	assert.Equal(t, audit.LevelMedium, setup.ConsoleMinLevel)
	assert.True(t, setup.NoColor)
	assert.True(t, setup.EnableSyslog)
	assert.Equal(t, "vw", setup.SyslogTag)
}
