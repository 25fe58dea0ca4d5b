// Package config defines the configuration surface consumed by the
// telemetry core. Everything is parsed once and passed into
// constructors; no package reads a global store at runtime.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vaultwatch/vaultwatch/internal/audit"
	vwerrors "github.com/vaultwatch/vaultwatch/internal/errors"
	"github.com/vaultwatch/vaultwatch/internal/incident"
	"github.com/vaultwatch/vaultwatch/internal/logging"
	"github.com/vaultwatch/vaultwatch/internal/validation"
)

// Config holds runtime state shared across CLI commands.
type Config struct {
	Path       string
	Logger     *logging.Logger
	NoColor    bool
	Definition *Definition
}

// Definition is the vaultwatch.yaml structure.
type Definition struct {
	Version       int                `yaml:"version"`
	Audit         AuditConfig        `yaml:"audit"`
	Monitoring    MonitoringConfig   `yaml:"monitoring"`
	Notifications NotificationConfig `yaml:"notifications,omitempty"`
	Keyring       KeyringConfig      `yaml:"keyring,omitempty"`
	SecretPolicy  validation.Policy  `yaml:"secret_policy,omitempty"`
}

// AuditConfig configures the audit pipeline and its sinks.
type AuditConfig struct {
	// LogDir holds the per-day JSONL files. Defaults to
	// ~/.vaultwatch/logs.
	LogDir string `yaml:"log_dir,omitempty"`

	// QueueSize bounds the event queue; full means drop-and-warn.
	QueueSize int `yaml:"queue_size,omitempty"`

	// MaxFileSizeMB is the rotation threshold for one day file.
	MaxFileSizeMB int `yaml:"max_file_size_mb,omitempty"`

	// BackupCount is how many rotated siblings are kept.
	BackupCount int `yaml:"backup_count,omitempty"`

	Console ConsoleConfig `yaml:"console,omitempty"`
	Syslog  SyslogConfig  `yaml:"syslog,omitempty"`
}

// ConsoleConfig configures the console sink.
type ConsoleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	MinLevel string `yaml:"min_level,omitempty"`
}

// SyslogConfig configures the syslog sink.
type SyslogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Tag     string `yaml:"tag,omitempty"`
}

// MonitoringConfig configures the incident detection loop.
type MonitoringConfig struct {
	Enabled         bool   `yaml:"enabled"`
	IntervalSeconds int    `yaml:"interval_seconds,omitempty"`
	RulesPath       string `yaml:"rules_path,omitempty"`
	IncidentDir     string `yaml:"incident_dir,omitempty"`

	// DisabledRules turns built-in or file rules off by id without
	// editing the rules file.
	DisabledRules []string `yaml:"disabled_rules,omitempty"`
}

// NotificationConfig configures alert channels for the responder.
type NotificationConfig struct {
	Desktop DesktopConfig              `yaml:"desktop,omitempty"`
	Email   *incident.EmailAlertConfig `yaml:"email,omitempty"`
}

// DesktopConfig enables OS desktop notifications.
type DesktopConfig struct {
	Enabled bool `yaml:"enabled"`
}

// KeyringConfig names the OS credential store namespace.
type KeyringConfig struct {
	Service string `yaml:"service,omitempty"`
}

// Load reads and parses the configuration file, applying defaults and
// validating once. A missing file yields the defaults.
func (c *Config) Load() error {
	def := DefaultDefinition()

	if c.Path != "" {
		data, err := os.ReadFile(c.Path)
		if err != nil {
			if !os.IsNotExist(err) {
				return fmt.Errorf("failed to read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, def); err != nil {
			return vwerrors.SimplifyError(fmt.Errorf("failed to parse %s: %w", c.Path, err))
		}
	}

	def.applyDefaults()
	if err := def.Validate(); err != nil {
		return err
	}
	c.Definition = def
	return nil
}

// DefaultDefinition returns the built-in configuration.
func DefaultDefinition() *Definition {
	return &Definition{
		Version: 1,
		Audit: AuditConfig{
			QueueSize:     audit.DefaultQueueSize,
			MaxFileSizeMB: 10,
			BackupCount:   audit.DefaultBackupCount,
			Console:       ConsoleConfig{Enabled: true, MinLevel: "medium"},
		},
		Monitoring: MonitoringConfig{
			Enabled:         true,
			IntervalSeconds: 30,
		},
	}
}

func (d *Definition) applyDefaults() {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".vaultwatch")

	if d.Audit.LogDir == "" {
		d.Audit.LogDir = filepath.Join(base, "logs")
	}
	if d.Audit.QueueSize <= 0 {
		d.Audit.QueueSize = audit.DefaultQueueSize
	}
	if d.Audit.MaxFileSizeMB <= 0 {
		d.Audit.MaxFileSizeMB = 10
	}
	if d.Audit.BackupCount <= 0 {
		d.Audit.BackupCount = audit.DefaultBackupCount
	}
	if d.Audit.Console.MinLevel == "" {
		d.Audit.Console.MinLevel = "medium"
	}
	if d.Audit.Syslog.Tag == "" {
		d.Audit.Syslog.Tag = "vaultwatch"
	}
	if d.Monitoring.IntervalSeconds <= 0 {
		d.Monitoring.IntervalSeconds = 30
	}
	if d.Monitoring.IncidentDir == "" {
		d.Monitoring.IncidentDir = filepath.Join(base, "incidents")
	}
	if d.Keyring.Service == "" {
		d.Keyring.Service = "vaultwatch"
	}
	if d.SecretPolicy.MinLength <= 0 && d.SecretPolicy.MinClasses <= 0 {
		d.SecretPolicy = validation.DefaultPolicy()
	}
}

// Validate checks field constraints once at load time.
func (d *Definition) Validate() error {
	if d.Version != 1 {
		return vwerrors.ConfigError{
			Field: "version", Value: d.Version,
			Message:    "unsupported configuration version",
			Suggestion: "Set 'version: 1'",
		}
	}
	if _, err := audit.ParseLevel(d.Audit.Console.MinLevel); err != nil {
		return vwerrors.ConfigError{
			Field: "audit.console.min_level", Value: d.Audit.Console.MinLevel,
			Message:    err.Error(),
			Suggestion: "Use one of: low, medium, high, critical",
		}
	}
	return nil
}

// ConsoleMinLevel returns the parsed console threshold. Call after
// Validate.
func (d *Definition) ConsoleMinLevel() audit.Level {
	level, _ := audit.ParseLevel(d.Audit.Console.MinLevel)
	return level
}

// MonitorInterval returns the detection loop period.
func (d *Definition) MonitorInterval() time.Duration {
	return time.Duration(d.Monitoring.IntervalSeconds) * time.Second
}

// AuditSetup maps the configuration onto the audit pipeline's setup
// struct.
func (d *Definition) AuditSetup(diag *logging.Logger, noColor bool) audit.SetupConfig {
	return audit.SetupConfig{
		LogDir:          d.Audit.LogDir,
		QueueSize:       d.Audit.QueueSize,
		MaxFileBytes:    int64(d.Audit.MaxFileSizeMB) * 1024 * 1024,
		BackupCount:     d.Audit.BackupCount,
		EnableConsole:   d.Audit.Console.Enabled,
		ConsoleMinLevel: d.ConsoleMinLevel(),
		NoColor:         noColor,
		EnableSyslog:    d.Audit.Syslog.Enabled,
		SyslogTag:       d.Audit.Syslog.Tag,
		Diag:            diag,
	}
}
