package audit

import (
	"sync"
	"time"

	"github.com/vaultwatch/vaultwatch/internal/logging"
)

// SetupConfig wires the default sink set at process start. All values
// come from the host application's configuration; this package reads
// nothing global.
type SetupConfig struct {
	LogDir          string
	QueueSize       int
	MaxFileBytes    int64
	BackupCount     int
	EnableConsole   bool
	ConsoleMinLevel Level
	NoColor         bool
	EnableSyslog    bool
	SyslogTag       string
	Diag            *logging.Logger
}

var (
	defaultMu     sync.Mutex
	defaultLogger *Logger
)

// Configure builds a Logger with the standard sinks (file always,
// console and syslog on request) and installs it as the process-wide
// instance. The returned logger is owned by the caller's shutdown
// sequence; Default exists only for call sites where plumbing the
// instance through is impractical.
func Configure(cfg SetupConfig) (*Logger, error) {
	diag := cfg.Diag
	if diag == nil {
		diag = logging.New(false, cfg.NoColor)
	}

	logger := New(Options{QueueSize: cfg.QueueSize, Diag: diag})

	fileSink, err := NewFileSink(FileSinkOptions{
		Dir:         cfg.LogDir,
		MaxBytes:    cfg.MaxFileBytes,
		BackupCount: cfg.BackupCount,
	})
	if err != nil {
		_ = logger.Close(time.Second)
		return nil, err
	}
	logger.AddSink(fileSink)

	if cfg.EnableConsole {
		logger.AddSink(NewConsoleSink(cfg.ConsoleMinLevel, cfg.NoColor))
	}

	if cfg.EnableSyslog {
		sys, err := NewSyslogSink(cfg.SyslogTag)
		if err != nil {
			// Syslog is best effort; the rest of the pipeline stands.
			diag.Warn("audit: %v", err)
		} else {
			logger.AddSink(sys)
		}
	}

	defaultMu.Lock()
	defaultLogger = logger
	defaultMu.Unlock()
	return logger, nil
}

// Default returns the configured process-wide logger, or nil before
// Configure has run. There is deliberately no lazy initialisation:
// lifetime belongs to the application's startup/shutdown sequence.
func Default() *Logger {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultLogger
}

// Shutdown closes the process-wide logger and clears the accessor.
func Shutdown(timeout time.Duration) error {
	defaultMu.Lock()
	logger := defaultLogger
	defaultLogger = nil
	defaultMu.Unlock()

	if logger == nil {
		return nil
	}
	return logger.Close(timeout)
}
