//go:build !windows && !plan9

package audit

import (
	"fmt"
	"log/syslog"
)

// SyslogSink forwards events to the local syslog facility. Dial failure
// at construction is reported to the caller, who logs it and continues
// without the sink; syslog availability is never load-bearing.
type SyslogSink struct {
	writer *syslog.Writer
}

// NewSyslogSink connects to the local syslog daemon under the given tag.
func NewSyslogSink(tag string) (*SyslogSink, error) {
	if tag == "" {
		tag = "vaultwatch"
	}
	w, err := syslog.New(syslog.LOG_AUTHPRIV|syslog.LOG_NOTICE, tag)
	if err != nil {
		return nil, fmt.Errorf("syslog unavailable: %w", err)
	}
	return &SyslogSink{writer: w}, nil
}

// Name implements Sink.
func (s *SyslogSink) Name() string { return "syslog" }

// Emit implements Sink, mapping event level to syslog priority.
func (s *SyslogSink) Emit(event *Event) error {
	line := fmt.Sprintf("%s %s user=%s session=%s resource=%s msg=%q",
		event.Type, event.Level, event.UserID, event.SessionID,
		event.Resource, event.Message)

	switch event.Level {
	case LevelCritical:
		return s.writer.Crit(line)
	case LevelHigh:
		return s.writer.Err(line)
	case LevelMedium:
		return s.writer.Warning(line)
	default:
		return s.writer.Info(line)
	}
}

// Close implements io.Closer.
func (s *SyslogSink) Close() error {
	return s.writer.Close()
}
