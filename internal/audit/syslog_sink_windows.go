//go:build windows || plan9

package audit

import "errors"

// SyslogSink is unavailable on platforms without a syslog facility.
type SyslogSink struct{}

func NewSyslogSink(tag string) (*SyslogSink, error) {
	return nil, errors.New("syslog is not supported on this platform")
}

func (s *SyslogSink) Name() string            { return "syslog" }
func (s *SyslogSink) Emit(event *Event) error { return nil }
func (s *SyslogSink) Close() error            { return nil }
