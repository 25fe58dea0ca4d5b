package audit

import (
	"fmt"
	"io"
	"os"
	"time"
)

// ConsoleSink writes a single human-readable line per event at or above
// its minimum level. Intended for interactive monitor sessions, not as
// a durable record.
type ConsoleSink struct {
	out      io.Writer
	minLevel Level
	noColor  bool
}

// NewConsoleSink creates a console sink writing to stderr.
func NewConsoleSink(minLevel Level, noColor bool) *ConsoleSink {
	return &ConsoleSink{out: os.Stderr, minLevel: minLevel, noColor: noColor}
}

// NewConsoleSinkTo creates a console sink writing to w. Used in tests.
func NewConsoleSinkTo(w io.Writer, minLevel Level, noColor bool) *ConsoleSink {
	return &ConsoleSink{out: w, minLevel: minLevel, noColor: noColor}
}

// Name implements Sink.
func (s *ConsoleSink) Name() string { return "console" }

var levelColors = map[Level]string{
	LevelLow:      "\033[36m", // cyan
	LevelMedium:   "\033[33m", // yellow
	LevelHigh:     "\033[31m", // red
	LevelCritical: "\033[35m", // magenta
}

// Emit implements Sink.
func (s *ConsoleSink) Emit(event *Event) error {
	if event.Level < s.minLevel {
		return nil
	}

	line := fmt.Sprintf("%s [%s] %s: %s",
		event.Timestamp.Format(time.RFC3339),
		event.Level, event.Type, event.Message)
	if event.Resource != "" {
		line += fmt.Sprintf(" (%s)", event.Resource)
	}

	if s.noColor {
		_, err := fmt.Fprintln(s.out, line)
		return err
	}
	_, err := fmt.Fprintf(s.out, "%s%s\033[0m\n", levelColors[event.Level], line)
	return err
}
