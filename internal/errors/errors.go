package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the security invariants of the telemetry core.
// These are compared with errors.Is at call sites, so they must be
// stable values rather than ad-hoc fmt.Errorf results.
var (
	// ErrBufferWiped is returned when a secure buffer or string is
	// accessed after Wipe(). Access after wipe must fail loudly; it
	// never silently reads back zeroed memory.
	ErrBufferWiped = errors.New("secure memory already wiped")

	// ErrOutOfBounds is returned when a read or write would exceed the
	// capacity of a fixed-size secure buffer.
	ErrOutOfBounds = errors.New("access exceeds buffer capacity")

	// ErrQueueFull indicates the audit queue rejected an event. The
	// event is dropped and a local warning emitted; producers are
	// never blocked.
	ErrQueueFull = errors.New("audit queue full, event dropped")

	// ErrUnknownIncident is returned by incident table lookups for an
	// id that was never stored.
	ErrUnknownIncident = errors.New("unknown incident id")

	// ErrIncidentClosed is returned when a terminal incident is
	// resolved or dismissed a second time.
	ErrIncidentClosed = errors.New("incident already in a terminal state")

	// ErrLoggerClosed is returned when an event is logged after the
	// audit pipeline has been shut down.
	ErrLoggerClosed = errors.New("audit logger closed")
)

// UserError represents an error that should be shown to the operator
// with helpful context.
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context.
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// RuleError represents a malformed incident rule. Rules failing
// validation are skipped at load time; the remaining rules register
// normally.
type RuleError struct {
	RuleID  string
	Field   string
	Message string
}

func (e RuleError) Error() string {
	msg := "invalid incident rule"
	if e.RuleID != "" {
		msg += fmt.Sprintf(" '%s'", e.RuleID)
	}
	if e.Field != "" {
		msg += fmt.Sprintf(" (field %s)", e.Field)
	}
	return msg + ": " + e.Message
}

// SinkError wraps a failure from a single audit sink. Sink failures are
// isolated: the event still counts as emitted to the pipeline and the
// other sinks are unaffected.
type SinkError struct {
	Sink string
	Err  error
}

func (e SinkError) Error() string {
	return fmt.Sprintf("sink %s: %v", e.Sink, e.Err)
}

func (e SinkError) Unwrap() error {
	return e.Err
}

// SimplifyError maps common low-level failures to operator-friendly
// errors. Already-friendly errors pass through unchanged.
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	rootErr := err
	for {
		unwrapped := errors.Unwrap(rootErr)
		if unwrapped == nil {
			break
		}
		rootErr = unwrapped
	}

	if _, ok := err.(UserError); ok {
		return err
	}
	if _, ok := err.(ConfigError); ok {
		return err
	}
	if _, ok := err.(RuleError); ok {
		return err
	}

	errStr := rootErr.Error()

	if strings.Contains(errStr, "yaml:") {
		return ConfigError{
			Message:    "Invalid YAML format",
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check ownership of the audit log directory; files are created owner read/write only",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "no such file or directory") {
		return UserError{
			Message:    "File or directory not found",
			Suggestion: "Verify the path exists and is spelled correctly",
			Err:        err,
		}
	}

	return err
}
