package audit

import "fmt"

// The wrappers below are the canonical vocabulary the host application
// uses instead of constructing events directly. Each funnels into
// LogEvent with a fixed event-type and level mapping.

// LogAuthentication records a master-passphrase or unlock attempt.
func (l *Logger) LogAuthentication(success bool, userID string, opts ...Option) {
	opts = append(opts, WithUser(userID))
	if success {
		l.LogEvent(EventAuthSuccess, LevelLow, "authentication succeeded", opts...)
		return
	}
	l.LogEvent(EventAuthFailure, LevelMedium, "authentication failed", opts...)
}

// LogTwoFactor records a second-factor attempt.
func (l *Logger) LogTwoFactor(success bool, userID string, opts ...Option) {
	opts = append(opts, WithUser(userID))
	if success {
		l.LogEvent(EventTwoFactorSuccess, LevelLow, "second factor accepted", opts...)
		return
	}
	l.LogEvent(EventTwoFactorFailure, LevelMedium, "second factor rejected", opts...)
}

// passwordActions maps store operations onto the closed event set.
var passwordActions = map[string]struct {
	eventType EventType
	level     Level
}{
	"create": {EventSecretCreated, LevelLow},
	"access": {EventSecretAccessed, LevelLow},
	"modify": {EventSecretModified, LevelLow},
	"delete": {EventSecretDeleted, LevelMedium},
	"copy":   {EventSecretCopied, LevelLow},
}

// LogPasswordAccess records an operation on one stored secret. action
// is one of create, access, modify, delete, copy; anything else is
// recorded as suspicious activity so a buggy caller surfaces in the
// event stream instead of disappearing.
func (l *Logger) LogPasswordAccess(action, resource string, opts ...Option) {
	opts = append(opts, WithResource(resource))
	mapping, ok := passwordActions[action]
	if !ok {
		l.LogEvent(EventSuspiciousActivity, LevelMedium,
			fmt.Sprintf("unrecognized password-store action %q", action), opts...)
		return
	}
	l.LogEvent(mapping.eventType, mapping.level,
		fmt.Sprintf("secret %s", action), opts...)
}

// LogSecurityEvent records an anomaly observed by the host application.
// High and critical levels are classified as violations, lower levels
// as suspicious activity.
func (l *Logger) LogSecurityEvent(level Level, message string, opts ...Option) {
	eventType := EventSuspiciousActivity
	if level >= LevelHigh {
		eventType = EventSecurityViolation
	}
	l.LogEvent(eventType, level, message, opts...)
}

// LogComplianceEvent records the outcome of a compliance check.
// Failed checks are raised to medium so they survive console filters.
func (l *Logger) LogComplianceEvent(standard, check string, passed bool, opts ...Option) {
	level := LevelLow
	outcome := "passed"
	if !passed {
		level = LevelMedium
		outcome = "failed"
	}
	opts = append(opts,
		WithDetail("standard", standard),
		WithDetail("check", check),
		WithDetail("outcome", outcome),
	)
	l.LogEvent(EventComplianceCheck, level,
		fmt.Sprintf("compliance check %s %s (%s)", check, outcome, standard), opts...)
}
