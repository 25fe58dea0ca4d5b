package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newCaptureLogger(t *testing.T) (*Logger, *captureSink) {
	t.Helper()
	logger := New(Options{QueueSize: 50})
	sink := &captureSink{name: "capture"}
	logger.AddSink(sink)
	t.Cleanup(func() { _ = logger.Close(time.Second) })
	return logger, sink
}

func TestLogAuthentication(t *testing.T) {
	t.Parallel()

	logger, sink := newCaptureLogger(t)

	logger.LogAuthentication(true, "alice")
	logger.LogAuthentication(false, "alice")

	events := waitForEvents(t, sink, 2)
	assert.Equal(t, EventAuthSuccess, events[0].Type)
	assert.Equal(t, LevelLow, events[0].Level)
	assert.Equal(t, "alice", events[0].UserID)
	assert.Equal(t, EventAuthFailure, events[1].Type)
	assert.Equal(t, LevelMedium, events[1].Level)
}

func TestLogTwoFactor(t *testing.T) {
	t.Parallel()

	logger, sink := newCaptureLogger(t)

	logger.LogTwoFactor(true, "alice")
	logger.LogTwoFactor(false, "alice")

	events := waitForEvents(t, sink, 2)
	assert.Equal(t, EventTwoFactorSuccess, events[0].Type)
	assert.Equal(t, EventTwoFactorFailure, events[1].Type)
	assert.Equal(t, LevelMedium, events[1].Level)
}

func TestLogPasswordAccess(t *testing.T) {
	t.Parallel()

	tests := []struct {
		action    string
		wantType  EventType
		wantLevel Level
	}{
		{action: "create", wantType: EventSecretCreated, wantLevel: LevelLow},
		{action: "access", wantType: EventSecretAccessed, wantLevel: LevelLow},
		{action: "modify", wantType: EventSecretModified, wantLevel: LevelLow},
		{action: "delete", wantType: EventSecretDeleted, wantLevel: LevelMedium},
		{action: "copy", wantType: EventSecretCopied, wantLevel: LevelLow},
	}

	logger, sink := newCaptureLogger(t)
	for _, tc := range tests {
		logger.LogPasswordAccess(tc.action, "vault/email")
	}

	events := waitForEvents(t, sink, len(tests))
	for i, tc := range tests {
		assert.Equal(t, tc.wantType, events[i].Type, "action %s", tc.action)
		assert.Equal(t, tc.wantLevel, events[i].Level, "action %s", tc.action)
		assert.Equal(t, "vault/email", events[i].Resource)
	}
}

func TestLogPasswordAccess_UnknownAction(t *testing.T) {
	t.Parallel()

	logger, sink := newCaptureLogger(t)
	logger.LogPasswordAccess("obliterate", "vault/email")

	events := waitForEvents(t, sink, 1)
	assert.Equal(t, EventSuspiciousActivity, events[0].Type)
	assert.Contains(t, events[0].Message, "obliterate")
}

func TestLogSecurityEvent_LevelClassification(t *testing.T) {
	t.Parallel()

	logger, sink := newCaptureLogger(t)

	logger.LogSecurityEvent(LevelLow, "odd but harmless")
	logger.LogSecurityEvent(LevelHigh, "clipboard scraping detected")
	logger.LogSecurityEvent(LevelCritical, "debugger attached")

	events := waitForEvents(t, sink, 3)
	assert.Equal(t, EventSuspiciousActivity, events[0].Type)
	assert.Equal(t, EventSecurityViolation, events[1].Type)
	assert.Equal(t, EventSecurityViolation, events[2].Type)
}

func TestLogComplianceEvent(t *testing.T) {
	t.Parallel()

	logger, sink := newCaptureLogger(t)

	logger.LogComplianceEvent("soc2", "audit-retention", true)
	logger.LogComplianceEvent("soc2", "mfa-enforced", false)

	events := waitForEvents(t, sink, 2)
	assert.Equal(t, EventComplianceCheck, events[0].Type)
	assert.Equal(t, LevelLow, events[0].Level)
	assert.Equal(t, "passed", events[0].Details["outcome"])
	assert.Equal(t, LevelMedium, events[1].Level)
	assert.Equal(t, "failed", events[1].Details["outcome"])
	assert.Equal(t, "soc2", events[1].Details["standard"])
}
