package incident

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultwatch/vaultwatch/internal/audit"
)

// recordingNotifier captures notifications for assertions.
type recordingNotifier struct {
	name string

	mu        sync.Mutex
	incidents []string
	fail      bool
	panics    bool
}

func (n *recordingNotifier) Name() string { return n.name }

func (n *recordingNotifier) Notify(incident *Incident) error {
	if n.panics {
		panic("notifier bug")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return fmt.Errorf("channel down")
	}
	n.incidents = append(n.incidents, incident.ID)
	return nil
}

func (n *recordingNotifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.incidents)
}

func testIncident(actions ...ResponseAction) *Incident {
	return &Incident{
		ID:              "INC-test-1",
		RuleID:          "brute_force",
		Title:           "Repeated authentication failures",
		Severity:        SeverityHigh,
		Status:          StatusNew,
		DetectedAt:      time.Now().UTC(),
		Source:          "alice",
		ResponseActions: actions,
	}
}

func newAuditCapture(t *testing.T) (*audit.Logger, func() []audit.Event) {
	t.Helper()

	logger := audit.New(audit.Options{QueueSize: 50})
	sink, err := audit.NewFileSink(audit.FileSinkOptions{Dir: t.TempDir()})
	require.NoError(t, err)
	logger.AddSink(sink)
	t.Cleanup(func() { _ = logger.Close(time.Second) })

	return logger, func() []audit.Event {
		require.NoError(t, logger.Close(2*time.Second))
		events, err := logger.RecentEvents(100, nil, audit.LevelLow)
		require.NoError(t, err)
		return events
	}
}

func TestResponder_AlertNotifiesAllChannels(t *testing.T) {
	t.Parallel()

	r := NewResponder(nil, nil)
	first := &recordingNotifier{name: "first"}
	second := &recordingNotifier{name: "second"}
	r.AddNotifier(first)
	r.AddNotifier(second)

	r.Respond(testIncident(ActionAlert))

	assert.Equal(t, 1, first.Count())
	assert.Equal(t, 1, second.Count())
}

func TestResponder_ChannelFailureIsolated(t *testing.T) {
	t.Parallel()

	r := NewResponder(nil, nil)
	r.AddNotifier(&recordingNotifier{name: "broken", fail: true})
	r.AddNotifier(&recordingNotifier{name: "panicky", panics: true})
	healthy := &recordingNotifier{name: "healthy"}
	r.AddNotifier(healthy)

	assert.NotPanics(t, func() {
		r.Respond(testIncident(ActionAlert))
	})
	assert.Equal(t, 1, healthy.Count())
}

func TestResponder_LockApplication(t *testing.T) {
	t.Parallel()

	r := NewResponder(nil, nil)
	notifier := &recordingNotifier{name: "desktop"}
	r.AddNotifier(notifier)

	locked := 0
	r.AddLockCallback(func() { locked++ })
	r.AddLockCallback(func() { locked++ })

	r.Respond(testIncident(ActionLockApplication))

	assert.Equal(t, 2, locked)
	assert.Equal(t, 1, notifier.Count())
}

func TestResponder_DisableFeatures(t *testing.T) {
	t.Parallel()

	r := NewResponder(nil, nil)
	notifier := &recordingNotifier{name: "desktop"}
	r.AddNotifier(notifier)

	disabled := false
	r.AddDisableCallback(func() { disabled = true })

	r.Respond(testIncident(ActionDisableFeatures))

	assert.True(t, disabled)
	// disable_features degrades quietly, no alert fan-out
	assert.Equal(t, 0, notifier.Count())
}

func TestResponder_CallbackPanicDoesNotStopOthers(t *testing.T) {
	t.Parallel()

	r := NewResponder(nil, nil)

	ran := false
	r.AddLockCallback(func() { panic("hook bug") })
	r.AddLockCallback(func() { ran = true })

	assert.NotPanics(t, func() {
		r.Respond(testIncident(ActionLockApplication))
	})
	assert.True(t, ran)
}

func TestResponder_ActionsRunInDeclaredOrder(t *testing.T) {
	t.Parallel()

	r := NewResponder(nil, nil)

	var order []string
	r.AddNotifier(&funcNotifier{name: "n", fn: func(*Incident) error {
		order = append(order, "alert")
		return nil
	}})
	r.AddLockCallback(func() { order = append(order, "lock") })

	r.Respond(testIncident(ActionAlert, ActionLockApplication))

	// lock_application notifies again before invoking the lock hooks
	assert.Equal(t, []string{"alert", "alert", "lock"}, order)
}

type funcNotifier struct {
	name string
	fn   func(*Incident) error
}

func (n *funcNotifier) Name() string { return n.name }

func (n *funcNotifier) Notify(incident *Incident) error { return n.fn(incident) }

func TestResponder_EmergencyShutdown(t *testing.T) {
	t.Parallel()

	r := NewResponder(nil, nil)
	r.grace = 10 * time.Millisecond

	exitCode := make(chan int, 1)
	r.exitFunc = func(code int) { exitCode <- code }

	flushed := false
	r.AddShutdownCallback(func() { flushed = true })

	incident := testIncident(ActionEmergencyShutdown)
	incident.Severity = SeverityCritical
	r.Respond(incident)

	assert.True(t, flushed)
	select {
	case code := <-exitCode:
		assert.Equal(t, 1, code)
	case <-time.After(2 * time.Second):
		t.Fatal("exit was never requested")
	}
}

func TestResponder_AuditTrailPerAction(t *testing.T) {
	t.Parallel()

	logger, drain := newAuditCapture(t)
	r := NewResponder(logger, nil)
	r.AddLockCallback(func() {})

	r.Respond(testIncident(ActionAlert, ActionLockApplication))

	events := drain()
	var violations []audit.Event
	for _, ev := range events {
		if ev.Type == audit.EventSecurityViolation {
			violations = append(violations, ev)
		}
	}
	require.Len(t, violations, 2)
	for _, ev := range violations {
		assert.Equal(t, audit.LevelHigh, ev.Level)
		assert.Equal(t, "INC-test-1", ev.Details["incident_id"])
		assert.Equal(t, "brute_force", ev.Details["rule_id"])
	}
}

func TestResponder_CriticalSeverityRaisesAuditLevel(t *testing.T) {
	t.Parallel()

	logger, drain := newAuditCapture(t)
	r := NewResponder(logger, nil)

	incident := testIncident(ActionLog)
	incident.Severity = SeverityCritical
	r.Respond(incident)

	events := drain()
	require.NotEmpty(t, events)
	assert.Equal(t, audit.LevelCritical, events[0].Level)
	assert.Equal(t, string(ActionLog), events[0].Details["action"])
}
