package audit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vwerrors "github.com/vaultwatch/vaultwatch/internal/errors"
)

// captureSink records emitted events for assertions.
type captureSink struct {
	name string

	mu     sync.Mutex
	events []Event
}

func (c *captureSink) Name() string { return c.name }

func (c *captureSink) Emit(event *Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, *event)
	return nil
}

func (c *captureSink) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// failingSink always errors.
type failingSink struct{}

func (f *failingSink) Name() string      { return "failing" }
func (f *failingSink) Emit(*Event) error { return fmt.Errorf("disk on fire") }

// panickySink panics on every emit.
type panickySink struct{}

func (p *panickySink) Name() string      { return "panicky" }
func (p *panickySink) Emit(*Event) error { panic("sink bug") }

func waitForEvents(t *testing.T, sink *captureSink, want int) []Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if events := sink.Events(); len(events) >= want {
			return events
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events, have %d", want, len(sink.Events()))
	return nil
}

func TestLogger_DeliversToAllSinks(t *testing.T) {
	t.Parallel()

	logger := New(Options{QueueSize: 10})
	defer func() { _ = logger.Close(time.Second) }()

	first := &captureSink{name: "first"}
	second := &captureSink{name: "second"}
	logger.AddSink(first)
	logger.AddSink(second)

	logger.LogEvent(EventAuthFailure, LevelMedium, "wrong password",
		WithUser("alice"), WithResource("vault"))

	events := waitForEvents(t, first, 1)
	assert.Equal(t, EventAuthFailure, events[0].Type)
	assert.Equal(t, "alice", events[0].UserID)
	assert.Equal(t, "vault", events[0].Resource)
	assert.False(t, events[0].Timestamp.IsZero())
	assert.NotEmpty(t, events[0].SessionID)
	assert.NotZero(t, events[0].ProcessID)

	waitForEvents(t, second, 1)
}

func TestLogger_PreservesOrderPerSink(t *testing.T) {
	t.Parallel()

	logger := New(Options{QueueSize: 100})
	defer func() { _ = logger.Close(time.Second) }()

	sink := &captureSink{name: "capture"}
	logger.AddSink(sink)

	for i := 0; i < 20; i++ {
		logger.LogEvent(EventSecretAccessed, LevelLow, fmt.Sprintf("access %d", i))
	}

	events := waitForEvents(t, sink, 20)
	for i := 0; i < 20; i++ {
		assert.Equal(t, fmt.Sprintf("access %d", i), events[i].Message)
	}
}

func TestLogger_RejectsUnknownEventType(t *testing.T) {
	t.Parallel()

	logger := New(Options{QueueSize: 10})
	defer func() { _ = logger.Close(time.Second) }()

	sink := &captureSink{name: "capture"}
	logger.AddSink(sink)

	logger.LogEvent(EventType("invented"), LevelLow, "nope")
	logger.LogEvent(EventAuthSuccess, LevelLow, "real")

	events := waitForEvents(t, sink, 1)
	assert.Equal(t, EventAuthSuccess, events[0].Type)
}

func TestLogger_DropsWhenQueueFull(t *testing.T) {
	t.Parallel()

	// No sinks and a blocked worker would be nicer, but a tiny queue
	// plus a slow sink is deterministic enough: fill the queue while
	// the worker is stuck in the first emit.
	release := make(chan struct{})
	slow := &blockingSink{release: release}

	logger := New(Options{QueueSize: 2})
	logger.AddSink(slow)

	// First event occupies the worker, the next two fill the queue,
	// everything after that must be dropped.
	for i := 0; i < 10; i++ {
		logger.LogEvent(EventSecretAccessed, LevelLow, fmt.Sprintf("event %d", i))
	}

	assert.Eventually(t, func() bool {
		return logger.DroppedCount() > 0
	}, 2*time.Second, 5*time.Millisecond)

	close(release)
	require.NoError(t, logger.Close(2*time.Second))
}

type blockingSink struct {
	release chan struct{}
	once    sync.Once
}

func (b *blockingSink) Name() string { return "blocking" }

func (b *blockingSink) Emit(*Event) error {
	b.once.Do(func() { <-b.release })
	return nil
}

func TestLogger_SinkFailureDoesNotAffectOthers(t *testing.T) {
	t.Parallel()

	logger := New(Options{QueueSize: 10})
	defer func() { _ = logger.Close(time.Second) }()

	healthy := &captureSink{name: "healthy"}
	logger.AddSink(&failingSink{})
	logger.AddSink(&panickySink{})
	logger.AddSink(healthy)

	logger.LogEvent(EventExport, LevelHigh, "vault exported")

	events := waitForEvents(t, healthy, 1)
	assert.Equal(t, EventExport, events[0].Type)
}

func TestLogger_RemoveSink(t *testing.T) {
	t.Parallel()

	logger := New(Options{QueueSize: 10})
	defer func() { _ = logger.Close(time.Second) }()

	logger.AddSink(&captureSink{name: "keep"})
	logger.AddSink(&captureSink{name: "drop"})

	assert.True(t, logger.RemoveSink("drop"))
	assert.False(t, logger.RemoveSink("drop"))
	assert.Len(t, logger.Sinks(), 1)
}

func TestLogger_CloseDrainsQueue(t *testing.T) {
	t.Parallel()

	logger := New(Options{QueueSize: 100})
	sink := &captureSink{name: "capture"}
	logger.AddSink(sink)

	for i := 0; i < 50; i++ {
		logger.LogEvent(EventSecretAccessed, LevelLow, fmt.Sprintf("access %d", i))
	}

	require.NoError(t, logger.Close(2*time.Second))
	assert.Len(t, sink.Events(), 50)
}

func TestLogger_CloseIdempotentAndDiscardsAfter(t *testing.T) {
	t.Parallel()

	logger := New(Options{QueueSize: 10})
	sink := &captureSink{name: "capture"}
	logger.AddSink(sink)

	require.NoError(t, logger.Close(time.Second))
	require.NoError(t, logger.Close(time.Second))

	logger.LogEvent(EventAuthSuccess, LevelLow, "after close")
	assert.Empty(t, sink.Events())
}

func TestLogger_RecentEventsRequiresReplayableSink(t *testing.T) {
	t.Parallel()

	logger := New(Options{QueueSize: 10})
	defer func() { _ = logger.Close(time.Second) }()

	logger.AddSink(&captureSink{name: "capture"})

	_, err := logger.RecentEvents(10, nil, LevelLow)
	assert.Error(t, err)
}

func TestLogger_RecentEventsViaFileSink(t *testing.T) {
	t.Parallel()

	logger := New(Options{QueueSize: 10})

	sink, err := NewFileSink(FileSinkOptions{Dir: t.TempDir()})
	require.NoError(t, err)
	logger.AddSink(sink)

	logger.LogEvent(EventAuthFailure, LevelMedium, "wrong password")
	require.NoError(t, logger.Close(2*time.Second))

	events, err := logger.RecentEvents(10, nil, LevelLow)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "wrong password", events[0].Message)
}

func TestLogger_SubmitSentinels(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	slow := &blockingSink{release: release}

	logger := New(Options{QueueSize: 1})
	logger.AddSink(slow)

	// With the worker stuck in the first emit and a one-slot queue, at
	// most two submissions can land; the third must report a full queue.
	var full bool
	for i := 0; i < 3; i++ {
		event := &Event{Type: EventSecretAccessed, Level: LevelLow, Timestamp: time.Now().UTC()}
		if err := logger.submit(event); err != nil {
			assert.ErrorIs(t, err, vwerrors.ErrQueueFull)
			full = true
		}
	}
	assert.True(t, full)

	close(release)
	require.NoError(t, logger.Close(2*time.Second))

	event := &Event{Type: EventSecretAccessed, Level: LevelLow, Timestamp: time.Now().UTC()}
	assert.ErrorIs(t, logger.submit(event), vwerrors.ErrLoggerClosed)
}
