package audit

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	vwerrors "github.com/vaultwatch/vaultwatch/internal/errors"
	"github.com/vaultwatch/vaultwatch/internal/logging"
)

// DefaultQueueSize bounds the event queue. Producers are interactive
// threads of the host application; when the queue is full an event is
// dropped with a local warning rather than blocking them.
const DefaultQueueSize = 1000

// Options configures a Logger. Zero values select defaults.
type Options struct {
	QueueSize int
	Diag      *logging.Logger
}

// Logger ingests structured security events into a bounded queue
// drained by one background worker, which fans each event out to every
// registered sink. LogEvent never blocks and never returns an error to
// the producer; capacity and sink failures stay local to the pipeline.
type Logger struct {
	queue chan *Event
	done  chan struct{}
	wg    sync.WaitGroup

	mu     sync.RWMutex
	sinks  []Sink
	closed bool

	diag *logging.Logger

	droppedMu    sync.Mutex
	droppedCount int64
}

// New creates a Logger and starts its worker.
func New(opts Options) *Logger {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Diag == nil {
		opts.Diag = logging.New(false, false)
	}

	l := &Logger{
		queue: make(chan *Event, opts.QueueSize),
		done:  make(chan struct{}),
		diag:  opts.Diag,
	}
	l.wg.Add(1)
	go l.worker()
	return l
}

// AddSink registers a sink. Safe to call concurrently with logging;
// events already in flight may or may not reach the new sink.
func (l *Logger) AddSink(sink Sink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sinks = append(l.sinks, sink)
}

// RemoveSink unregisters the sink with the given name and reports
// whether one was found. The sink is not closed; the caller decides.
func (l *Logger) RemoveSink(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, s := range l.sinks {
		if s.Name() == name {
			l.sinks = append(l.sinks[:i], l.sinks[i+1:]...)
			return true
		}
	}
	return false
}

// Sinks returns a copy of the registered sinks.
func (l *Logger) Sinks() []Sink {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Sink, len(l.sinks))
	copy(out, l.sinks)
	return out
}

// DroppedCount returns how many events were discarded on a full queue.
func (l *Logger) DroppedCount() int64 {
	l.droppedMu.Lock()
	defer l.droppedMu.Unlock()
	return l.droppedCount
}

// LogEvent enqueues a security event. Timestamp, session and process
// identity are stamped here, at enqueue time. The call returns
// immediately: a full queue drops the event and emits a local warning
// instead of applying backpressure to the caller.
func (l *Logger) LogEvent(eventType EventType, level Level, message string, opts ...Option) {
	if !eventType.Valid() {
		l.diag.Warn("audit: rejecting event with unknown type %q", string(eventType))
		return
	}

	event := &Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   message,
		SessionID: SessionID(),
		ProcessID: os.Getpid(),
		ThreadID:  threadID(),
	}
	for _, opt := range opts {
		opt(event)
	}

	switch err := l.submit(event); {
	case err == nil:
	case errors.Is(err, vwerrors.ErrLoggerClosed):
		l.diag.Debug("audit: event %s discarded after close", eventType)
	case errors.Is(err, vwerrors.ErrQueueFull):
		l.diag.Warn("audit: queue full, dropped %s event (%d dropped total)", eventType, l.DroppedCount())
	}
}

// submit attempts a non-blocking enqueue and reports why an event did
// not enter the queue.
func (l *Logger) submit(event *Event) error {
	l.mu.RLock()
	closed := l.closed
	l.mu.RUnlock()
	if closed {
		return vwerrors.ErrLoggerClosed
	}

	select {
	case l.queue <- event:
		recordEventLogged(event.Type, event.Level)
		return nil
	default:
		l.droppedMu.Lock()
		l.droppedCount++
		l.droppedMu.Unlock()
		recordEventDropped()
		return vwerrors.ErrQueueFull
	}
}

// worker drains the queue until the logger closes, then finishes any
// events still buffered. An in-flight sink write always completes.
func (l *Logger) worker() {
	defer l.wg.Done()

	for {
		select {
		case <-l.done:
			for {
				select {
				case event := <-l.queue:
					l.dispatch(event)
				default:
					return
				}
			}
		case event := <-l.queue:
			l.dispatch(event)
		}
	}
}

// dispatch fans one event out to every sink. A sink failure is caught
// and logged locally; it never propagates to other sinks or back to
// the producer.
func (l *Logger) dispatch(event *Event) {
	for _, sink := range l.Sinks() {
		if err := l.emitTo(sink, event); err != nil {
			recordSinkError(sink.Name())
			l.diag.Error("audit: sink %s failed: %v", sink.Name(), err)
		}
	}
}

// emitTo shields the worker from a panicking sink implementation.
func (l *Logger) emitTo(sink Sink, event *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()
	return sink.Emit(event)
}

// RecentEvents replays up to count events, newest first, from the
// first registered sink that supports replay (the file sink, the
// system of record). types nil means all types.
func (l *Logger) RecentEvents(count int, types []EventType, minLevel Level) ([]Event, error) {
	for _, sink := range l.Sinks() {
		if reader, ok := sink.(EventReader); ok {
			return reader.ReadRecent(count, types, minLevel)
		}
	}
	return nil, fmt.Errorf("no replayable sink registered")
}

// Close stops accepting events, joins the worker within the timeout
// and closes sinks that hold OS resources. It proceeds after the
// timeout rather than hanging the caller; a wedged sink loses only the
// events still queued behind it.
func (l *Logger) Close(timeout time.Duration) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	close(l.done)

	waited := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(waited)
	}()

	var err error
	select {
	case <-waited:
	case <-time.After(timeout):
		err = fmt.Errorf("audit worker did not stop within %s", timeout)
	}

	for _, sink := range l.Sinks() {
		if closer, ok := sink.(interface{ Close() error }); ok {
			if cerr := closer.Close(); cerr != nil {
				l.diag.Warn("audit: closing sink %s: %v", sink.Name(), cerr)
			}
		}
	}
	return err
}
