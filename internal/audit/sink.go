package audit

// Sink is a destination that durably or visibly records audit events.
// Emit is always called from the logger's single worker goroutine, so
// implementations see events in FIFO enqueue order and do not need
// their own ordering logic. A failing sink never affects other sinks
// or the producer; the worker logs and counts the failure.
//
// Sinks that hold OS resources additionally implement io.Closer and
// are closed when the logger shuts down.
type Sink interface {
	// Name identifies the sink in diagnostics and metrics ("file",
	// "console", "syslog").
	Name() string

	// Emit records one event.
	Emit(event *Event) error
}

// EventReader is implemented by sinks that can replay what they
// recorded. The file sink is the system of record; Logger.RecentEvents
// delegates to the first registered sink offering this.
type EventReader interface {
	// ReadRecent returns up to count events, newest first, filtered to
	// the given types (nil means all) and minimum level.
	ReadRecent(count int, types []EventType, minLevel Level) ([]Event, error)
}
