package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// DefaultMaxFileBytes is the rotation threshold for one day file.
	DefaultMaxFileBytes = 10 * 1024 * 1024

	// DefaultBackupCount is how many rotated siblings are retained.
	DefaultBackupCount = 5

	// logFilePerm restricts audit files to the owning user.
	logFilePerm = 0o600
)

// FileSinkOptions configures a FileSink. Zero values select defaults.
type FileSinkOptions struct {
	Dir         string
	Prefix      string
	MaxBytes    int64
	BackupCount int
}

// FileSink writes one newline-delimited JSON record per event to a
// per-day file, rotating to numbered backups once the size threshold
// is exceeded. It is the system of record: RecentEvents replay reads
// back from here.
type FileSink struct {
	mu          sync.Mutex
	dir         string
	prefix      string
	maxBytes    int64
	backupCount int
}

// NewFileSink creates the sink and its directory (owner-only).
func NewFileSink(opts FileSinkOptions) (*FileSink, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("file sink requires a directory")
	}
	if opts.Prefix == "" {
		opts.Prefix = "audit"
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxFileBytes
	}
	if opts.BackupCount <= 0 {
		opts.BackupCount = DefaultBackupCount
	}

	if err := os.MkdirAll(opts.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	return &FileSink{
		dir:         opts.Dir,
		prefix:      opts.Prefix,
		maxBytes:    opts.MaxBytes,
		backupCount: opts.BackupCount,
	}, nil
}

// Name implements Sink.
func (s *FileSink) Name() string { return "file" }

// pathForDay returns the active file for the given UTC day.
func (s *FileSink) pathForDay(day time.Time) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s-%s.log", s.prefix, day.UTC().Format("2006-01-02")))
}

// Emit implements Sink.
func (s *FileSink) Emit(event *Event) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.pathForDay(event.Timestamp)
	if info, err := os.Stat(path); err == nil {
		if info.Size()+int64(len(line))+1 > s.maxBytes {
			if err := s.rotate(path); err != nil {
				return fmt.Errorf("failed to rotate audit log: %w", err)
			}
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, logFilePerm)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer func() { _ = f.Close() }()

	// Re-assert restrictive permissions on every write; the file may
	// predate this process or have been touched externally.
	if err := f.Chmod(logFilePerm); err != nil {
		return fmt.Errorf("failed to restrict audit log permissions: %w", err)
	}

	if _, err := fmt.Fprintf(f, "%s\n", line); err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	return nil
}

// rotate shifts numbered backups up (N -> N+1), discards the oldest
// beyond the retention count and moves the active file to .1.
func (s *FileSink) rotate(path string) error {
	oldest := fmt.Sprintf("%s.%d", path, s.backupCount)
	if _, err := os.Stat(oldest); err == nil {
		if err := os.Remove(oldest); err != nil {
			return err
		}
	}

	for i := s.backupCount - 1; i >= 1; i-- {
		src := fmt.Sprintf("%s.%d", path, i)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := os.Rename(src, fmt.Sprintf("%s.%d", path, i+1)); err != nil {
			return err
		}
	}

	return os.Rename(path, path+".1")
}

// ReadRecent implements EventReader. It walks today's and yesterday's
// files (active first, then rotated backups, newest first) and returns
// up to count matching events in newest-first order.
func (s *FileSink) ReadRecent(count int, types []EventType, minLevel Level) ([]Event, error) {
	if count <= 0 {
		return nil, nil
	}

	typeSet := make(map[EventType]struct{}, len(types))
	for _, t := range types {
		typeSet[t] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var result []Event
	for _, day := range []time.Time{now, now.AddDate(0, 0, -1)} {
		base := s.pathForDay(day)
		candidates := []string{base}
		for i := 1; i <= s.backupCount; i++ {
			candidates = append(candidates, fmt.Sprintf("%s.%d", base, i))
		}

		for _, path := range candidates {
			events, err := readEventFile(path)
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return nil, err
			}

			// Lines are appended chronologically; replay newest first.
			for i := len(events) - 1; i >= 0; i-- {
				ev := events[i]
				if len(typeSet) > 0 {
					if _, ok := typeSet[ev.Type]; !ok {
						continue
					}
				}
				if ev.Level < minLevel {
					continue
				}
				result = append(result, ev)
				if len(result) >= count {
					return result, nil
				}
			}
		}
	}
	return result, nil
}

// readEventFile parses one JSONL audit file. Unparseable lines are
// skipped; a torn final line from a crash must not poison replay.
func readEventFile(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
