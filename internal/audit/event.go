package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType is the closed vocabulary of security-relevant events. Other
// subsystems log through the convenience wrappers on Logger rather than
// inventing types.
type EventType string

const (
	EventAuthSuccess EventType = "auth_success"
	EventAuthFailure EventType = "auth_failure"
	EventAuthLock    EventType = "auth_lock"

	EventTwoFactorSuccess EventType = "2fa_success"
	EventTwoFactorFailure EventType = "2fa_failure"

	EventSecretCreated  EventType = "secret_created"
	EventSecretAccessed EventType = "secret_accessed"
	EventSecretModified EventType = "secret_modified"
	EventSecretDeleted  EventType = "secret_deleted"
	EventSecretCopied   EventType = "secret_copied"

	EventConfigChanged EventType = "config_changed"
	EventImport        EventType = "import"
	EventExport        EventType = "export"
	EventGitSync       EventType = "git_sync"

	EventSuspiciousActivity EventType = "suspicious_activity"
	EventSecurityViolation  EventType = "security_violation"

	EventKeyringAccess  EventType = "keyring_access"
	EventHardwareKeyUse EventType = "hardware_key_use"

	EventComplianceCheck EventType = "compliance_check"

	EventAppStart EventType = "app_start"
	EventAppStop  EventType = "app_stop"
	EventAppCrash EventType = "app_crash"
)

var validEventTypes = map[EventType]struct{}{
	EventAuthSuccess: {}, EventAuthFailure: {}, EventAuthLock: {},
	EventTwoFactorSuccess: {}, EventTwoFactorFailure: {},
	EventSecretCreated: {}, EventSecretAccessed: {}, EventSecretModified: {},
	EventSecretDeleted: {}, EventSecretCopied: {},
	EventConfigChanged: {}, EventImport: {}, EventExport: {}, EventGitSync: {},
	EventSuspiciousActivity: {}, EventSecurityViolation: {},
	EventKeyringAccess: {}, EventHardwareKeyUse: {},
	EventComplianceCheck: {},
	EventAppStart:        {}, EventAppStop: {}, EventAppCrash: {},
}

// Valid reports whether t belongs to the closed event vocabulary.
func (t EventType) Valid() bool {
	_, ok := validEventTypes[t]
	return ok
}

// Level orders event severity: low < medium < high < critical.
type Level int

const (
	LevelLow Level = iota
	LevelMedium
	LevelHigh
	LevelCritical
)

var levelNames = map[Level]string{
	LevelLow:      "low",
	LevelMedium:   "medium",
	LevelHigh:     "high",
	LevelCritical: "critical",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// ParseLevel converts a configuration string to a Level.
func ParseLevel(s string) (Level, error) {
	for level, name := range levelNames {
		if name == s {
			return level, nil
		}
	}
	return LevelLow, fmt.Errorf("unknown level %q (must be low, medium, high or critical)", s)
}

// MarshalJSON writes the level in its string form so the persisted
// record stays self-describing.
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *Level) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Event is one immutable security event. The logger stamps timestamp,
// session and process identity at enqueue time; nothing mutates an
// Event after construction, and sinks receive it as a read-only view.
// Details values are scalars only; raw secret material never enters a
// details map (summarise first, then wipe the SecureString it came
// from).
type Event struct {
	Type      EventType         `json:"event_type"`
	Timestamp time.Time         `json:"timestamp"`
	Level     Level             `json:"level"`
	Message   string            `json:"message"`
	UserID    string            `json:"user_id,omitempty"`
	SessionID string            `json:"session_id"`
	Resource  string            `json:"resource,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	ProcessID int               `json:"process_id"`
	ThreadID  int               `json:"thread_id,omitempty"`
}

// Source returns the identifier incident rules use for "same source"
// constraints: the user when known, otherwise the session.
func (e *Event) Source() string {
	if e.UserID != "" {
		return e.UserID
	}
	return e.SessionID
}

var (
	sessionOnce sync.Once
	sessionID   string
)

// SessionID returns the process-stable session identifier, derived once
// from start time, pid and a random component.
func SessionID() string {
	sessionOnce.Do(func() {
		sessionID = fmt.Sprintf("%d-%d-%s",
			time.Now().Unix(), os.Getpid(), uuid.NewString()[:8])
	})
	return sessionID
}

// Option customises an event at enqueue time.
type Option func(*Event)

// WithUser attaches the acting user id.
func WithUser(userID string) Option {
	return func(e *Event) { e.UserID = userID }
}

// WithResource attaches the touched resource, e.g. a secret path.
func WithResource(resource string) Option {
	return func(e *Event) { e.Resource = resource }
}

// WithDetails merges scalar detail fields. The map is copied; later
// mutation by the caller cannot reach the enqueued event.
func WithDetails(details map[string]string) Option {
	return func(e *Event) {
		if len(details) == 0 {
			return
		}
		if e.Details == nil {
			e.Details = make(map[string]string, len(details))
		}
		for k, v := range details {
			e.Details[k] = v
		}
	}
}

// WithDetail adds a single detail field.
func WithDetail(key, value string) Option {
	return func(e *Event) {
		if e.Details == nil {
			e.Details = make(map[string]string, 1)
		}
		e.Details[key] = value
	}
}
