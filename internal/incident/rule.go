package incident

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vaultwatch/vaultwatch/internal/audit"
	vwerrors "github.com/vaultwatch/vaultwatch/internal/errors"
	"github.com/vaultwatch/vaultwatch/internal/logging"
)

// Severity classifies an incident: low < medium < high < critical.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// AtLeast reports whether s ranks at or above min.
func (s Severity) AtLeast(min Severity) bool {
	return severityRank[s] >= severityRank[min]
}

// ResponseAction is one escalation step executed when a rule fires.
// Actions run strictly in the order the rule declares them.
type ResponseAction string

const (
	ActionLog               ResponseAction = "log"
	ActionAlert             ResponseAction = "alert"
	ActionLockApplication   ResponseAction = "lock_application"
	ActionDisableFeatures   ResponseAction = "disable_features"
	ActionEmergencyShutdown ResponseAction = "emergency_shutdown"
)

var validActions = map[ResponseAction]struct{}{
	ActionLog: {}, ActionAlert: {}, ActionLockApplication: {},
	ActionDisableFeatures: {}, ActionEmergencyShutdown: {},
}

// Conditions is the closed, explicitly typed trigger specification of
// a rule. It is validated once at load time, never reinterpreted
// during evaluation.
type Conditions struct {
	// EventTypes selects which audit events the rule considers.
	EventTypes []audit.EventType `yaml:"event_types" json:"event_types"`

	// WindowSeconds restricts matches to events newer than now minus
	// the window. Zero means the whole supplied event slice.
	WindowSeconds int `yaml:"window_seconds,omitempty" json:"window_seconds,omitempty"`

	// CountThreshold is the minimum number of matching events.
	CountThreshold int `yaml:"count_threshold" json:"count_threshold"`

	// SameSource rejects a match when the events originate from more
	// than one distinct source identifier.
	SameSource bool `yaml:"same_source,omitempty" json:"same_source,omitempty"`

	// DistinctResources rejects a match when fewer than half the
	// matching events touch distinct resources. Guards broad rules
	// against one noisy resource.
	DistinctResources bool `yaml:"distinct_resources,omitempty" json:"distinct_resources,omitempty"`

	// MatchDetails keeps only events whose details map contains every
	// listed key/value pair, re-checking the threshold afterwards.
	MatchDetails map[string]string `yaml:"match_details,omitempty" json:"match_details,omitempty"`
}

// Rule is one declarative detection pattern plus its ordered response.
// Rules are loaded at startup and immutable at runtime except for
// Enabled.
type Rule struct {
	ID              string           `yaml:"id" json:"id"`
	Title           string           `yaml:"title" json:"title"`
	Description     string           `yaml:"description,omitempty" json:"description,omitempty"`
	Severity        Severity         `yaml:"severity" json:"severity"`
	Conditions      Conditions       `yaml:"conditions" json:"conditions"`
	ResponseActions []ResponseAction `yaml:"response_actions" json:"response_actions"`
	Enabled         bool             `yaml:"enabled" json:"enabled"`
	CooldownSeconds int              `yaml:"cooldown_seconds" json:"cooldown_seconds"`
}

// UnmarshalYAML defaults Enabled to true: a rule the operator wrote
// down is active unless the file says otherwise.
func (r *Rule) UnmarshalYAML(value *yaml.Node) error {
	type plain Rule
	p := plain{Enabled: true}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*r = Rule(p)
	return nil
}

// Validate checks a rule's semantic constraints. The JSON-schema pass
// catches shape errors; this catches everything the schema cannot.
func (r *Rule) Validate() error {
	if r.ID == "" {
		return vwerrors.RuleError{Field: "id", Message: "rule id is required"}
	}
	if r.Title == "" {
		return vwerrors.RuleError{RuleID: r.ID, Field: "title", Message: "title is required"}
	}
	if !r.Severity.Valid() {
		return vwerrors.RuleError{RuleID: r.ID, Field: "severity",
			Message: fmt.Sprintf("unknown severity %q (must be low, medium, high or critical)", r.Severity)}
	}
	if len(r.Conditions.EventTypes) == 0 {
		return vwerrors.RuleError{RuleID: r.ID, Field: "conditions.event_types",
			Message: "at least one event type is required"}
	}
	for _, t := range r.Conditions.EventTypes {
		if !t.Valid() {
			return vwerrors.RuleError{RuleID: r.ID, Field: "conditions.event_types",
				Message: fmt.Sprintf("unknown event type %q", t)}
		}
	}
	if r.Conditions.CountThreshold < 1 {
		return vwerrors.RuleError{RuleID: r.ID, Field: "conditions.count_threshold",
			Message: "count threshold must be at least 1"}
	}
	if r.Conditions.WindowSeconds < 0 {
		return vwerrors.RuleError{RuleID: r.ID, Field: "conditions.window_seconds",
			Message: "window must not be negative"}
	}
	if len(r.ResponseActions) == 0 {
		return vwerrors.RuleError{RuleID: r.ID, Field: "response_actions",
			Message: "at least one response action is required"}
	}
	for _, a := range r.ResponseActions {
		if _, ok := validActions[a]; !ok {
			return vwerrors.RuleError{RuleID: r.ID, Field: "response_actions",
				Message: fmt.Sprintf("unknown response action %q", a)}
		}
	}
	if r.CooldownSeconds < 0 {
		return vwerrors.RuleError{RuleID: r.ID, Field: "cooldown_seconds",
			Message: "cooldown must not be negative"}
	}
	return nil
}

// DefaultRules is the built-in rule set for a password-manager host.
// A rules file extends or replaces these.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "brute_force",
			Title:       "Possible brute-force attack",
			Description: "Repeated authentication failures from one source",
			Severity:    SeverityHigh,
			Conditions: Conditions{
				EventTypes:     []audit.EventType{audit.EventAuthFailure},
				WindowSeconds:  300,
				CountThreshold: 5,
				SameSource:     true,
			},
			ResponseActions: []ResponseAction{ActionAlert, ActionLockApplication},
			Enabled:         true,
			CooldownSeconds: 600,
		},
		{
			ID:          "rapid_secret_access",
			Title:       "Unusually rapid secret access",
			Description: "Many distinct secrets read in a short burst, typical of scraping",
			Severity:    SeverityMedium,
			Conditions: Conditions{
				EventTypes:        []audit.EventType{audit.EventSecretAccessed, audit.EventSecretCopied},
				WindowSeconds:     60,
				CountThreshold:    20,
				DistinctResources: true,
			},
			ResponseActions: []ResponseAction{ActionLog, ActionAlert},
			Enabled:         true,
			CooldownSeconds: 300,
		},
		{
			ID:          "mass_export",
			Title:       "Bulk export after failed authentication",
			Description: "Store export shortly after an authentication failure",
			Severity:    SeverityCritical,
			Conditions: Conditions{
				EventTypes:     []audit.EventType{audit.EventExport},
				WindowSeconds:  900,
				CountThreshold: 2,
			},
			ResponseActions: []ResponseAction{ActionAlert, ActionDisableFeatures},
			Enabled:         true,
			CooldownSeconds: 1800,
		},
		{
			ID:          "config_tampering",
			Title:       "Repeated security configuration changes",
			Description: "Multiple configuration changes in quick succession",
			Severity:    SeverityMedium,
			Conditions: Conditions{
				EventTypes:     []audit.EventType{audit.EventConfigChanged},
				WindowSeconds:  600,
				CountThreshold: 5,
				SameSource:     true,
			},
			ResponseActions: []ResponseAction{ActionLog, ActionAlert},
			Enabled:         true,
			CooldownSeconds: 900,
		},
		{
			ID:          "crash_loop",
			Title:       "Repeated application crashes",
			Description: "Crash loop may indicate an exploitation attempt",
			Severity:    SeverityHigh,
			Conditions: Conditions{
				EventTypes:     []audit.EventType{audit.EventAppCrash},
				WindowSeconds:  900,
				CountThreshold: 3,
			},
			ResponseActions: []ResponseAction{ActionAlert, ActionDisableFeatures},
			Enabled:         true,
			CooldownSeconds: 1800,
		},
	}
}

// rulesDocument is the shape of a rules file.
type rulesDocument struct {
	Rules []Rule `yaml:"rules" json:"rules"`
}

// LoadRules reads a YAML rules file, validates it against the embedded
// schema and semantically, and returns the rules that passed. Invalid
// rules are skipped with a warning; the remaining rules register
// normally.
func LoadRules(path string, diag *logging.Logger) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var doc rulesDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	if err := validateRulesSchema(doc); err != nil {
		return nil, err
	}

	var rules []Rule
	for _, rule := range doc.Rules {
		if err := rule.Validate(); err != nil {
			if diag != nil {
				diag.Warn("skipping rule: %v", err)
			}
			continue
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
