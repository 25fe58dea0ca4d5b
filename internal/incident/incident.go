package incident

import (
	"fmt"
	"time"
)

// Status is the incident lifecycle state machine. A new incident moves
// to investigating the moment the manager takes it; resolved and
// false_positive are the only exits and both are terminal.
type Status string

const (
	StatusNew           Status = "new"
	StatusInvestigating Status = "investigating"
	StatusResolved      Status = "resolved"
	StatusFalsePositive Status = "false_positive"
)

// Terminal reports whether s permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusFalsePositive
}

// MaxIndicators caps how many matching events an incident summarises.
const MaxIndicators = 10

// Incident is one detected security incident. Its identity is the rule
// that fired plus the detection time. Instances live in the manager's
// incident table and are only ever touched under the manager's lock.
type Incident struct {
	ID          string   `json:"id"`
	RuleID      string   `json:"rule_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Status      Status   `json:"status"`

	DetectedAt time.Time `json:"detected_at"`
	Source     string    `json:"source,omitempty"`

	// Indicators are human summaries of up to MaxIndicators matching
	// events; AffectedResources is the full deduplicated set.
	Indicators        []string `json:"indicators,omitempty"`
	AffectedResources []string `json:"affected_resources,omitempty"`

	ResponseActions []ResponseAction  `json:"response_actions"`
	Details         map[string]string `json:"details,omitempty"`

	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	ResolutionNotes string     `json:"resolution_notes,omitempty"`
}

// Close moves the incident into a terminal status and stamps the
// resolution time. Callers must check Terminal first.
func (i *Incident) Close(status Status, notes string) {
	now := time.Now().UTC()
	i.Status = status
	i.ResolvedAt = &now
	i.ResolutionNotes = notes
}

// newIncidentID derives the identity from the firing rule and the
// detection timestamp.
func newIncidentID(ruleID string, detectedAt time.Time) string {
	return fmt.Sprintf("INC-%s-%d", ruleID, detectedAt.UTC().UnixNano())
}
