package incident

import (
	"fmt"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vaultwatch/vaultwatch/internal/audit"
	"github.com/vaultwatch/vaultwatch/internal/logging"
)

// cooldownTableSize bounds the per-rule last-fire table. Rule sets are
// small; the bound only matters if a pathological rules file is loaded.
const cooldownTableSize = 256

// Detector evaluates declarative rules against a recent-event window.
// Rules are evaluated independently: one event may contribute to
// several simultaneously firing rules, and firing one rule never
// suppresses another (cooldowns are strictly per rule id).
type Detector struct {
	// mu guards rules: Enabled is mutable at runtime while the monitor
	// loop evaluates. The cooldown cache carries its own locking.
	mu        sync.RWMutex
	rules     []Rule
	cooldowns *lru.Cache[string, time.Time]
	now       func() time.Time
	diag      *logging.Logger
}

// NewDetector creates a detector over the given rules. Rules failing
// validation are skipped with a warning; the remaining rules register.
func NewDetector(rules []Rule, diag *logging.Logger) (*Detector, error) {
	if diag == nil {
		diag = logging.New(false, false)
	}

	cooldowns, err := lru.New[string, time.Time](cooldownTableSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create cooldown table: %w", err)
	}

	d := &Detector{
		cooldowns: cooldowns,
		now:       time.Now,
		diag:      diag,
	}
	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			diag.Warn("detector: skipping rule: %v", err)
			continue
		}
		d.rules = append(d.rules, rule)
	}
	return d, nil
}

// Rules returns a copy of the registered rules.
func (d *Detector) Rules() []Rule {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Rule, len(d.rules))
	copy(out, d.rules)
	return out
}

// SetRuleEnabled flips the only mutable rule field at runtime and
// reports whether the rule exists.
func (d *Detector) SetRuleEnabled(ruleID string, enabled bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.rules {
		if d.rules[i].ID == ruleID {
			d.rules[i].Enabled = enabled
			return true
		}
	}
	return false
}

// Check evaluates every enabled rule whose cooldown has elapsed against
// the supplied recent events and returns one incident per firing rule.
// Re-evaluating the same window while a cooldown is active produces no
// duplicate incident.
func (d *Detector) Check(events []audit.Event) []*Incident {
	d.mu.RLock()
	defer d.mu.RUnlock()

	now := d.now()

	var incidents []*Incident
	for i := range d.rules {
		rule := &d.rules[i]
		if !rule.Enabled {
			continue
		}
		if last, ok := d.cooldowns.Get(rule.ID); ok {
			if now.Sub(last) < time.Duration(rule.CooldownSeconds)*time.Second {
				continue
			}
		}

		matches := d.matchRule(rule, events, now)
		if matches == nil {
			continue
		}

		incident := buildIncident(rule, matches, now)
		d.cooldowns.Add(rule.ID, now)
		recordIncidentDetected(rule.ID, rule.Severity)
		d.diag.Info("incident detected: %s (%s, %d matching events)",
			incident.ID, rule.Severity, len(matches))
		incidents = append(incidents, incident)
	}
	return incidents
}

// matchRule applies the rule's conditions in order: type filter, time
// window, threshold, same-source, distinct-resources, then the detail
// filter with a threshold re-check. A nil return means no match.
func (d *Detector) matchRule(rule *Rule, events []audit.Event, now time.Time) []audit.Event {
	cond := rule.Conditions

	typeSet := make(map[audit.EventType]struct{}, len(cond.EventTypes))
	for _, t := range cond.EventTypes {
		typeSet[t] = struct{}{}
	}

	var matches []audit.Event
	cutoff := time.Time{}
	if cond.WindowSeconds > 0 {
		cutoff = now.Add(-time.Duration(cond.WindowSeconds) * time.Second)
	}
	for _, ev := range events {
		if _, ok := typeSet[ev.Type]; !ok {
			continue
		}
		if !cutoff.IsZero() && !ev.Timestamp.After(cutoff) {
			continue
		}
		matches = append(matches, ev)
	}

	if len(matches) < cond.CountThreshold {
		return nil
	}

	if cond.SameSource {
		sources := make(map[string]struct{})
		for _, ev := range matches {
			sources[ev.Source()] = struct{}{}
		}
		if len(sources) > 1 {
			return nil
		}
	}

	if cond.DistinctResources {
		resources := make(map[string]struct{})
		for _, ev := range matches {
			if ev.Resource != "" {
				resources[ev.Resource] = struct{}{}
			}
		}
		if len(resources)*2 < len(matches) {
			return nil
		}
	}

	if len(cond.MatchDetails) > 0 {
		var filtered []audit.Event
		for _, ev := range matches {
			if detailsContain(ev.Details, cond.MatchDetails) {
				filtered = append(filtered, ev)
			}
		}
		if len(filtered) < cond.CountThreshold {
			return nil
		}
		matches = filtered
	}

	return matches
}

func detailsContain(details, required map[string]string) bool {
	for k, v := range required {
		if details[k] != v {
			return false
		}
	}
	return true
}

// buildIncident summarises the matching events into a new incident.
func buildIncident(rule *Rule, matches []audit.Event, now time.Time) *Incident {
	indicators := make([]string, 0, MaxIndicators)
	resourceSet := make(map[string]struct{})
	sourceSet := make(map[string]struct{})

	for _, ev := range matches {
		if len(indicators) < MaxIndicators {
			indicator := fmt.Sprintf("%s %s: %s",
				ev.Timestamp.Format(time.RFC3339), ev.Type, ev.Message)
			if ev.Resource != "" {
				indicator += fmt.Sprintf(" (%s)", ev.Resource)
			}
			indicators = append(indicators, indicator)
		}
		if ev.Resource != "" {
			resourceSet[ev.Resource] = struct{}{}
		}
		sourceSet[ev.Source()] = struct{}{}
	}

	resources := make([]string, 0, len(resourceSet))
	for r := range resourceSet {
		resources = append(resources, r)
	}
	sort.Strings(resources)

	source := "multiple"
	if len(sourceSet) == 1 {
		for s := range sourceSet {
			source = s
		}
	}

	actions := make([]ResponseAction, len(rule.ResponseActions))
	copy(actions, rule.ResponseActions)

	return &Incident{
		ID:                newIncidentID(rule.ID, now),
		RuleID:            rule.ID,
		Title:             rule.Title,
		Description:       rule.Description,
		Severity:          rule.Severity,
		Status:            StatusNew,
		DetectedAt:        now.UTC(),
		Source:            source,
		Indicators:        indicators,
		AffectedResources: resources,
		ResponseActions:   actions,
		Details: map[string]string{
			"rule_id":        rule.ID,
			"matching_count": fmt.Sprintf("%d", len(matches)),
			"window_seconds": fmt.Sprintf("%d", rule.Conditions.WindowSeconds),
		},
	}
}
