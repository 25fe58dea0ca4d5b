package incident

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultwatch/vaultwatch/internal/audit"
	vwerrors "github.com/vaultwatch/vaultwatch/internal/errors"
)

func TestSeverity(t *testing.T) {
	t.Parallel()

	assert.True(t, SeverityLow.Valid())
	assert.True(t, SeverityCritical.Valid())
	assert.False(t, Severity("extreme").Valid())

	assert.True(t, SeverityHigh.AtLeast(SeverityMedium))
	assert.True(t, SeverityHigh.AtLeast(SeverityHigh))
	assert.False(t, SeverityLow.AtLeast(SeverityMedium))
}

func validRule() Rule {
	return Rule{
		ID:       "test_rule",
		Title:    "Test rule",
		Severity: SeverityMedium,
		Conditions: Conditions{
			EventTypes:     []audit.EventType{audit.EventAuthFailure},
			WindowSeconds:  60,
			CountThreshold: 3,
		},
		ResponseActions: []ResponseAction{ActionLog},
		Enabled:         true,
	}
}

func TestRule_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mutate    func(*Rule)
		wantField string
	}{
		{
			name:   "valid",
			mutate: func(*Rule) {},
		},
		{
			name:      "missing id",
			mutate:    func(r *Rule) { r.ID = "" },
			wantField: "id",
		},
		{
			name:      "missing title",
			mutate:    func(r *Rule) { r.Title = "" },
			wantField: "title",
		},
		{
			name:      "bad severity",
			mutate:    func(r *Rule) { r.Severity = "extreme" },
			wantField: "severity",
		},
		{
			name:      "no event types",
			mutate:    func(r *Rule) { r.Conditions.EventTypes = nil },
			wantField: "conditions.event_types",
		},
		{
			name:      "unknown event type",
			mutate:    func(r *Rule) { r.Conditions.EventTypes = []audit.EventType{"teleport"} },
			wantField: "conditions.event_types",
		},
		{
			name:      "zero threshold",
			mutate:    func(r *Rule) { r.Conditions.CountThreshold = 0 },
			wantField: "conditions.count_threshold",
		},
		{
			name:      "negative window",
			mutate:    func(r *Rule) { r.Conditions.WindowSeconds = -1 },
			wantField: "conditions.window_seconds",
		},
		{
			name:      "no response actions",
			mutate:    func(r *Rule) { r.ResponseActions = nil },
			wantField: "response_actions",
		},
		{
			name:      "unknown response action",
			mutate:    func(r *Rule) { r.ResponseActions = []ResponseAction{"self_destruct"} },
			wantField: "response_actions",
		},
		{
			name:      "negative cooldown",
			mutate:    func(r *Rule) { r.CooldownSeconds = -5 },
			wantField: "cooldown_seconds",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rule := validRule()
			tc.mutate(&rule)

			err := rule.Validate()
			if tc.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var ruleErr vwerrors.RuleError
			require.ErrorAs(t, err, &ruleErr)
			assert.Equal(t, tc.wantField, ruleErr.Field)
		})
	}
}

func TestDefaultRules_AllValid(t *testing.T) {
	t.Parallel()

	rules := DefaultRules()
	require.NotEmpty(t, rules)

	seen := make(map[string]bool)
	for _, rule := range rules {
		assert.NoError(t, rule.Validate(), "rule %s", rule.ID)
		assert.True(t, rule.Enabled, "rule %s should ship enabled", rule.ID)
		assert.False(t, seen[rule.ID], "duplicate rule id %s", rule.ID)
		seen[rule.ID] = true
	}
}

func TestLoadRules(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `rules:
  - id: clipboard_burst
    title: Clipboard copy burst
    severity: medium
    conditions:
      event_types: [secret_copied]
      window_seconds: 30
      count_threshold: 10
    response_actions: [log, alert]
    enabled: true
    cooldown_seconds: 120
  - id: export_watch
    title: Any export
    severity: high
    conditions:
      event_types: [export]
      count_threshold: 1
    response_actions: [alert]
    enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	rules, err := LoadRules(path, nil)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.Equal(t, "clipboard_burst", rules[0].ID)
	assert.Equal(t, SeverityMedium, rules[0].Severity)
	assert.Equal(t, []audit.EventType{audit.EventSecretCopied}, rules[0].Conditions.EventTypes)
	assert.Equal(t, 10, rules[0].Conditions.CountThreshold)
	assert.Equal(t, []ResponseAction{ActionLog, ActionAlert}, rules[0].ResponseActions)
	assert.Equal(t, 120, rules[0].CooldownSeconds)
}

func TestLoadRules_EnabledDefaultsToTrue(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `rules:
  - id: implicit_on
    title: Enabled field omitted
    severity: low
    conditions:
      event_types: [export]
      count_threshold: 1
    response_actions: [log]
  - id: explicit_off
    title: Enabled set to false
    severity: low
    conditions:
      event_types: [export]
      count_threshold: 1
    response_actions: [log]
    enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	rules, err := LoadRules(path, nil)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.True(t, rules[0].Enabled)
	assert.False(t, rules[1].Enabled)
}

func TestLoadRules_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadRules(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.Error(t, err)
}

func TestLoadRules_MalformedYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules: [ends: {never"), 0o600))

	_, err := LoadRules(path, nil)
	assert.Error(t, err)
}

func TestLoadRules_SchemaViolation(t *testing.T) {
	t.Parallel()

	// severity outside the schema enum rejects the whole file
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `rules:
  - id: broken
    title: Broken rule
    severity: apocalyptic
    conditions:
      event_types: [export]
      count_threshold: 1
    response_actions: [log]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	_, err := LoadRules(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema")
}

func TestLoadRules_SkipsSemanticallyInvalidRule(t *testing.T) {
	t.Parallel()

	// "teleport" passes the schema (any string) but fails Validate;
	// the good rule still loads.
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `rules:
  - id: bad_type
    title: Unknown event type
    severity: low
    conditions:
      event_types: [teleport]
      count_threshold: 1
    response_actions: [log]
  - id: good
    title: Good rule
    severity: low
    conditions:
      event_types: [export]
      count_threshold: 1
    response_actions: [log]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	rules, err := LoadRules(path, nil)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "good", rules[0].ID)
}
