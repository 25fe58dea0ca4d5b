package commands

import (
	"fmt"

	"github.com/vaultwatch/vaultwatch/internal/audit"
	"github.com/vaultwatch/vaultwatch/internal/config"
	vwerrors "github.com/vaultwatch/vaultwatch/internal/errors"
	"github.com/vaultwatch/vaultwatch/internal/incident"
)

// loadDefinition parses the config file once per command invocation.
func loadDefinition(cfg *config.Config) (*config.Definition, error) {
	if cfg.Definition != nil {
		return cfg.Definition, nil
	}
	if err := cfg.Load(); err != nil {
		return nil, err
	}
	return cfg.Definition, nil
}

// setupAudit builds the audit pipeline from configuration and installs
// it as the process default.
func setupAudit(cfg *config.Config, def *config.Definition) (*audit.Logger, error) {
	logger, err := audit.Configure(def.AuditSetup(cfg.Logger, cfg.NoColor))
	if err != nil {
		return nil, vwerrors.SimplifyError(err)
	}
	return logger, nil
}

// loadRuleSet resolves the active detection rules: the rules file when
// configured, built-ins otherwise, with per-id disables applied.
func loadRuleSet(cfg *config.Config, def *config.Definition) ([]incident.Rule, error) {
	var (
		rules []incident.Rule
		err   error
	)
	if def.Monitoring.RulesPath != "" {
		rules, err = incident.LoadRules(def.Monitoring.RulesPath, cfg.Logger)
		if err != nil {
			return nil, err
		}
	} else {
		rules = incident.DefaultRules()
	}

	disabled := make(map[string]bool, len(def.Monitoring.DisabledRules))
	for _, id := range def.Monitoring.DisabledRules {
		disabled[id] = true
	}
	for i := range rules {
		if disabled[rules[i].ID] {
			rules[i].Enabled = false
		}
	}
	return rules, nil
}

// parseStatus maps a CLI status argument onto the incident lifecycle.
func parseStatus(s string) (incident.Status, error) {
	switch incident.Status(s) {
	case incident.StatusNew, incident.StatusInvestigating,
		incident.StatusResolved, incident.StatusFalsePositive:
		return incident.Status(s), nil
	}
	return "", fmt.Errorf("unknown status %q (want new, investigating, resolved, or false_positive)", s)
}

// parseSeverity maps a CLI severity argument onto rule severities.
func parseSeverity(s string) (incident.Severity, error) {
	sev := incident.Severity(s)
	if !sev.Valid() {
		return "", fmt.Errorf("unknown severity %q (want low, medium, high, or critical)", s)
	}
	return sev, nil
}
