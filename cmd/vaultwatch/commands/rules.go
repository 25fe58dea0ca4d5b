package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vaultwatch/vaultwatch/internal/audit"
	"github.com/vaultwatch/vaultwatch/internal/config"
	"github.com/vaultwatch/vaultwatch/internal/incident"
)

func NewRulesCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and validate detection rules",
		Long: `Work with the detection rule set.

Subcommands:
  list      Show the active rules
  validate  Check a rules file without starting the monitor

Examples:
  vaultwatch rules list
  vaultwatch rules validate --file my-rules.yaml`,
	}

	cmd.AddCommand(
		NewRulesListCommand(cfg),
		NewRulesValidateCommand(cfg),
	)

	return cmd
}

func NewRulesListCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the active detection rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRules(cfg)
		},
	}
}

func NewRulesValidateCommand(cfg *config.Config) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a rules file without starting the monitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateRules(cfg, file)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Rules file to check (default: from config)")

	return cmd
}

func listRules(cfg *config.Config) error {
	def, err := loadDefinition(cfg)
	if err != nil {
		return err
	}

	rules, err := loadRuleSet(cfg, def)
	if err != nil {
		return err
	}

	for _, rule := range rules {
		state := "enabled"
		if !rule.Enabled {
			state = "disabled"
		}
		fmt.Printf("%-22s %-8s %-8s %s\n", rule.ID, rule.Severity, state, rule.Title)
		fmt.Printf("    %d x %s in %ds -> %s\n",
			rule.Conditions.CountThreshold,
			strings.Join(eventTypeNames(rule.Conditions.EventTypes), ","),
			rule.Conditions.WindowSeconds,
			strings.Join(actionNames(rule.ResponseActions), ", "))
	}
	fmt.Printf("\n%d rule(s)\n", len(rules))
	return nil
}

func validateRules(cfg *config.Config, file string) error {
	if file == "" {
		def, err := loadDefinition(cfg)
		if err != nil {
			return err
		}
		file = def.Monitoring.RulesPath
	}
	if file == "" {
		return fmt.Errorf("no rules file configured; pass --file or set monitoring.rules_path")
	}

	rules, err := incident.LoadRules(file, cfg.Logger)
	if err != nil {
		return err
	}

	cfg.Logger.Info("%s is valid (%d rules)", file, len(rules))
	return nil
}

func eventTypeNames(types []audit.EventType) []string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return names
}

func actionNames(actions []incident.ResponseAction) []string {
	names := make([]string, len(actions))
	for i, action := range actions {
		names[i] = string(action)
	}
	return names
}
