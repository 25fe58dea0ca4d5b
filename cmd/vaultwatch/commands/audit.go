package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/vaultwatch/vaultwatch/internal/audit"
	"github.com/vaultwatch/vaultwatch/internal/config"
)

func NewAuditCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit trail",
		Long: `Read events back from the audit log files.

Examples:
  vaultwatch audit recent                        # Last 20 events
  vaultwatch audit recent --count 100            # More of them
  vaultwatch audit recent --type auth_failure    # Only failed logins
  vaultwatch audit recent --min-level high       # High and critical only`,
	}

	cmd.AddCommand(NewAuditRecentCommand(cfg))

	return cmd
}

func NewAuditRecentCommand(cfg *config.Config) *cobra.Command {
	var (
		count    int
		types    []string
		minLevel string
	)

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Show the most recent audit events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showRecentEvents(cfg, count, types, minLevel)
		},
	}

	cmd.Flags().IntVar(&count, "count", 20, "Maximum number of events")
	cmd.Flags().StringArrayVar(&types, "type", nil, "Only these event types (repeatable)")
	cmd.Flags().StringVar(&minLevel, "min-level", "low", "Minimum event level")

	return cmd
}

func showRecentEvents(cfg *config.Config, count int, rawTypes []string, rawMinLevel string) error {
	def, err := loadDefinition(cfg)
	if err != nil {
		return err
	}

	minLevel, err := audit.ParseLevel(rawMinLevel)
	if err != nil {
		return err
	}

	var types []audit.EventType
	for _, raw := range rawTypes {
		eventType := audit.EventType(raw)
		if !eventType.Valid() {
			return fmt.Errorf("unknown event type %q", raw)
		}
		types = append(types, eventType)
	}

	// Read the files directly; no need for the full pipeline.
	sink, err := audit.NewFileSink(audit.FileSinkOptions{Dir: def.Audit.LogDir})
	if err != nil {
		return err
	}

	events, err := sink.ReadRecent(count, types, minLevel)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println("No matching events")
		return nil
	}

	for _, ev := range events {
		line := fmt.Sprintf("%s  %-8s %-20s %s",
			ev.Timestamp.Format(time.RFC3339), ev.Level, ev.Type, ev.Message)
		if ev.Resource != "" {
			line += fmt.Sprintf(" (%s)", ev.Resource)
		}
		fmt.Println(line)
	}
	fmt.Printf("\n%d event(s)\n", len(events))
	return nil
}
