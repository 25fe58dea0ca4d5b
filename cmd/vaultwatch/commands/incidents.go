package commands

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vaultwatch/vaultwatch/internal/config"
	"github.com/vaultwatch/vaultwatch/internal/incident"
)

func NewIncidentsCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "incidents",
		Short: "Inspect and close recorded incidents",
		Long: `Work with incident reports written by the monitor.

Subcommands:
  list      List recorded incidents
  show      Print one incident report in full
  resolve   Close an incident as handled
  dismiss   Close an incident as a false positive
  summary   Aggregate counts by status and severity

Examples:
  vaultwatch incidents list --severity high
  vaultwatch incidents show INC-brute_force-1756180000000000000
  vaultwatch incidents resolve INC-brute_force-1756180000000000000 --notes "rotated master password"`,
	}

	cmd.AddCommand(
		NewIncidentsListCommand(cfg),
		NewIncidentsShowCommand(cfg),
		NewIncidentsResolveCommand(cfg),
		NewIncidentsDismissCommand(cfg),
		NewIncidentsSummaryCommand(cfg),
	)

	return cmd
}

func NewIncidentsListCommand(cfg *config.Config) *cobra.Command {
	var (
		statusFilter   string
		severityFilter string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded incidents",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listIncidents(cfg, statusFilter, severityFilter)
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Filter by status (new, investigating, resolved, false_positive)")
	cmd.Flags().StringVar(&severityFilter, "severity", "", "Filter by severity (low, medium, high, critical)")

	return cmd
}

func NewIncidentsShowCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "show <incident-id>",
		Short: "Print one incident report in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showIncident(cfg, args[0])
		},
	}
}

func NewIncidentsResolveCommand(cfg *config.Config) *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   "resolve <incident-id>",
		Short: "Close an incident as handled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return closeIncident(cfg, args[0], incident.StatusResolved, notes)
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "Resolution notes")

	return cmd
}

func NewIncidentsDismissCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "dismiss <incident-id>",
		Short: "Close an incident as a false positive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return closeIncident(cfg, args[0], incident.StatusFalsePositive, "")
		},
	}
}

func NewIncidentsSummaryCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Aggregate counts by status and severity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return summarizeIncidents(cfg)
		},
	}
}

func listIncidents(cfg *config.Config, statusFilter, severityFilter string) error {
	incidents, err := loadIncidents(cfg)
	if err != nil {
		return err
	}

	if statusFilter != "" {
		status, err := parseStatus(statusFilter)
		if err != nil {
			return err
		}
		incidents = filterIncidents(incidents, func(in *incident.Incident) bool {
			return in.Status == status
		})
	}
	if severityFilter != "" {
		severity, err := parseSeverity(severityFilter)
		if err != nil {
			return err
		}
		incidents = filterIncidents(incidents, func(in *incident.Incident) bool {
			return in.Severity == severity
		})
	}

	if len(incidents) == 0 {
		fmt.Println("No incidents recorded")
		return nil
	}

	// Newest first
	sort.Slice(incidents, func(i, j int) bool {
		return incidents[i].DetectedAt.After(incidents[j].DetectedAt)
	})

	for _, in := range incidents {
		fmt.Printf("%s  %-14s %-8s %s\n", in.DetectedAt.Format("2006-01-02 15:04:05"), in.Status, in.Severity, in.ID)
		fmt.Printf("    %s\n", in.Title)
	}
	fmt.Printf("\n%d incident(s)\n", len(incidents))
	return nil
}

func showIncident(cfg *config.Config, id string) error {
	def, err := loadDefinition(cfg)
	if err != nil {
		return err
	}

	store := incident.NewReportStore(def.Monitoring.IncidentDir)
	in, err := store.Load(id)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func closeIncident(cfg *config.Config, id string, status incident.Status, notes string) error {
	def, err := loadDefinition(cfg)
	if err != nil {
		return err
	}

	// Closing operates on the persisted report directly; the monitor
	// process keeps its own in-memory table.
	store := incident.NewReportStore(def.Monitoring.IncidentDir)
	in, err := store.Load(id)
	if err != nil {
		return err
	}
	if in.Status.Terminal() {
		return fmt.Errorf("incident %s is already closed (%s)", id, in.Status)
	}

	in.Close(status, notes)
	if err := store.Save(in); err != nil {
		return err
	}

	verb := "Resolved"
	if status == incident.StatusFalsePositive {
		verb = "Dismissed"
	}
	cfg.Logger.Info("%s incident %s", verb, id)
	return nil
}

func summarizeIncidents(cfg *config.Config) error {
	incidents, err := loadIncidents(cfg)
	if err != nil {
		return err
	}

	byStatus := make(map[incident.Status]int)
	bySeverity := make(map[incident.Severity]int)
	for _, in := range incidents {
		byStatus[in.Status]++
		bySeverity[in.Severity]++
	}

	fmt.Printf("Total incidents: %d\n\n", len(incidents))

	fmt.Println("By status:")
	for _, status := range []incident.Status{
		incident.StatusNew, incident.StatusInvestigating,
		incident.StatusResolved, incident.StatusFalsePositive,
	} {
		if count := byStatus[status]; count > 0 {
			fmt.Printf("  %-15s %d\n", status, count)
		}
	}

	fmt.Println("\nBy severity:")
	for _, severity := range []incident.Severity{
		incident.SeverityCritical, incident.SeverityHigh,
		incident.SeverityMedium, incident.SeverityLow,
	} {
		if count := bySeverity[severity]; count > 0 {
			fmt.Printf("  %-15s %d\n", severity, count)
		}
	}
	return nil
}

func loadIncidents(cfg *config.Config) ([]*incident.Incident, error) {
	def, err := loadDefinition(cfg)
	if err != nil {
		return nil, err
	}
	incidents, err := incident.NewReportStore(def.Monitoring.IncidentDir).List()
	if err != nil {
		return nil, fmt.Errorf("failed to read incident directory %s: %w",
			strings.TrimSpace(def.Monitoring.IncidentDir), err)
	}
	return incidents, nil
}

func filterIncidents(in []*incident.Incident, keep func(*incident.Incident) bool) []*incident.Incident {
	out := in[:0]
	for _, candidate := range in {
		if keep(candidate) {
			out = append(out, candidate)
		}
	}
	return out
}
