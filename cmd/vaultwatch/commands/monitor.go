package commands

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/vaultwatch/vaultwatch/internal/audit"
	"github.com/vaultwatch/vaultwatch/internal/config"
	"github.com/vaultwatch/vaultwatch/internal/incident"
)

const shutdownTimeout = 5 * time.Second

func NewMonitorCommand(cfg *config.Config) *cobra.Command {
	var (
		metricsAddr string
		interval    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run the audit pipeline and incident detection loop",
		Long: `Start the audit pipeline and watch recent events for suspicious
patterns. Detected incidents trigger the response actions configured on
the matching rule and are written to the incident directory.

Runs until interrupted (Ctrl-C or SIGTERM).

Examples:
  vaultwatch monitor                          # Use vaultwatch.yaml settings
  vaultwatch monitor --interval 10s           # Override the detection period
  vaultwatch monitor --metrics-addr :9311     # Expose Prometheus metrics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(cfg, metricsAddr, interval)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (empty: disabled)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Detection cycle period (default: from config)")

	return cmd
}

func runMonitor(cfg *config.Config, metricsAddr string, interval time.Duration) error {
	def, err := loadDefinition(cfg)
	if err != nil {
		return err
	}

	auditLog, err := setupAudit(cfg, def)
	if err != nil {
		return err
	}
	defer audit.Shutdown(shutdownTimeout)

	rules, err := loadRuleSet(cfg, def)
	if err != nil {
		return err
	}

	detector, err := incident.NewDetector(rules, cfg.Logger)
	if err != nil {
		return err
	}

	responder := incident.NewResponder(auditLog, cfg.Logger)
	if err := attachNotifiers(responder, def, cfg); err != nil {
		return err
	}

	manager := incident.NewManager(incident.ManagerOptions{
		Detector:  detector,
		Responder: responder,
		AuditLog:  auditLog,
		Diag:      cfg.Logger,
		Store:     incident.NewReportStore(def.Monitoring.IncidentDir),
	})

	if metricsAddr != "" {
		audit.InitMetrics()
		incident.InitMetrics()
		go serveMetrics(metricsAddr, cfg)
	}

	if interval <= 0 {
		interval = def.MonitorInterval()
	}
	if err := manager.StartMonitoring(interval); err != nil {
		return err
	}

	auditLog.LogEvent(audit.EventAppStart, audit.LevelLow, "monitoring started",
		audit.WithDetail("interval", interval.String()))
	cfg.Logger.Info("Monitoring started (interval %s, %d rules)", interval, len(detector.Rules()))

	// Block until interrupted
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh

	cfg.Logger.Info("Received %s, shutting down", sig)
	auditLog.LogEvent(audit.EventAppStop, audit.LevelLow, "monitoring stopped")

	if err := manager.StopMonitoring(shutdownTimeout); err != nil {
		cfg.Logger.Warn("Monitor loop did not stop cleanly: %v", err)
	}
	return nil
}

// attachNotifiers wires the configured alert channels onto the
// responder. A desktop channel that cannot be constructed on this
// platform is a warning, not a startup failure.
func attachNotifiers(responder *incident.Responder, def *config.Definition, cfg *config.Config) error {
	if def.Notifications.Email != nil {
		notifier, err := incident.NewEmailNotifier(*def.Notifications.Email)
		if err != nil {
			return err
		}
		responder.AddNotifier(notifier)
	}
	if def.Notifications.Desktop.Enabled {
		notifier, err := incident.NewDesktopNotifier()
		if err != nil {
			cfg.Logger.Warn("Desktop notifications unavailable: %v", err)
		} else {
			responder.AddNotifier(notifier)
		}
	}
	return nil
}

func serveMetrics(addr string, cfg *config.Config) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		cfg.Logger.Warn("Metrics server stopped: %v", err)
	}
}
