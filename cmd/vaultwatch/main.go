package main

import (
	"fmt"
	"os"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"
	"github.com/vaultwatch/vaultwatch/cmd/vaultwatch/commands"
	"github.com/vaultwatch/vaultwatch/internal/config"
	"github.com/vaultwatch/vaultwatch/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Wipe any enclave keys on the way out, clean exit or not.
	defer memguard.Purge()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Global flags
	var (
		configFile string
		noColor    bool
		debug      bool
	)

	// Create config placeholder
	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "vaultwatch",
		Short: "Security telemetry and incident response for password vaults",
		Long: `vaultwatch records security-relevant events to a tamper-evident audit
trail, watches the trail for suspicious patterns, and takes graduated
response actions when an incident is detected.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Initialize logger with parsed flags
			logger := logging.New(debug, noColor)

			// Update config with parsed values
			cfg.Path = configFile
			cfg.Logger = logger
			cfg.NoColor = noColor
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "vaultwatch.yaml", "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	// Add commands
	rootCmd.AddCommand(
		commands.NewMonitorCommand(cfg),
		commands.NewIncidentsCommand(cfg),
		commands.NewAuditCommand(cfg),
		commands.NewRulesCommand(cfg),
		commands.NewCheckCommand(cfg),
	)

	return rootCmd.Execute()
}
