package commands

import (
	"bytes"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/vaultwatch/vaultwatch/internal/config"
	"github.com/vaultwatch/vaultwatch/internal/secure"
	"github.com/vaultwatch/vaultwatch/internal/validation"
)

func NewCheckCommand(cfg *config.Config) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check a candidate secret against the strength policy",
		Long: `Read a candidate secret from stdin and evaluate it against the
configured strength policy. The value never appears in arguments or
shell history; only a masked form is ever printed.

Examples:
  pwgen -s 24 1 | vaultwatch check
  vaultwatch check --name vault/github < candidate.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkSecret(cfg, name, cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVar(&name, "name", "candidate", "Label used in messages and audit events")

	return cmd
}

func checkSecret(cfg *config.Config, name string, in io.Reader) error {
	def, err := loadDefinition(cfg)
	if err != nil {
		return err
	}

	raw, err := io.ReadAll(io.LimitReader(in, 64*1024))
	if err != nil {
		return fmt.Errorf("failed to read candidate from stdin: %w", err)
	}
	raw = bytes.TrimRight(raw, "\r\n")
	if len(raw) == 0 {
		return fmt.Errorf("no candidate value on stdin")
	}

	candidate, err := secure.NewSecureStringFrom(raw)
	if err != nil {
		return err
	}
	for i := range raw {
		raw[i] = 0
	}
	defer candidate.Wipe()

	validator, err := validation.NewSecretValidator(def.SecretPolicy, nil, cfg.Logger)
	if err != nil {
		return err
	}

	result, err := validator.ValidateSecret(name, candidate)
	if err != nil {
		return err
	}

	for _, warning := range result.Warnings {
		cfg.Logger.Warn("%s", warning)
	}
	if !result.Valid {
		for _, msg := range result.Errors {
			cfg.Logger.Error("%s", msg)
		}
		return fmt.Errorf("%q rejected by the strength policy", name)
	}

	cfg.Logger.Info("%q meets the strength policy", name)
	return nil
}
