// Package commands defines all Cobra CLI commands for the cosmo binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/cosmicworks/cosmo/internal/audit"
	"github.com/cosmicworks/cosmo/internal/config"
	"github.com/cosmicworks/cosmo/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cosmo",
		Short: "Cosmo — the Cosmic Works bicycle store assistant",
		Long: `Cosmo is a conversational retail assistant for the Cosmic Works bicycle store.

It answers natural language questions about products, customers, and sales
orders, grounding every answer in the store catalog via exact lookups and
vector similarity search. Conversations are persisted per session so a
dialogue can be resumed at any time.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.cosmo/config.yaml).
See 'cosmo --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.cosmo/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewServeCmd(),
		NewSessionsCmd(),
		NewIngestCmd(),
		NewVersionCmd(),
	)

	return root
}
