// Package commands defines all Cobra CLI commands for the ragqa binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/ragqa-go/internal/audit"
	"github.com/54b3r/ragqa-go/internal/config"
	"github.com/54b3r/ragqa-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ragqa",
		Short: "Ask questions about your own documents",
		Long: `ragqa indexes text and PDF documents and answers questions using only
what those documents say.

Model and embedding backends are selected via environment variables
(MODEL_PROVIDER, EMBEDDING_PROVIDER), a .env file in the working directory,
or a YAML config file (~/.ragqa/config.yaml).
See 'ragqa --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Real env vars beat .env, which beats YAML.
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}

			audit.LogCommandStart(cmd.Context(), log, cmd.Name(), path)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.ragqa/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewIngestCmd(),
		NewServeCmd(),
		NewStatusCmd(),
		NewVersionCmd(),
	)

	return root
}
