package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragqa-go/internal/version"
)

// NewVersionCmd constructs the `ragqa version` subcommand.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the ragqa version, git commit, and build date",
		Args:  cobra.NoArgs,
		// Skip config loading and the audit line.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
