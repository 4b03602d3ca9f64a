package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/ragqa-go/internal/logging"
)

// NewStatusCmd constructs the `ragqa status` command.
func NewStatusCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the index state and recently ingested documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			a, err := openApp(ctx, log, prometheus.NewRegistry())
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			defer a.Close()

			st, err := a.index.Status(ctx)
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			n, err := a.index.Count(ctx)
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Index:   %s (%s, %d entries)\n", st, a.rt.IndexBackend, n)
			if model := a.index.ModelID(); model != "" {
				fmt.Fprintf(out, "Model:   %s\n", model)
			}

			if a.ledger == nil {
				fmt.Fprintln(out, "Ledger:  disabled")
				return nil
			}
			docs, err := a.ledger.List(ctx, limit)
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			if len(docs) == 0 {
				fmt.Fprintln(out, "Documents: none")
				return nil
			}

			fmt.Fprintln(out)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tFORMAT\tCHUNKS\tINGESTED")
			for _, d := range docs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", d.Name, d.Format, d.Chunks, d.IngestedAt.Local().Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of recent documents to list")

	return cmd
}
