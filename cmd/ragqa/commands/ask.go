package commands

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/ragqa-go/internal/logging"
	"github.com/54b3r/ragqa-go/internal/tracing"
)

// NewAskCmd constructs the `ragqa ask` command, which answers one question
// from the indexed documents and prints the answer to stdout.
func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about the indexed documents",
		Long: `Answer a natural language question using only the indexed documents.

Arguments are joined with spaces, so quoting is optional.

Examples:
  ragqa ask "What is the refund policy?"
  ragqa ask how many vacation days do new hires get`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				return fmt.Errorf("ask: question must not be empty")
			}

			flush, _ := tracing.Setup(tracing.ConfigFromEnv())
			defer flush()

			a, err := openApp(ctx, log, prometheus.NewRegistry())
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer a.Close()

			gen, _, err := newGenerator(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			svc, err := a.queryService(gen)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			answer, err := svc.Answer(ctx, question)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer)
			return nil
		},
	}

	return cmd
}
