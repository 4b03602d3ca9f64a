package commands

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/54b3r/ragqa-go/internal/ingestion"
	"github.com/54b3r/ragqa-go/internal/logging"
)

// NewIngestCmd constructs the `ragqa ingest` command, which loads files into
// the index.
func NewIngestCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "ingest <path|dir|glob>...",
		Short: "Ingest text and PDF files into the index",
		Long: `Load .txt and .pdf files, embed their chunks and add them to the index.

Each argument may be a file, a directory (walked recursively) or a glob
such as "docs/**/*.pdf". Files that fail are reported and skipped; the
command exits non-zero if any file failed.

Examples:
  ragqa ingest handbook.pdf
  ragqa ingest ./docs
  ragqa ingest "policies/**/*.txt" faq.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			paths, err := ingestion.ExpandPaths(args)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			a, err := openApp(ctx, log, prometheus.NewRegistry())
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer a.Close()

			pipeline, err := a.pipeline()
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			log.Info("starting ingestion", slog.Int("files", len(paths)))

			bar := newIngestBar(cmd.ErrOrStderr(), len(paths), !quiet)
			failed := 0
			total, err := pipeline.IngestAll(ctx, paths, func(r ingestion.Result) {
				if r.Err != nil {
					failed++
				}
				_ = bar.Add(1)
			})
			_ = bar.Finish()

			fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d chunks from %d of %d files\n", total, len(paths)-failed, len(paths))
			if err != nil {
				return fmt.Errorf("ingest: %d of %d files failed: %w", failed, len(paths), err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Hide the progress bar")

	return cmd
}

// newIngestBar renders per-file progress to w.
func newIngestBar(w io.Writer, files int, visible bool) *progressbar.ProgressBar {
	return progressbar.NewOptions(files,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetVisibility(visible),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)
}
