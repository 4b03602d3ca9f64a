package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/54b3r/ragqa-go/internal/logging"
	"github.com/54b3r/ragqa-go/internal/provider"
	"github.com/54b3r/ragqa-go/internal/server"
	"github.com/54b3r/ragqa-go/internal/tracing"
)

// NewServeCmd constructs the `ragqa serve` command, which starts the HTTP API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ragqa HTTP API",
		Long: `Start the ragqa HTTP server.

Endpoints:
  POST /upload     multipart form, field "file" (.txt or .pdf)
  POST /query      {"question": "..."}
  GET  /status     index state and chunk count
  GET  /documents  ingested files from the ledger
  GET  /health     liveness
  GET  /ready      dependency probes
  GET  /metrics    Prometheus metrics

Set RAGQA_API_KEY to require a Bearer token on the API routes.

Examples:
  ragqa serve
  ragqa serve --port 9090
  MODEL_PROVIDER=openai INDEX_BACKEND=qdrant ragqa serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			// Langfuse tracing is opt-in; a no-op if keys are absent.
			flush, ok := tracing.Setup(tracing.ConfigFromEnv())
			defer flush()
			if ok {
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			a, err := openApp(ctx, log, reg)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer a.Close()

			gen, providerCfg, err := newGenerator(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			pipeline, err := a.pipeline()
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			svc, err := a.queryService(gen)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			pingers := append(a.pingers,
				server.NewLLMPinger(provider.NewHealthCheck(providerCfg), gen.Ping, string(providerCfg.Backend)),
			)

			if !cmd.Flags().Changed("host") {
				host = a.rt.ServerHost
			}
			if !cmd.Flags().Changed("port") {
				port = a.rt.ServerPort
			}

			srvCfg := &server.Config{
				Host:            host,
				Port:            port,
				Logger:          log,
				Pingers:         pingers,
				RateLimit:       a.rt.RateLimit,
				RateBurst:       a.rt.RateBurst,
				APIKey:          a.rt.APIKey,
				UploadDir:       a.rt.UploadDir,
				UploadMaxBytes:  a.rt.UploadMaxBytes,
				MetricsRegistry: reg,
				MetricsGatherer: reg,
			}
			if a.ledger != nil {
				srvCfg.Documents = a.ledger
			}

			srv, err := server.New(pipeline, svc, a.index, srvCfg)
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to (default: SERVER_HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on (default: SERVER_PORT)")

	return cmd
}
