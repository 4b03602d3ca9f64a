package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/ragqa-go/internal/config"
	"github.com/54b3r/ragqa-go/internal/embedder"
	"github.com/54b3r/ragqa-go/internal/ingestion"
	"github.com/54b3r/ragqa-go/internal/loader"
	"github.com/54b3r/ragqa-go/internal/provider"
	"github.com/54b3r/ragqa-go/internal/query"
	"github.com/54b3r/ragqa-go/internal/rag"
	"github.com/54b3r/ragqa-go/internal/server"
	"github.com/54b3r/ragqa-go/internal/store"
)

// app holds the components shared by every command that touches the index.
type app struct {
	log *slog.Logger
	rt  *config.Runtime
	reg prometheus.Registerer

	index *rag.Index
	// ledger is nil when LEDGER_DB=disabled or the database failed to open.
	ledger *store.SQLiteStore

	// pingers are the readiness probes for everything opened so far.
	pingers []server.Pinger
	closers []func()
}

// openApp resolves the runtime settings and opens the embedder, the vector
// store, the index and the ledger. Metrics are registered against reg.
// Callers must Close the returned app.
func openApp(ctx context.Context, log *slog.Logger, reg prometheus.Registerer) (*app, error) {
	rt, err := config.RuntimeFromEnv()
	if err != nil {
		return nil, err
	}
	a := &app{log: log, rt: rt, reg: reg}
	if err := a.openIndex(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.openLedger()
	return a, nil
}

// Close releases everything in reverse open order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) openIndex(ctx context.Context) error {
	embCfg := embedder.ConfigFromEnv()
	if err := embedder.ValidateForRAG(embCfg, a.log); err != nil {
		return err
	}
	emb, err := embedder.New(ctx, embCfg)
	if err != nil {
		return fmt.Errorf("failed to initialise embedder: %w", err)
	}
	a.log.Info("embedder initialised",
		slog.String("backend", embCfg.Backend),
		slog.String("model", embCfg.Model),
		slog.Int("dimensions", embCfg.Dimensions),
	)

	if embCfg.CacheRedisAddr != "" {
		rc, err := embedder.NewRedisCache(&embedder.RedisConfig{
			Addr:     embCfg.CacheRedisAddr,
			Password: embCfg.CacheRedisPassword,
		})
		if err != nil {
			a.log.Warn("embedding cache: redis unavailable, continuing without cache",
				slog.String("addr", embCfg.CacheRedisAddr),
				slog.Any("error", err),
			)
		} else {
			a.closers = append(a.closers, rc.Close)
			a.pingers = append(a.pingers, rc)
			emb = embedder.NewCachedEmbedder(emb, rc, &embedder.CacheConfig{
				TTL:     embCfg.CacheTTL,
				Lookups: embedder.NewCacheLookups(a.reg),
				Logger:  a.log,
			})
			a.log.Info("embedding cache enabled",
				slog.String("addr", embCfg.CacheRedisAddr),
				slog.Duration("ttl", embCfg.CacheTTL),
			)
		}
	}

	vs, err := a.openStore(ctx, embCfg.Dimensions)
	if err != nil {
		return err
	}

	a.index, err = rag.NewIndex(emb, vs, &rag.IndexConfig{Logger: a.log})
	if err != nil {
		return fmt.Errorf("failed to initialise index: %w", err)
	}
	return nil
}

func (a *app) openStore(ctx context.Context, dims int) (rag.VectorStore, error) {
	switch a.rt.IndexBackend {
	case config.IndexQdrant:
		qs, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
			Host:       a.rt.QdrantHost,
			Port:       a.rt.QdrantPort,
			Collection: a.rt.QdrantCollection,
			VectorSize: uint64(dims), //nolint:gosec // validated positive
			APIKey:     a.rt.QdrantAPIKey,
			UseTLS:     a.rt.QdrantTLS,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", a.rt.QdrantHost, a.rt.QdrantPort, err)
		}
		a.closers = append(a.closers, func() { _ = qs.Close() })
		a.pingers = append(a.pingers, server.NewQdrantPinger(qs.Client()))
		a.log.Info("qdrant store ready",
			slog.String("host", a.rt.QdrantHost),
			slog.Int("port", a.rt.QdrantPort),
			slog.String("collection", a.rt.QdrantCollection),
		)
		return qs, nil
	default:
		bs, err := rag.OpenBoltStore(a.rt.IndexDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open index: %w", err)
		}
		a.closers = append(a.closers, func() { _ = bs.Close() })
		a.pingers = append(a.pingers, bs)
		a.log.Info("index opened", slog.String("path", bs.Path()))
		return bs, nil
	}
}

// openLedger opens the SQLite ledger. A ledger that cannot be opened is
// logged and disabled; it never blocks ingestion or queries.
func (a *app) openLedger() {
	path := a.rt.LedgerDB
	if path == store.Disabled {
		a.log.Info("ledger: disabled via LEDGER_DB=disabled")
		return
	}
	if path == "" {
		path = store.DefaultDBPath()
	}
	ls, err := store.Open(path)
	if err != nil {
		a.log.Warn("ledger: failed to open store, disabling", slog.String("path", path), slog.Any("error", err))
		return
	}
	a.ledger = ls
	a.closers = append(a.closers, func() { _ = ls.Close() })
	a.pingers = append(a.pingers, ls)
	a.log.Info("ledger: store opened", slog.String("path", path))
}

// pipeline builds the ingestion pipeline over the app's index.
func (a *app) pipeline() (*ingestion.Pipeline, error) {
	cfg := &ingestion.Config{Metrics: ingestion.NewMetrics(a.reg)}
	if a.ledger != nil {
		cfg.Ledger = a.ledger
	}
	l := loader.New(&loader.Config{ChunkSize: a.rt.ChunkSize, ChunkOverlap: a.rt.ChunkOverlap})
	p, err := ingestion.NewPipeline(l, a.index, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}
	return p, nil
}

// queryService builds the query orchestrator over the app's index and gen.
func (a *app) queryService(gen query.Generator) (*query.Service, error) {
	cfg := &query.Config{
		TopK:             a.rt.TopK,
		MaxContextTokens: a.rt.MaxContextTokens,
		Metrics:          query.NewMetrics(a.reg),
	}
	if a.ledger != nil {
		cfg.Log = a.ledger
	}
	svc, err := query.NewService(a.index, gen, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create query service: %w", err)
	}
	return svc, nil
}

// newGenerator builds the chat model selected by MODEL_PROVIDER.
func newGenerator(ctx context.Context, log *slog.Logger) (*provider.Generator, *provider.Config, error) {
	cfg := provider.ConfigFromEnv()
	m, err := provider.New(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	name := string(cfg.Backend) + "/" + cfg.ModelName()
	gen, err := provider.NewGenerator(m, &provider.GeneratorConfig{Timeout: cfg.Tuning.Timeout, Name: name})
	if err != nil {
		return nil, nil, err
	}
	log.Info("provider initialised",
		slog.String("provider", string(cfg.Backend)),
		slog.String("model", cfg.ModelName()),
	)
	return gen, cfg, nil
}
