// Package ingestion turns files on disk into index entries. A Pipeline loads
// one document into chunks, inserts them into the vector index, and records
// the result in the optional ledger. It is used by the HTTP upload handler and
// the `ragqa ingest` command.
package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/54b3r/ragqa-go/internal/loader"
	"github.com/54b3r/ragqa-go/internal/logging"
	"github.com/54b3r/ragqa-go/internal/rag"
	"github.com/54b3r/ragqa-go/internal/store"
)

// DocumentLoader reads a file into ordered chunks.
type DocumentLoader interface {
	Load(ctx context.Context, path string) ([]rag.Chunk, error)
}

// ChunkIndex embeds and stores chunks.
type ChunkIndex interface {
	Insert(ctx context.Context, chunks []rag.Chunk) (int, error)
}

// Recorder persists a record of each ingested document.
type Recorder interface {
	Record(ctx context.Context, doc store.Document) error
}

// Config holds the optional collaborators of a Pipeline.
type Config struct {
	// Ledger records successful ingests. Nil disables recording.
	Ledger Recorder
	// Metrics counts documents and chunks. Nil disables metrics.
	Metrics *Metrics
}

// Pipeline orchestrates the load → insert flow for a single document.
// It is safe for concurrent use when its collaborators are.
type Pipeline struct {
	// loader reads files into chunks.
	loader DocumentLoader
	// index embeds and persists chunks.
	index ChunkIndex
	// ledger is optional.
	ledger Recorder
	// metrics is optional.
	metrics *Metrics
}

// NewPipeline constructs a Pipeline from the provided dependencies.
func NewPipeline(l DocumentLoader, index ChunkIndex, cfg *Config) (*Pipeline, error) {
	if l == nil {
		return nil, fmt.Errorf("ingestion: loader must not be nil")
	}
	if index == nil {
		return nil, fmt.Errorf("ingestion: index must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	return &Pipeline{loader: l, index: index, ledger: cfg.Ledger, metrics: cfg.Metrics}, nil
}

// Ingest loads the file at path and inserts every chunk into the index,
// returning the number of entries created. Loader failures (rag.ErrRead,
// rag.ErrUnsupportedFormat) and index failures (rag.ErrEmbedding) keep their
// kind and are prefixed with the failing stage.
func (p *Pipeline) Ingest(ctx context.Context, path string) (int, error) {
	log := logging.FromContext(ctx).With(slog.String("path", path))
	start := time.Now()

	chunks, err := p.loader.Load(ctx, path)
	if err != nil {
		p.metrics.document(outcomeLoadError)
		log.Warn("ingestion: load failed", slog.Any("error", err))
		return 0, fmt.Errorf("ingestion: load %s: %w", path, err)
	}

	n, err := p.index.Insert(ctx, chunks)
	if err != nil {
		p.metrics.document(outcomeIndexError)
		log.Warn("ingestion: index failed", slog.Int("chunks", len(chunks)), slog.Any("error", err))
		return 0, fmt.Errorf("ingestion: index %s: %w", path, err)
	}

	p.metrics.document(outcomeOK)
	p.metrics.chunks(n)
	log.Info("ingestion: indexed",
		slog.Int("chunks", n),
		slog.Duration("duration", time.Since(start)),
	)

	p.record(ctx, log, path, chunks, n)
	return n, nil
}

// record writes the ledger entry. Failures are logged and never fail the
// ingest because the index already holds the chunks.
func (p *Pipeline) record(ctx context.Context, log *slog.Logger, path string, chunks []rag.Chunk, n int) {
	if p.ledger == nil {
		return
	}
	digest, err := fileDigest(path)
	if err != nil {
		log.Warn("ingestion: ledger digest failed", slog.Any("error", err))
	}
	format := ""
	if len(chunks) > 0 {
		format = chunks[0].Metadata[loader.MetaFormat]
	}
	doc := store.Document{
		Path:   path,
		Name:   filepath.Base(path),
		Format: format,
		Chunks: n,
		SHA256: digest,
	}
	if err := p.ledger.Record(ctx, doc); err != nil {
		log.Warn("ingestion: ledger record failed", slog.Any("error", err))
	}
}

// Result is the outcome of one file in IngestAll.
type Result struct {
	Path   string
	Chunks int
	Err    error
}

// IngestAll ingests paths sequentially, continuing past per-file failures.
// onResult, when non-nil, is called after each file. The returned error joins
// every per-file failure; it is nil only when all files succeeded.
func (p *Pipeline) IngestAll(ctx context.Context, paths []string, onResult func(Result)) (int, error) {
	var (
		total int
		errs  []error
	)
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		n, err := p.Ingest(ctx, path)
		total += n
		if err != nil {
			errs = append(errs, err)
		}
		if onResult != nil {
			onResult(Result{Path: path, Chunks: n, Err: err})
		}
	}
	return total, errors.Join(errs...)
}

// fileDigest returns the hex sha256 of the file content.
func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
