package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// DefaultTopK is the number of chunks returned by Search when the caller
// passes k <= 0.
const DefaultTopK = 4

// metaEmbeddingModel is the MetaStore key holding the embedding model the
// index was populated with.
const metaEmbeddingModel = "embedding_model"

// IndexConfig holds optional settings for NewIndex.
type IndexConfig struct {
	// DefaultTopK is used when Search is called with k <= 0. Defaults to 4.
	DefaultTopK int

	// Logger receives model-consistency warnings. Defaults to slog.Default().
	Logger *slog.Logger
}

// Index combines an Embedder and a VectorStore into the insert/search
// contract used by the orchestrators. Inserts are serialised; searches may
// run concurrently with them.
type Index struct {
	// embedder vectorises chunk content and query text.
	embedder Embedder

	// store persists entries and performs similarity search.
	store VectorStore

	// defaultTopK is the result count used when Search receives k <= 0.
	defaultTopK int

	// writeMu serialises Insert calls.
	writeMu sync.Mutex

	// modelID identifies the embedding model, or "" when unknown.
	modelID string

	// recordModel is true while the model still has to be written to the
	// store's metadata on the first successful insert.
	recordModel bool

	// log is the structured logger for index events.
	log *slog.Logger
}

// NewIndex constructs an Index from the given Embedder and VectorStore.
// When the store is a MetaStore and the embedder names its model, a warning is
// logged if the index was populated with a different model.
func NewIndex(embedder Embedder, store VectorStore, cfg *IndexConfig) (*Index, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if cfg == nil {
		cfg = &IndexConfig{}
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = DefaultTopK
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	ix := &Index{
		embedder:    embedder,
		store:       store,
		defaultTopK: cfg.DefaultTopK,
		log:         cfg.Logger,
	}

	if mi, ok := embedder.(ModelIdentifier); ok {
		ix.modelID = mi.ModelID()
	}
	if err := ix.checkModel(); err != nil {
		return nil, err
	}

	return ix, nil
}

// checkModel compares the configured embedding model against the one
// recorded in the store. A mismatch is logged, not enforced.
func (ix *Index) checkModel() error {
	meta, ok := ix.store.(MetaStore)
	if !ok || ix.modelID == "" {
		return nil
	}
	recorded, err := meta.Meta(metaEmbeddingModel)
	if err != nil {
		return fmt.Errorf("rag: read index metadata: %w", err)
	}
	switch {
	case recorded == "":
		ix.recordModel = true
	case recorded != ix.modelID:
		ix.log.Warn("rag: index was populated with a different embedding model; retrieval quality will suffer",
			slog.String("recorded_model", recorded),
			slog.String("configured_model", ix.modelID),
		)
	}
	return nil
}

// Insert embeds every chunk's content in one batch and persists the result.
// If vectorisation fails for any chunk the whole batch is rejected with
// ErrEmbedding and nothing is stored. Chunks without an ID get a fresh UUID,
// so repeated inserts always add entries. Returns the number of chunks stored.
func (ix *Index) Insert(ctx context.Context, chunks []Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("rag: embed %d chunks: %w: %w", len(chunks), ErrEmbedding, err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("rag: embedder returned %d vectors for %d chunks: %w", len(vectors), len(chunks), ErrEmbedding)
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return 0, fmt.Errorf("rag: embedder returned an empty vector for chunk %d: %w", i, ErrEmbedding)
		}
	}

	batch := make([]Chunk, len(chunks))
	for i, c := range chunks {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		batch[i] = c
	}

	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()

	if err := ix.store.Upsert(ctx, batch, vectors); err != nil {
		return 0, fmt.Errorf("rag: store %d chunks: %w", len(batch), err)
	}

	if ix.recordModel {
		if meta, ok := ix.store.(MetaStore); ok {
			if err := meta.SetMeta(metaEmbeddingModel, ix.modelID); err != nil {
				ix.log.Warn("rag: failed to record embedding model", slog.Any("error", err))
			} else {
				ix.recordModel = false
			}
		}
	}

	return len(batch), nil
}

// Search embeds query and returns up to k chunks ranked by descending
// similarity. k <= 0 uses the configured default. An empty index yields an
// empty slice and no error.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]Chunk, error) {
	if k <= 0 {
		k = ix.defaultTopK
	}

	vectors, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embed query: %w: %w", ErrEmbedding, err)
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("rag: embedder returned no vector for query: %w", ErrEmbedding)
	}

	chunks, err := ix.store.Search(ctx, vectors[0], k)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search: %w", err)
	}
	if chunks == nil {
		chunks = []Chunk{}
	}
	return chunks, nil
}

// Count returns the number of entries persisted in the index.
func (ix *Index) Count(ctx context.Context) (int, error) {
	n, err := ix.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("rag: count: %w", err)
	}
	return n, nil
}

// Status reports whether the index holds any entries.
func (ix *Index) Status(ctx context.Context) (IndexStatus, error) {
	n, err := ix.Count(ctx)
	if err != nil {
		return StatusEmpty, err
	}
	if n == 0 {
		return StatusEmpty, nil
	}
	return StatusPopulated, nil
}

// DefaultK returns the result count used when Search receives k <= 0.
func (ix *Index) DefaultK() int { return ix.defaultTopK }

// ModelID returns the embedding model identifier, or "" when unknown.
func (ix *Index) ModelID() string { return ix.modelID }
