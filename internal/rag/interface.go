// Package rag defines the retrieval-augmented generation core: the chunk
// model, the error taxonomy shared by every stage, the embedding and vector
// storage contracts, and the Index that composes them.
// Concrete stores (bbolt, Qdrant) satisfy VectorStore so the orchestrators
// never depend on a specific backend.
package rag

import (
	"context"
)

// Chunk is the unit of retrievable text.
type Chunk struct {
	// ID is the unique identifier for this chunk. Assigned by Index.Insert
	// when empty.
	ID string

	// Content is the raw text of the chunk.
	Content string

	// Source is the originating file path.
	Source string

	// Metadata holds source metadata such as "page", "format" and "chunk_index".
	Metadata map[string]string

	// Score is the cosine similarity assigned during search.
	// Zero on chunks that did not come from a search.
	Score float32
}

// IndexStatus reports whether anything has ever been stored in an index.
type IndexStatus int

const (
	// StatusEmpty means the index holds no entries.
	StatusEmpty IndexStatus = iota
	// StatusPopulated means at least one entry has been stored.
	StatusPopulated
)

// String returns the lower-case status name used in logs and JSON.
func (s IndexStatus) String() string {
	if s == StatusPopulated {
		return "populated"
	}
	return "empty"
}

// VectorStore persists chunks alongside their embeddings and searches them
// by similarity. Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Upsert stores a batch of chunks with their pre-computed embeddings.
	// vectors[i] is the embedding of chunks[i]. The batch is all-or-nothing
	// where the backend allows it.
	Upsert(ctx context.Context, chunks []Chunk, vectors [][]float32) error

	// Search returns up to topK chunks ranked by descending similarity to
	// queryVector. An empty store yields an empty slice and no error.
	Search(ctx context.Context, queryVector []float32, topK int) ([]Chunk, error)

	// Count returns the number of persisted entries.
	Count(ctx context.Context) (int, error)

	// Close releases any resources held by the store.
	Close() error
}

// MetaStore is implemented by stores that can persist small string values
// next to the index, such as the embedding model it was built with.
type MetaStore interface {
	// Meta returns the value stored under key, or "" when unset.
	Meta(key string) (string, error)
	// SetMeta stores value under key.
	SetMeta(key, value string) error
}

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines and must be
// deterministic for a fixed model.
type Embedder interface {
	// Embed converts a batch of texts into their embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ModelIdentifier is implemented by embedders that can name the model they
// produce vectors with (e.g. "ollama/nomic-embed-text").
type ModelIdentifier interface {
	ModelID() string
}
