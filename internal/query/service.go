// Package query answers questions from the indexed documents. A Service
// retrieves the closest chunks, grounds a fixed prompt in them, and returns
// the generator's answer verbatim.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/54b3r/ragqa-go/internal/budget"
	"github.com/54b3r/ragqa-go/internal/logging"
	"github.com/54b3r/ragqa-go/internal/rag"
	"github.com/54b3r/ragqa-go/internal/store"
)

// EmptyIndexAdvisory is returned instead of an answer while the index holds
// no entries. It is a normal result, not an error.
const EmptyIndexAdvisory = "Vector database is empty. Please ingest documents first."

// Retrieval limits for Config.TopK.
const (
	DefaultTopK = rag.DefaultTopK
	MaxTopK     = 20
)

// Retriever is the read side of the vector index.
type Retriever interface {
	Status(ctx context.Context) (rag.IndexStatus, error)
	Search(ctx context.Context, query string, k int) ([]rag.Chunk, error)
}

// Generator turns a prompt into answer text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// QueryLogger persists answered questions.
type QueryLogger interface {
	AppendQuery(ctx context.Context, q store.Query) error
}

// Config holds the optional settings for NewService.
type Config struct {
	// TopK is the number of chunks retrieved per question (1..20, default 4).
	TopK int
	// MaxContextTokens caps the estimated prompt size; lowest-ranked chunks
	// are dropped to fit. Zero means unlimited.
	MaxContextTokens int
	// Log records each answered question. Nil disables it.
	Log QueryLogger
	// Metrics counts answers by outcome. Nil disables metrics.
	Metrics *Metrics
}

// Service composes retrieval, prompt construction and generation.
// It is safe for concurrent use.
type Service struct {
	retriever        Retriever
	generator        Generator
	topK             int
	maxContextTokens int
	log              QueryLogger
	metrics          *Metrics
}

// NewService constructs a Service. TopK outside 1..20 is rejected.
func NewService(r Retriever, g Generator, cfg *Config) (*Service, error) {
	if r == nil {
		return nil, fmt.Errorf("query: retriever must not be nil")
	}
	if g == nil {
		return nil, fmt.Errorf("query: generator must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	k := cfg.TopK
	if k == 0 {
		k = DefaultTopK
	}
	if k < 1 || k > MaxTopK {
		return nil, fmt.Errorf("query: RETRIEVAL_TOP_K must be between 1 and %d, got %d", MaxTopK, k)
	}
	if cfg.MaxContextTokens < 0 {
		return nil, fmt.Errorf("query: RETRIEVAL_MAX_CONTEXT_TOKENS must not be negative")
	}
	return &Service{
		retriever:        r,
		generator:        g,
		topK:             k,
		maxContextTokens: cfg.MaxContextTokens,
		log:              cfg.Log,
		metrics:          cfg.Metrics,
	}, nil
}

// TopK returns the configured retrieval depth.
func (s *Service) TopK() int { return s.topK }

// Answer returns a grounded answer to question. While the index is empty it
// returns EmptyIndexAdvisory without calling the generator. Embedding and
// generation failures propagate as rag.ErrEmbedding and rag.ErrGeneration.
func (s *Service) Answer(ctx context.Context, question string) (string, error) {
	log := logging.FromContext(ctx)
	start := time.Now()

	status, err := s.retriever.Status(ctx)
	if err != nil {
		s.metrics.answer(outcomeError)
		return "", fmt.Errorf("query: index status: %w", err)
	}
	if status == rag.StatusEmpty {
		s.metrics.answer(outcomeAdvisory)
		log.Info("query: index is empty, returning advisory")
		return EmptyIndexAdvisory, nil
	}

	chunks, err := s.retriever.Search(ctx, question, s.topK)
	if err != nil {
		s.metrics.answer(outcomeError)
		return "", fmt.Errorf("query: retrieve: %w", err)
	}

	contexts := make([]string, len(chunks))
	for i, c := range chunks {
		contexts[i] = c.Content
	}
	if s.maxContextTokens > 0 {
		fixed := BuildPrompt(nil, question)
		fitted := budget.FitContext(fixed, contexts, s.maxContextTokens)
		if len(fitted) < len(contexts) {
			log.Warn("query: context trimmed to fit token budget",
				slog.Int("retrieved", len(contexts)),
				slog.Int("kept", len(fitted)),
				slog.Int("max_context_tokens", s.maxContextTokens),
			)
		}
		contexts = fitted
	}
	s.metrics.retrieved(len(contexts))

	answer, err := s.generator.Generate(ctx, BuildPrompt(contexts, question))
	if err != nil {
		s.metrics.answer(outcomeError)
		return "", fmt.Errorf("query: generate: %w", err)
	}

	s.metrics.answer(outcomeAnswered)
	log.Info("query: answered",
		slog.Int("chunks", len(contexts)),
		slog.Duration("duration", time.Since(start)),
	)

	if s.log != nil {
		q := store.Query{Question: question, Answer: answer, Chunks: len(contexts)}
		if err := s.log.AppendQuery(ctx, q); err != nil {
			log.Warn("query: ledger append failed", slog.Any("error", err))
		}
	}
	return answer, nil
}
