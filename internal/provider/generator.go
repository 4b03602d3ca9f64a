package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/ragqa-go/internal/budget"
	"github.com/54b3r/ragqa-go/internal/logging"
	"github.com/54b3r/ragqa-go/internal/rag"
)

// Generator turns a fully built prompt into answer text with a single,
// stateless chat model call. It is safe for concurrent use.
type Generator struct {
	model   model.BaseChatModel
	timeout time.Duration
	name    string
}

// GeneratorConfig holds the optional settings for NewGenerator.
type GeneratorConfig struct {
	// Timeout bounds each Generate call. Zero means DefaultTimeout.
	Timeout time.Duration
	// Name labels the backend in logs (e.g. "ollama/llama3").
	Name string
}

// NewGenerator wraps m. It returns an error when m is nil.
func NewGenerator(m model.BaseChatModel, cfg *GeneratorConfig) (*Generator, error) {
	if m == nil {
		return nil, fmt.Errorf("provider: chat model must not be nil")
	}
	if cfg == nil {
		cfg = &GeneratorConfig{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Generator{model: m, timeout: timeout, name: cfg.Name}, nil
}

// Generate sends prompt as one user message and returns the model's reply
// verbatim. Every failure, including a nil or empty reply and the per-call
// timeout, is reported as rag.ErrGeneration.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	log := logging.FromContext(ctx)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	msgs := []*schema.Message{schema.UserMessage(prompt)}
	start := time.Now()
	log.Debug("generator: request",
		slog.String("backend", g.name),
		slog.Int("estimated_tokens", budget.EstimateMessages(msgs)),
	)

	resp, err := g.model.Generate(ctx, msgs)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("provider: %w: timed out after %s: %w", rag.ErrGeneration, g.timeout, context.DeadlineExceeded)
		}
		return "", fmt.Errorf("provider: %w: %w", rag.ErrGeneration, err)
	}
	if resp == nil {
		return "", fmt.Errorf("provider: %w: model returned no message", rag.ErrGeneration)
	}
	if resp.Content == "" {
		return "", fmt.Errorf("provider: %w: model returned an empty answer", rag.ErrGeneration)
	}

	log.Debug("generator: response",
		slog.String("backend", g.name),
		slog.Int("answer_chars", len(resp.Content)),
		slog.Duration("duration", time.Since(start)),
	)
	return resp.Content, nil
}

// Ping sends a minimal one-word prompt. It consumes tokens and is only used
// for readiness when the backend has no zero-cost HealthChecker.
func (g *Generator) Ping(ctx context.Context) error {
	_, err := g.Generate(ctx, "ping")
	return err
}
