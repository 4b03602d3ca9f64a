package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/ragqa-go/internal/provider"
)

// LLMPinger probes the answer backend. It prefers a zero-token health check
// and falls back to a one-word generation when the backend has none.
type LLMPinger struct {
	health   provider.HealthChecker
	fallback func(ctx context.Context) error
	name     string
}

// NewLLMPinger constructs an LLMPinger. hc may be nil (ark, gemini); fallback
// is then used and consumes tokens on every probe.
func NewLLMPinger(hc provider.HealthChecker, fallback func(ctx context.Context) error, name string) *LLMPinger {
	return &LLMPinger{health: hc, fallback: fallback, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *LLMPinger) Name() string { return "llm:" + p.name }

// Ping probes the LLM backend.
func (p *LLMPinger) Ping(ctx context.Context) error {
	if p.health != nil {
		if err := p.health.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s health check failed: %w", p.name, err)
		}
		return nil
	}
	if p.fallback == nil {
		return fmt.Errorf("%s: no health check available", p.name)
	}

	slog.Debug("pinger: generate-based health check consumes tokens", slog.String("backend", p.name))
	if err := p.fallback(ctx); err != nil {
		return fmt.Errorf("generate failed: %w", err)
	}
	return nil
}

// QdrantPinger probes a Qdrant instance using its native HealthCheck RPC.
type QdrantPinger struct {
	client *qdrant.Client
}

// NewQdrantPinger constructs a QdrantPinger for the given Qdrant client.
func NewQdrantPinger(client *qdrant.Client) *QdrantPinger {
	return &QdrantPinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	if _, err := p.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}
