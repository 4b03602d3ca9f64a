package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// HealthChecker probes a backend without generating tokens.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// NewHealthCheck returns a zero-token probe for the configured backend, or
// nil when the backend has none (ark, gemini).
func NewHealthCheck(cfg *Config) HealthChecker {
	switch cfg.Backend {
	case BackendOllama:
		return &ollamaHealth{
			url:    strings.TrimRight(cfg.Ollama.Host, "/") + "/api/tags",
			client: &http.Client{Timeout: 5 * time.Second},
		}
	case BackendOpenAI:
		c := openai.DefaultConfig(cfg.OpenAI.APIKey)
		if cfg.OpenAI.BaseURL != "" {
			c.BaseURL = strings.TrimRight(cfg.OpenAI.BaseURL, "/")
		}
		return &listModelsHealth{client: openai.NewClientWithConfig(c)}
	case BackendAzure:
		c := openai.DefaultAzureConfig(cfg.AzureOpenAI.APIKey, strings.TrimRight(cfg.AzureOpenAI.Endpoint, "/"))
		if cfg.AzureOpenAI.APIVersion != "" {
			c.APIVersion = cfg.AzureOpenAI.APIVersion
		}
		return &listModelsHealth{client: openai.NewClientWithConfig(c)}
	}
	return nil
}

// ollamaHealth lists local models via GET /api/tags.
type ollamaHealth struct {
	url    string
	client *http.Client
}

func (h *ollamaHealth) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// listModelsHealth calls the free ListModels endpoint of an OpenAI-compatible API.
type listModelsHealth struct {
	client *openai.Client
}

func (h *listModelsHealth) HealthCheck(ctx context.Context) error {
	if _, err := h.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}
