package embedder

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/54b3r/ragqa-go/internal/rag"
)

// Default embedding models per backend.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"
	defaultGeminiModel = "text-embedding-004"

	// defaultOllamaDimensions is the output dimension of nomic-embed-text.
	defaultOllamaDimensions = 768
	// defaultOpenAIDimensions is the output dimension of text-embedding-3-small.
	defaultOpenAIDimensions = 1536
	// defaultGeminiDimensions is the output dimension of text-embedding-004.
	defaultGeminiDimensions = 768

	defaultAzureAPIVersion = "2025-04-01-preview"
)

// Backends lists the accepted EMBEDDING_PROVIDER values.
var Backends = []string{"ollama", "openai", "azure", "gemini", "hash"}

// Config is the resolved embedding configuration.
type Config struct {
	// Backend is one of Backends.
	Backend string
	// Model is the embedding model or Azure deployment name.
	Model string
	// APIKey authenticates against remote backends.
	APIKey string
	// Endpoint is the backend base URL (Ollama host, OpenAI base URL, Azure endpoint).
	Endpoint string
	// APIVersion is the Azure OpenAI API version.
	APIVersion string
	// Dimensions is the expected vector size. Zero picks the backend default.
	Dimensions int

	// CacheRedisAddr enables the Redis vector cache when non-empty.
	CacheRedisAddr string
	// CacheRedisPassword authenticates the cache connection.
	CacheRedisPassword string
	// CacheTTL is the expiry of cached vectors.
	CacheTTL time.Duration
}

// ConfigFromEnv resolves the embedding configuration with cascading defaults
// that inherit from the chat provider settings when embedding-specific
// overrides are not set.
//
// Resolution order:
//
//  1. EMBEDDING_PROVIDER; if unset, MODEL_PROVIDER when it names an
//     embedding-capable backend, else ollama
//  2. Per-backend credentials inherited from the chat provider's env vars
//  3. EMBEDDING_MODEL overrides the backend's default model
//  4. EMBEDDING_API_KEY overrides the inherited API key
//  5. EMBEDDING_ENDPOINT overrides the inherited endpoint
//  6. EMBEDDING_DIMENSIONS overrides the default dimensions
func ConfigFromEnv() *Config {
	backend := getEnv("EMBEDDING_PROVIDER")
	if backend == "" {
		backend = "ollama"
		switch p := getEnv("MODEL_PROVIDER"); p {
		case "openai", "azure", "gemini":
			backend = p
		}
	}

	cfg := &Config{
		Backend:            backend,
		Model:              getEnv("EMBEDDING_MODEL"),
		APIKey:             getEnv("EMBEDDING_API_KEY"),
		Endpoint:           getEnv("EMBEDDING_ENDPOINT"),
		Dimensions:         getEnvInt("EMBEDDING_DIMENSIONS", 0),
		CacheRedisAddr:     getEnv("EMBEDDING_CACHE_REDIS_ADDR"),
		CacheRedisPassword: getEnv("EMBEDDING_CACHE_REDIS_PASSWORD"),
		CacheTTL:           getEnvDuration("EMBEDDING_CACHE_TTL", DefaultCacheTTL),
	}

	switch backend {
	case "ollama":
		cfg.Model = orDefault(cfg.Model, defaultOllamaModel)
		cfg.Endpoint = orDefault(cfg.Endpoint, getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434"))
	case "openai":
		cfg.Model = orDefault(cfg.Model, defaultOpenAIModel)
		cfg.APIKey = orDefault(cfg.APIKey, getEnv("OPENAI_API_KEY"))
		cfg.Endpoint = orDefault(cfg.Endpoint, "https://api.openai.com/v1")
	case "azure":
		cfg.Model = orDefault(cfg.Model, defaultOpenAIModel)
		cfg.APIKey = orDefault(cfg.APIKey, getEnv("AZURE_OPENAI_API_KEY"))
		cfg.Endpoint = orDefault(cfg.Endpoint, getEnv("AZURE_OPENAI_ENDPOINT"))
		cfg.APIVersion = getEnvOrDefault("AZURE_OPENAI_API_VERSION", defaultAzureAPIVersion)
	case "gemini":
		cfg.Model = orDefault(cfg.Model, defaultGeminiModel)
		cfg.APIKey = orDefault(cfg.APIKey, getEnv("GOOGLE_API_KEY"))
	case "hash":
		cfg.Model = orDefault(cfg.Model, "fnv1a")
	}

	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions(backend)
	}
	return cfg
}

// DefaultDimensions returns the default embedding vector size for the given
// backend. Callers that pre-configure a vector store (Qdrant collection
// creation) use this rather than hardcoding a value.
func DefaultDimensions(backend string) int {
	switch backend {
	case "ollama":
		return defaultOllamaDimensions
	case "gemini":
		return defaultGeminiDimensions
	case "hash":
		return DefaultHashDimensions
	default:
		return defaultOpenAIDimensions
	}
}

// Validate reports the first missing setting, naming the env var to set.
func (c *Config) Validate() error {
	switch c.Backend {
	case "ollama":
		if c.Endpoint == "" {
			return fmt.Errorf("embedder: ollama requires OLLAMA_HOST or EMBEDDING_ENDPOINT")
		}
	case "openai":
		if c.APIKey == "" {
			return fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
	case "azure":
		if c.APIKey == "" {
			return fmt.Errorf("embedder: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		if c.Endpoint == "" {
			return fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
	case "gemini":
		if c.APIKey == "" {
			return fmt.Errorf("embedder: gemini requires GOOGLE_API_KEY or EMBEDDING_API_KEY")
		}
	case "hash":
	default:
		return fmt.Errorf("embedder: unknown backend %q, valid values: %s", c.Backend, strings.Join(Backends, ", "))
	}
	return nil
}

// New constructs the rag.Embedder described by cfg. The returned embedder is
// not cached; wrap it with NewCachedEmbedder when CacheRedisAddr is set.
func New(ctx context.Context, cfg *Config) (rag.Embedder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case "ollama":
		return NewOllamaEmbedder(&OllamaConfig{Host: cfg.Endpoint, Model: cfg.Model}), nil
	case "openai":
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    cfg.Endpoint,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: requestedDimensions(cfg),
		}), nil
	case "azure":
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    cfg.Endpoint,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: requestedDimensions(cfg),
			Azure:      true,
			APIVersion: cfg.APIVersion,
		}), nil
	case "gemini":
		return NewGeminiEmbedder(ctx, &GeminiConfig{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: requestedDimensions(cfg),
		})
	default:
		return NewHashEmbedder(cfg.Dimensions), nil
	}
}

// requestedDimensions only asks the API for a reduced size when the operator
// overrode the backend default.
func requestedDimensions(cfg *Config) int {
	if cfg.Dimensions == DefaultDimensions(cfg.Backend) {
		return 0
	}
	return cfg.Dimensions
}

// getEnv returns the value of the named environment variable, or empty string.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
