// Package provider selects and constructs the chat model that answers
// questions, and wraps it in a Generator that turns a prompt into answer text.
// Supported backends: Ollama, any OpenAI-compatible API, Azure OpenAI,
// Volcengine Ark, Google Gemini.
package provider

import (
	"fmt"
	"strings"
	"time"
)

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI API or any compatible endpoint (Groq, vLLM).
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendArk selects Volcengine Ark.
	BackendArk Backend = "ark"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
)

// DefaultTimeout bounds a single generate call when Tuning.Timeout is zero.
const DefaultTimeout = 60 * time.Second

// ProviderOllama holds Ollama settings.
type ProviderOllama struct {
	// Host is the Ollama base URL. Env: OLLAMA_HOST.
	Host string
	// Model is the chat model tag. Env: OLLAMA_MODEL.
	Model string
}

// ProviderOpenAI holds settings for OpenAI and OpenAI-compatible APIs.
type ProviderOpenAI struct {
	// APIKey is the bearer token. Env: OPENAI_API_KEY.
	APIKey string
	// Model is the chat model name. Env: OPENAI_MODEL.
	Model string
	// BaseURL overrides the API endpoint, e.g. https://api.groq.com/openai/v1.
	// Env: OPENAI_BASE_URL.
	BaseURL string
}

// ProviderAzureOpenAI holds Azure OpenAI settings.
type ProviderAzureOpenAI struct {
	// APIKey env: AZURE_OPENAI_API_KEY.
	APIKey string
	// Endpoint env: AZURE_OPENAI_ENDPOINT.
	Endpoint string
	// Deployment env: AZURE_OPENAI_DEPLOYMENT.
	Deployment string
	// APIVersion env: AZURE_OPENAI_API_VERSION.
	APIVersion string
}

// ProviderArk holds Volcengine Ark settings.
type ProviderArk struct {
	// APIKey env: ARK_API_KEY.
	APIKey string
	// Model is the endpoint ID or model name. Env: ARK_MODEL.
	Model string
	// BaseURL env: ARK_BASE_URL (empty uses the SDK default region).
	BaseURL string
}

// ProviderGemini holds Google Gemini settings.
type ProviderGemini struct {
	// APIKey env: GOOGLE_API_KEY.
	APIKey string
	// Model env: GEMINI_MODEL.
	Model string
}

// SharedTuning holds generation settings common to every backend.
type SharedTuning struct {
	// MaxTokens caps the answer length. Env: MODEL_MAX_TOKENS.
	MaxTokens int
	// Temperature controls randomness. Env: MODEL_TEMPERATURE.
	Temperature float32
	// Timeout bounds a single generate call. Env: MODEL_TIMEOUT.
	Timeout time.Duration
}

// Config holds all provider-level configuration. Only the section named by
// Backend is consulted.
type Config struct {
	Backend     Backend
	Ollama      ProviderOllama
	OpenAI      ProviderOpenAI
	AzureOpenAI ProviderAzureOpenAI
	Ark         ProviderArk
	Gemini      ProviderGemini
	Tuning      SharedTuning
}

// ModelName returns the model or deployment name of the selected backend.
func (c *Config) ModelName() string {
	switch c.Backend {
	case BackendOllama:
		return c.Ollama.Model
	case BackendOpenAI:
		return c.OpenAI.Model
	case BackendAzure:
		return c.AzureOpenAI.Deployment
	case BackendArk:
		return c.Ark.Model
	case BackendGemini:
		return c.Gemini.Model
	}
	return ""
}

// Validate checks that the selected backend has everything it needs and names
// the env var to set when it does not.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendOllama:
		if c.Ollama.Host == "" {
			return fmt.Errorf("provider: OLLAMA_HOST is required for ollama backend")
		}
		if c.Ollama.Model == "" {
			return fmt.Errorf("provider: OLLAMA_MODEL is required for ollama backend")
		}
	case BackendOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("provider: OPENAI_API_KEY is required for openai backend")
		}
		if c.OpenAI.Model == "" {
			return fmt.Errorf("provider: OPENAI_MODEL is required for openai backend")
		}
	case BackendAzure:
		if c.AzureOpenAI.APIKey == "" {
			return fmt.Errorf("provider: AZURE_OPENAI_API_KEY is required for azure backend")
		}
		if c.AzureOpenAI.Endpoint == "" {
			return fmt.Errorf("provider: AZURE_OPENAI_ENDPOINT is required for azure backend")
		}
		if c.AzureOpenAI.Deployment == "" {
			return fmt.Errorf("provider: AZURE_OPENAI_DEPLOYMENT is required for azure backend")
		}
	case BackendArk:
		if c.Ark.APIKey == "" {
			return fmt.Errorf("provider: ARK_API_KEY is required for ark backend")
		}
		if c.Ark.Model == "" {
			return fmt.Errorf("provider: ARK_MODEL is required for ark backend")
		}
	case BackendGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("provider: GOOGLE_API_KEY is required for gemini backend")
		}
		if c.Gemini.Model == "" {
			return fmt.Errorf("provider: GEMINI_MODEL is required for gemini backend")
		}
	default:
		return fmt.Errorf("provider: unknown backend %q, valid values: ollama, openai, azure, ark, gemini", c.Backend)
	}
	if c.Tuning.Timeout < 0 {
		return fmt.Errorf("provider: MODEL_TIMEOUT must not be negative")
	}
	return nil
}

// isAzureReasoningModel reports whether an Azure deployment name belongs to
// the o-series or codex family, which reject temperature and max_tokens.
func isAzureReasoningModel(deployment string) bool {
	d := strings.ToLower(deployment)
	for _, prefix := range []string{"o1", "o3", "o4", "codex"} {
		if strings.HasPrefix(d, prefix) {
			return true
		}
	}
	return false
}
