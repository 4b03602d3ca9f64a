package embedder

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// knownChatModelPrefixes contains name fragments that identify chat/completion
// models which are not suitable for embedding.
var knownChatModelPrefixes = []string{
	"gpt-4",
	"gpt-3.5",
	"gpt-35",
	"o1",
	"o3",
	"llama3",
	"llama2",
	"llama-3",
	"llama-2",
	"mistral",
	"mixtral",
	"gemma",
	"gemini-",
	"phi-",
	"phi3",
	"claude",
	"command-r",
	"deepseek",
	"qwen",
	"solar",
	"vicuna",
	"falcon",
	"yi-",
}

// looksLikeChatModel returns true when the model name resembles a known
// chat/completion model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	if strings.Contains(lower, "embed") {
		return false
	}
	for _, prefix := range knownChatModelPrefixes {
		if strings.Contains(lower, prefix) {
			return true
		}
	}
	return false
}

// ValidateForRAG is the startup pre-flight for the embedding backend. It
// returns an error when the configuration cannot work (missing credentials,
// unknown backend) and logs warnings for configurations that probably will
// not do what the operator intended.
func ValidateForRAG(cfg *Config, log *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if os.Getenv("EMBEDDING_PROVIDER") == "" && os.Getenv("MODEL_PROVIDER") != "" && cfg.Backend != os.Getenv("MODEL_PROVIDER") {
		log.Warn("embedder: EMBEDDING_PROVIDER is not set and MODEL_PROVIDER has no embedding API",
			slog.String("model_provider", os.Getenv("MODEL_PROVIDER")),
			slog.String("backend", cfg.Backend),
			slog.String("hint", "set EMBEDDING_PROVIDER explicitly"),
		)
	}

	if cfg.Backend == "hash" {
		log.Warn("embedder: using the local hash embedder, retrieval quality is lexical only",
			slog.Int("dimensions", cfg.Dimensions),
		)
	}

	if looksLikeChatModel(cfg.Model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model, not an embedding model",
			slog.String("model", cfg.Model),
			slog.String("hint", "use a dedicated embedding model e.g. nomic-embed-text, text-embedding-3-small"),
		)
	}

	if cfg.Dimensions <= 0 {
		return fmt.Errorf("embedder: EMBEDDING_DIMENSIONS must be positive, got %d", cfg.Dimensions)
	}
	return nil
}
