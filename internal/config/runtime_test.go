package config

import (
	"os"
	"testing"
)

// clearRuntimeEnv unsets every key RuntimeFromEnv reads.
func clearRuntimeEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"INDEX_BACKEND", "INDEX_DIR", "QDRANT_HOST", "QDRANT_PORT", "QDRANT_COLLECTION",
		"QDRANT_API_KEY", "QDRANT_TLS", "RETRIEVAL_TOP_K", "RETRIEVAL_MAX_CONTEXT_TOKENS",
		"CHUNK_SIZE", "CHUNK_OVERLAP", "SERVER_HOST", "SERVER_PORT", "RAGQA_API_KEY",
		"UPLOAD_DIR", "UPLOAD_MAX_BYTES", "RATE_LIMIT", "RATE_BURST", "LEDGER_DB",
	} {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}
}

func TestRuntimeFromEnv_Defaults(t *testing.T) {
	clearRuntimeEnv(t)

	r, err := RuntimeFromEnv()
	if err != nil {
		t.Fatalf("RuntimeFromEnv: %v", err)
	}
	if r.IndexBackend != IndexBolt {
		t.Errorf("backend: want bolt, got %q", r.IndexBackend)
	}
	if r.QdrantPort != 6334 || r.QdrantCollection != "ragqa-chunks" {
		t.Errorf("qdrant defaults: %d %q", r.QdrantPort, r.QdrantCollection)
	}
	if r.UploadMaxBytes != 32<<20 {
		t.Errorf("upload max: want 32 MiB, got %d", r.UploadMaxBytes)
	}
	if r.TopK != 0 || r.MaxContextTokens != 0 {
		t.Errorf("retrieval should defer to query defaults, got k=%d max=%d", r.TopK, r.MaxContextTokens)
	}
	if r.ServerPort != 8080 || r.RateBurst != 20 {
		t.Errorf("server defaults: port=%d burst=%d", r.ServerPort, r.RateBurst)
	}
}

func TestRuntimeFromEnv_Overrides(t *testing.T) {
	clearRuntimeEnv(t)
	t.Setenv("INDEX_BACKEND", "QDRANT")
	t.Setenv("QDRANT_TLS", "true")
	t.Setenv("RETRIEVAL_TOP_K", "8")
	t.Setenv("UPLOAD_MAX_BYTES", "1024")
	t.Setenv("RATE_LIMIT", "2.5")
	t.Setenv("LEDGER_DB", "disabled")

	r, err := RuntimeFromEnv()
	if err != nil {
		t.Fatalf("RuntimeFromEnv: %v", err)
	}
	if r.IndexBackend != IndexQdrant || !r.QdrantTLS || r.TopK != 8 ||
		r.UploadMaxBytes != 1024 || r.RateLimit != 2.5 || r.LedgerDB != "disabled" {
		t.Errorf("overrides not applied: %+v", r)
	}
}

func TestRuntimeFromEnv_Errors(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"INDEX_BACKEND", "faiss"},
		{"RETRIEVAL_TOP_K", "four"},
		{"QDRANT_TLS", "maybe"},
		{"RATE_LIMIT", "fast"},
	}
	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			clearRuntimeEnv(t)
			t.Setenv(tc.key, tc.value)
			if _, err := RuntimeFromEnv(); err == nil {
				t.Errorf("%s=%q: want error", tc.key, tc.value)
			}
		})
	}
}
