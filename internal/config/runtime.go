package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Index backends.
const (
	IndexBolt   = "bolt"
	IndexQdrant = "qdrant"
)

// Runtime holds the settings that wire components together rather than
// configure a single one. Model, embedding and tracing settings are read by
// their own packages.
type Runtime struct {
	// IndexBackend is IndexBolt or IndexQdrant.
	IndexBackend string
	// IndexDir is the bbolt index directory.
	IndexDir string

	QdrantHost       string
	QdrantPort       int
	QdrantCollection string
	QdrantAPIKey     string
	QdrantTLS        bool

	// TopK is the retrieval depth; 0 means the query default.
	TopK int
	// MaxContextTokens caps the prompt; 0 means unlimited.
	MaxContextTokens int

	ChunkSize    int
	ChunkOverlap int

	ServerHost     string
	ServerPort     int
	APIKey         string
	UploadDir      string
	UploadMaxBytes int64
	RateLimit      float64
	RateBurst      int

	// LedgerDB is the SQLite path, or "disabled".
	LedgerDB string
}

// RuntimeFromEnv reads Runtime from the environment. Numeric values that do
// not parse are reported rather than silently defaulted.
func RuntimeFromEnv() (*Runtime, error) {
	p := &parser{}
	r := &Runtime{
		IndexBackend:     strings.ToLower(getEnvOrDefault("INDEX_BACKEND", IndexBolt)),
		IndexDir:         getEnvOrDefault("INDEX_DIR", filepath.Join("data", "index")),
		QdrantHost:       getEnvOrDefault("QDRANT_HOST", "localhost"),
		QdrantPort:       p.int("QDRANT_PORT", 6334),
		QdrantCollection: getEnvOrDefault("QDRANT_COLLECTION", "ragqa-chunks"),
		QdrantAPIKey:     os.Getenv("QDRANT_API_KEY"),
		QdrantTLS:        p.bool("QDRANT_TLS"),
		TopK:             p.int("RETRIEVAL_TOP_K", 0),
		MaxContextTokens: p.int("RETRIEVAL_MAX_CONTEXT_TOKENS", 0),
		ChunkSize:        p.int("CHUNK_SIZE", 0),
		ChunkOverlap:     p.int("CHUNK_OVERLAP", 0),
		ServerHost:       getEnvOrDefault("SERVER_HOST", "127.0.0.1"),
		ServerPort:       p.int("SERVER_PORT", 8080),
		APIKey:           os.Getenv("RAGQA_API_KEY"),
		UploadDir:        getEnvOrDefault("UPLOAD_DIR", filepath.Join("data", "documents")),
		UploadMaxBytes:   p.int64("UPLOAD_MAX_BYTES", 32<<20),
		RateLimit:        p.float("RATE_LIMIT", 10),
		RateBurst:        p.int("RATE_BURST", 20),
		LedgerDB:         os.Getenv("LEDGER_DB"),
	}
	if p.err != nil {
		return nil, p.err
	}
	switch r.IndexBackend {
	case IndexBolt, IndexQdrant:
	default:
		return nil, fmt.Errorf("config: INDEX_BACKEND must be %q or %q, got %q", IndexBolt, IndexQdrant, r.IndexBackend)
	}
	return r, nil
}

// parser collects the first parse failure so RuntimeFromEnv can read every
// key in one expression.
type parser struct {
	err error
}

func (p *parser) int(key string, def int) int {
	return int(p.int64(key, int64(def)))
}

func (p *parser) int64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return f
}

func (p *parser) bool(key string) bool {
	v := os.Getenv(key)
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return false
	}
	return b
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("config: %s=%q: %w", key, value, err)
	}
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
