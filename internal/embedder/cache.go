package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/54b3r/ragqa-go/internal/rag"
)

// cacheKeyPrefix namespaces embedding vectors in the shared key space.
const cacheKeyPrefix = "ragqa:emb:"

// DefaultCacheTTL is how long a cached vector lives when no TTL is configured.
const DefaultCacheTTL = 24 * time.Hour

// ErrCacheMiss is returned by a VectorCache when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// VectorCache is the key-value store consumed by CachedEmbedder.
type VectorCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedEmbedder caches embeddings keyed by model and text. Only cache misses
// are sent to the wrapped embedder, in a single batch. Cache failures degrade
// to pass-through and are logged.
type CachedEmbedder struct {
	inner   rag.Embedder
	cache   VectorCache
	modelID string
	ttl     time.Duration
	lookups *prometheus.CounterVec
	log     *slog.Logger
}

// CacheConfig holds the optional settings for NewCachedEmbedder.
type CacheConfig struct {
	// TTL is the expiry applied to stored vectors. Zero means DefaultCacheTTL.
	TTL time.Duration
	// Lookups counts cache lookups by "result" label (hit|miss). May be nil.
	Lookups *prometheus.CounterVec
	// Logger receives cache failure warnings. Nil means slog.Default().
	Logger *slog.Logger
}

// NewCacheLookups registers ragqa_embedding_cache_lookups_total against reg.
func NewCacheLookups(reg prometheus.Registerer) *prometheus.CounterVec {
	return promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Namespace: "ragqa",
		Subsystem: "embedding_cache",
		Name:      "lookups_total",
		Help:      "Embedding cache lookups, partitioned by result (hit or miss).",
	}, []string{"result"})
}

// NewCachedEmbedder wraps inner with cache.
func NewCachedEmbedder(inner rag.Embedder, cache VectorCache, cfg *CacheConfig) *CachedEmbedder {
	if cfg == nil {
		cfg = &CacheConfig{}
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	modelID := "unknown"
	if id, ok := inner.(rag.ModelIdentifier); ok {
		modelID = id.ModelID()
	}
	return &CachedEmbedder{
		inner:   inner,
		cache:   cache,
		modelID: modelID,
		ttl:     ttl,
		lookups: cfg.Lookups,
		log:     log,
	}
}

// ModelID reports the wrapped embedder's model.
func (c *CachedEmbedder) ModelID() string { return c.modelID }

// Embed returns cached vectors where available and embeds the rest.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var missIdx []int
	var missTexts []string

	for i, t := range texts {
		keys[i] = c.key(t)
		if vec, ok := c.get(ctx, keys[i]); ok {
			c.count("hit")
			out[i] = vec
			continue
		}
		c.count("miss")
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("embedding cache: expected %d embeddings, got %d", len(missTexts), len(vecs))
	}

	for j, i := range missIdx {
		out[i] = vecs[j]
		c.put(ctx, keys[i], vecs[j])
	}
	return out, nil
}

func (c *CachedEmbedder) key(text string) string {
	h := sha256.New()
	h.Write([]byte(c.modelID))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

func (c *CachedEmbedder) get(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.log.Warn("embedding cache: get failed", slog.String("key", key), slog.Any("error", err))
		}
		return nil, false
	}
	vec, err := decodeVector(data)
	if err != nil || len(vec) == 0 {
		c.log.Warn("embedding cache: discarding unreadable entry", slog.String("key", key), slog.Any("error", err))
		return nil, false
	}
	return vec, true
}

func (c *CachedEmbedder) put(ctx context.Context, key string, vec []float32) {
	if err := c.cache.Set(ctx, key, encodeVector(vec), c.ttl); err != nil {
		c.log.Warn("embedding cache: set failed", slog.String("key", key), slog.Any("error", err))
	}
}

func (c *CachedEmbedder) count(result string) {
	if c.lookups != nil {
		c.lookups.WithLabelValues(result).Inc()
	}
}

// encodeVector serialises v as little-endian float32s.
func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid vector length %d", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
