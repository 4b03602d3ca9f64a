package embedder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// memCache is an in-memory VectorCache with optional injected failures.
type memCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]time.Duration
	getErr  error
	setErr  error
	setHits int
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return v, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setHits++
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

// countingEmbedder records each batch it is asked to embed.
type countingEmbedder struct {
	mu      sync.Mutex
	batches [][]string
	err     error
}

func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	c.batches = append(c.batches, append([]string(nil), texts...))
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (c *countingEmbedder) ModelID() string { return "test/count" }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newLookups() *prometheus.CounterVec {
	return NewCacheLookups(prometheus.NewRegistry())
}

func TestCachedEmbedder_OnlyMissesGoUpstream(t *testing.T) {
	t.Parallel()

	inner := &countingEmbedder{}
	cache := newMemCache()
	lookups := newLookups()
	ce := NewCachedEmbedder(inner, cache, &CacheConfig{TTL: time.Hour, Lookups: lookups, Logger: quietLogger()})
	ctx := context.Background()

	if _, err := ce.Embed(ctx, []string{"aa", "bbb"}); err != nil {
		t.Fatalf("first embed: %v", err)
	}
	got, err := ce.Embed(ctx, []string{"bbb", "c", "aa"})
	if err != nil {
		t.Fatalf("second embed: %v", err)
	}

	if len(inner.batches) != 2 {
		t.Fatalf("want 2 upstream batches, got %d", len(inner.batches))
	}
	if len(inner.batches[1]) != 1 || inner.batches[1][0] != "c" {
		t.Errorf("second batch should contain only the miss, got %v", inner.batches[1])
	}
	// Order follows the input, mixing hits and misses.
	wantFirst := []float32{3, 1, 2}
	for i, w := range wantFirst {
		if got[i][0] != w {
			t.Errorf("vector %d: want first component %v, got %v", i, w, got[i][0])
		}
	}
	if hits := testutil.ToFloat64(lookups.WithLabelValues("hit")); hits != 2 {
		t.Errorf("hits: want 2, got %v", hits)
	}
	if misses := testutil.ToFloat64(lookups.WithLabelValues("miss")); misses != 3 {
		t.Errorf("misses: want 3, got %v", misses)
	}
	for _, ttl := range cache.ttls {
		if ttl != time.Hour {
			t.Errorf("ttl: want 1h, got %v", ttl)
		}
	}
}

func TestCachedEmbedder_CacheFailureDegradesToPassThrough(t *testing.T) {
	t.Parallel()

	inner := &countingEmbedder{}
	cache := newMemCache()
	cache.getErr = errors.New("connection refused")
	cache.setErr = errors.New("connection refused")
	ce := NewCachedEmbedder(inner, cache, &CacheConfig{Logger: quietLogger()})

	got, err := ce.Embed(context.Background(), []string{"x", "yy"})
	if err != nil {
		t.Fatalf("embed should survive cache failure: %v", err)
	}
	if len(got) != 2 || got[1][0] != 2 {
		t.Errorf("unexpected vectors %v", got)
	}
	if cache.setHits != 2 {
		t.Errorf("want 2 set attempts, got %d", cache.setHits)
	}
}

func TestCachedEmbedder_InnerErrorPropagates(t *testing.T) {
	t.Parallel()

	want := errors.New("provider down")
	ce := NewCachedEmbedder(&countingEmbedder{err: want}, newMemCache(), &CacheConfig{Logger: quietLogger()})

	if _, err := ce.Embed(context.Background(), []string{"q"}); !errors.Is(err, want) {
		t.Fatalf("want inner error, got %v", err)
	}
}

func TestCachedEmbedder_KeyDependsOnModel(t *testing.T) {
	t.Parallel()

	cache := newMemCache()
	a := NewCachedEmbedder(&countingEmbedder{}, cache, nil)
	b := NewCachedEmbedder(NewHashEmbedder(8), cache, nil)
	if a.key("same text") == b.key("same text") {
		t.Error("different models must not share cache keys")
	}
	if a.ModelID() != "test/count" {
		t.Errorf("ModelID: got %q", a.ModelID())
	}
}

func TestVectorEncoding(t *testing.T) {
	t.Parallel()

	in := []float32{0.25, -1.5, 3e-7}
	out, err := decodeVector(encodeVector(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("component %d: want %v, got %v", i, in[i], out[i])
		}
	}
	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("want error for truncated data")
	}
}
