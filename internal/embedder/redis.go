package embedder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/rueidis"
)

// RedisCache is a VectorCache backed by Redis through rueidis.
type RedisCache struct {
	client rueidis.Client
}

// RedisConfig holds connection settings for RedisCache.
type RedisConfig struct {
	// Addr is a comma-separated list of host:port seeds.
	Addr     string
	Username string
	Password string
	DB       int
}

// NewRedisCache connects to Redis. Client-side caching is disabled.
func NewRedisCache(cfg *RedisConfig) (*RedisCache, error) {
	var addrs []string
	for _, a := range strings.Split(cfg.Addr, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("embedding cache: redis address is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding cache: connect redis: %w", err)
	}
	return &RedisCache{client: client}, nil
}

// Get returns the value at key, or ErrCacheMiss.
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := r.client.B().Get().Key(key).Build()
	data, err := r.client.Do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

// Set stores value at key with the given expiry.
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cmd := r.client.B().Set().Key(key).Value(rueidis.BinaryString(value)).Ex(ttl).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Ping checks connectivity. It satisfies the server's readiness pinger.
func (r *RedisCache) Ping(ctx context.Context) error {
	if err := r.client.Do(ctx, r.client.B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Name identifies the dependency in readiness output.
func (r *RedisCache) Name() string { return "redis" }

// Close shuts down the client.
func (r *RedisCache) Close() {
	r.client.Close()
}
