package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of go-redis client methods used by CachedProvider.
type RedisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// CacheConfig configures the Redis completion cache.
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled" json:"enabled"`
	Address  string        `yaml:"address" json:"address"`
	Password string        `yaml:"password" json:"-"`
	DB       int           `yaml:"db" json:"db"`
	Prefix   string        `yaml:"prefix" json:"prefix"`
	TTL      time.Duration `yaml:"ttl" json:"ttl"`
}

// Cache defaults.
const (
	DefaultCachePrefix = "wfgen:completion:"
	DefaultCacheTTL    = 24 * time.Hour
)

// NewRedisClient connects to Redis and verifies the connection with PING.
func NewRedisClient(ctx context.Context, cfg CacheConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Address, err)
	}
	return client, nil
}

// CachedProvider memoizes successful completions in Redis, keyed by a hash of
// the provider and the full request. Cache failures are logged and bypassed.
type CachedProvider struct {
	next   Provider
	client RedisClient
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedProvider wraps next. Empty prefix and zero ttl take the defaults.
func NewCachedProvider(next Provider, client RedisClient, cfg CacheConfig, logger *slog.Logger) *CachedProvider {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultCachePrefix
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedProvider{next: next, client: client, prefix: cfg.Prefix, ttl: cfg.TTL, logger: logger}
}

// Name returns the wrapped provider's name.
func (c *CachedProvider) Name() string { return c.next.Name() }

// Complete returns a cached response when one exists, otherwise calls the
// wrapped provider and stores a successful result.
func (c *CachedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	key := c.Key(req)
	raw, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		var cached CompletionResponse
		if uerr := json.Unmarshal([]byte(raw), &cached); uerr == nil {
			c.logger.Debug("completion cache hit", "provider", c.next.Name(), "key", key)
			return &cached, nil
		}
		c.logger.Warn("discarding corrupt cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("completion cache read failed", "error", err)
	}

	resp, err := c.next.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if data, merr := json.Marshal(resp); merr == nil {
		if serr := c.client.Set(ctx, key, data, c.ttl).Err(); serr != nil {
			c.logger.Warn("completion cache write failed", "error", serr)
		}
	}
	return resp, nil
}

// Key returns the cache key for req.
func (c *CachedProvider) Key(req CompletionRequest) string {
	h := sha256.New()
	write := func(s string) {
		h.Write([]byte(strconv.Itoa(len(s))))
		h.Write([]byte{':'})
		h.Write([]byte(s))
	}
	write(c.next.Name())
	write(req.Model)
	write(req.SystemPrompt)
	for _, m := range req.History {
		write(m.Role)
		write(m.Content)
	}
	write(req.UserMessage)
	write(strconv.Itoa(req.MaxTokens))
	write(strconv.FormatFloat(req.Temperature, 'g', -1, 64))
	return c.prefix + hex.EncodeToString(h.Sum(nil))
}

// Invalidate removes the cached response for req.
func (c *CachedProvider) Invalidate(ctx context.Context, req CompletionRequest) error {
	return c.client.Del(ctx, c.Key(req)).Err()
}
