package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ducminhle1904/momentum-risk-bot/pkg/types"
)

// DefaultBarTTL bounds how long fetched bars are reused.
const DefaultBarTTL = time.Minute

// ErrCacheMiss is returned by BarCache.Get when nothing fresh is stored.
var ErrCacheMiss = errors.New("cache miss")

// BarCache stores recently fetched bar series.
type BarCache interface {
	Get(ctx context.Context, key string) ([]types.OHLCV, error)
	Set(ctx context.Context, key string, bars []types.OHLCV, ttl time.Duration) error
}

// BarKey builds the cache key for a request.
func BarKey(symbol string, tf types.Timeframe, limit int) string {
	return fmt.Sprintf("bars:%s:%s:%d", symbol, tf, limit)
}

type memoryEntry struct {
	bars    []types.OHLCV
	expires time.Time
}

// MemoryCache is a process-local BarCache.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]types.OHLCV, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return nil, ErrCacheMiss
	}
	return append([]types.OHLCV(nil), e.bars...), nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, bars []types.OHLCV, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{
		bars:    append([]types.OHLCV(nil), bars...),
		expires: c.now().Add(ttl),
	}
	return nil
}

// RedisConfig holds connection settings for the shared bar cache.
type RedisConfig struct {
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size" default:"10"`
	Prefix   string `yaml:"prefix" default:"momentum"`
}

// RedisCache is a BarCache shared across processes. Bars are stored as JSON.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects and pings the server.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		PoolTimeout:  30 * time.Second,
		MinIdleConns: 2,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisCacheWithClient(client, cfg.Prefix), nil
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]types.OHLCV, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	var bars []types.OHLCV
	if err := json.Unmarshal(data, &bars); err != nil {
		return nil, fmt.Errorf("decode cached bars: %w", err)
	}
	return bars, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, bars []types.OHLCV, ttl time.Duration) error {
	data, err := json.Marshal(bars)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(key), data, ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
