package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"retail-insights/internal/config"
)

const connectionTimeout = 5 * time.Second

// RedisCache shares snapshots between replicas.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to the configured Redis and verifies it with a ping.
func NewRedisCache(cfg config.CacheConfig) (*RedisCache, error) {
	if cfg.RedisAddress == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisCache{client: client}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) Name() string { return "redis" }

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// New builds the backend named by cfg.Backend.
func New(cfg config.CacheConfig) (Cache, error) {
	switch cfg.Backend {
	case "redis":
		return NewRedisCache(cfg)
	case "file":
		return NewFileCache(cfg.Dir)
	case "none", "":
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
