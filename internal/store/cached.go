package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"retail-insights/internal/cache"
	"retail-insights/internal/models"
	"retail-insights/internal/observability"
)

// CachedSource is a read-through cache in front of a source. Cache failures
// degrade to a direct read; they never fail the load.
type CachedSource struct {
	src     Source
	cache   cache.Cache
	key     string
	ttl     time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics
}

func NewCachedSource(src Source, c cache.Cache, key string, ttl time.Duration, logger *slog.Logger, metrics *observability.Metrics) *CachedSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedSource{src: src, cache: c, key: key, ttl: ttl, logger: logger, metrics: metrics}
}

func (c *CachedSource) Name() string { return c.src.Name() }

func (c *CachedSource) Load(ctx context.Context) ([]models.Order, error) {
	if orders, ok := c.lookup(ctx); ok {
		return orders, nil
	}

	start := time.Now()
	orders, err := c.src.Load(ctx)
	c.metrics.ObserveSourceRead(c.src.Name(), err, time.Since(start))
	if err != nil {
		return nil, err
	}

	data, err := cache.Encode(orders)
	if err == nil {
		err = c.cache.Set(ctx, c.key, data, c.ttl)
	}
	if err != nil {
		c.logger.WarnContext(ctx, "failed to save cache", "backend", c.cache.Name(), "key", c.key, "error", err)
	}

	return orders, nil
}

func (c *CachedSource) lookup(ctx context.Context) ([]models.Order, bool) {
	data, err := c.cache.Get(ctx, c.key)
	if errors.Is(err, cache.ErrMiss) {
		c.metrics.CacheResult(c.cache.Name(), "miss")
		return nil, false
	}
	if err == nil {
		var orders []models.Order
		if err = cache.Decode(data, &orders); err == nil {
			c.metrics.CacheResult(c.cache.Name(), "hit")
			c.logger.DebugContext(ctx, "loaded from cache", "backend", c.cache.Name(), "records", len(orders))
			return orders, true
		}
	}

	c.metrics.CacheResult(c.cache.Name(), "error")
	c.logger.WarnContext(ctx, "cache lookup failed", "backend", c.cache.Name(), "key", c.key, "error", err)
	return nil, false
}
