// Package store reads the order table from its configured source.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"retail-insights/internal/cache"
	"retail-insights/internal/config"
	apperrors "retail-insights/internal/errors"
	"retail-insights/internal/models"
	"retail-insights/internal/observability"
)

// Source loads the whole order table.
type Source interface {
	Load(ctx context.Context) ([]models.Order, error)
	Name() string
}

// RequiredColumns are the columns every source must provide.
var RequiredColumns = []string{
	"user_id",
	"product_id",
	"category",
	"sub_category1",
	"sub_category2",
	"sub_category3",
	"selling_price",
	"discount_percentage",
	"rating",
	"rating_count",
}

// checkColumns fails with ErrMissingColumn naming every absent column.
func checkColumns(columns []string) error {
	var missing []string
	for _, want := range RequiredColumns {
		if !slices.Contains(columns, want) {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrMissingColumn, strings.Join(missing, ", "))
	}
	return nil
}

// Stack is a fully assembled source plus the resources to release on shutdown.
type Stack struct {
	Source Source
	Cache  cache.Cache
	close  []func() error
}

func (s *Stack) Close() error {
	var firstErr error
	for _, fn := range s.close {
		if err := fn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Open builds the configured source wrapped in retry and read-through cache.
func Open(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*Stack, error) {
	stack := &Stack{}

	var base Source
	switch cfg.Database.Driver {
	case "csv":
		base = NewCSVSource(cfg.Database.CSVFile, logger)
	case "postgres", "sqlite3":
		db, err := OpenDB(cfg.Database)
		if err != nil {
			return nil, err
		}
		stack.close = append(stack.close, db.Close)
		base = NewSQLSource(db, cfg.Database.Table, cfg.Database.ReadTimeout)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	retrying := WithRetry(base, cfg.Database.MaxRetries, cfg.Database.RetryBackoff, logger)

	c, err := cache.New(cfg.Cache)
	if err != nil {
		stack.Close()
		return nil, fmt.Errorf("open cache: %w", err)
	}
	stack.Cache = c
	stack.close = append(stack.close, c.Close)

	stack.Source = NewCachedSource(retrying, c, cfg.CacheKey(), cfg.Cache.TTL, logger, metrics)
	return stack, nil
}
