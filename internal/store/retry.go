package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "retail-insights/internal/errors"
	"retail-insights/internal/models"
)

// Retrying re-reads a failing source a bounded number of times with
// exponential backoff. A missing column is never retried.
type Retrying struct {
	src        Source
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
}

func WithRetry(src Source, maxRetries int, backoff time.Duration, logger *slog.Logger) *Retrying {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrying{src: src, maxRetries: max(maxRetries, 0), backoff: backoff, logger: logger}
}

func (r *Retrying) Name() string { return r.src.Name() }

func (r *Retrying) Load(ctx context.Context) ([]models.Order, error) {
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		attempts++
		orders, err := r.src.Load(ctx)
		if err == nil {
			return orders, nil
		}
		if errors.Is(err, apperrors.ErrMissingColumn) {
			return nil, err
		}
		lastErr = err

		if attempt == r.maxRetries || ctx.Err() != nil {
			break
		}

		wait := r.backoff << attempt
		r.logger.WarnContext(ctx, "source read failed, retrying",
			"source", r.src.Name(),
			"attempt", attempts,
			"wait", wait,
			"error", err)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %w", apperrors.ErrUpstreamRead, r.src.Name(), ctx.Err())
		case <-time.After(wait):
		}
	}

	if errors.Is(lastErr, apperrors.ErrUpstreamRead) {
		return nil, fmt.Errorf("%s failed after %d attempts: %w", r.src.Name(), attempts, lastErr)
	}
	return nil, fmt.Errorf("%w: %s failed after %d attempts: %w", apperrors.ErrUpstreamRead, r.src.Name(), attempts, lastErr)
}
