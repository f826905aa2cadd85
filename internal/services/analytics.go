package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	apperrors "retail-insights/internal/errors"
	"retail-insights/internal/models"
	"retail-insights/internal/observability"
	"retail-insights/internal/reporting"
)

const (
	maxParallelRenders = 4

	// staleRetryInterval is how long a snapshot kept after a failed reload
	// is served before the source is tried again.
	staleRetryInterval = 30 * time.Second
)

// OrderSource loads the full order table.
type OrderSource interface {
	Load(ctx context.Context) ([]models.Order, error)
	Name() string
}

// Result is one rendered dashboard together with the selection it was
// computed for and the sidebar choices that go with it.
type Result struct {
	Report    *reporting.Report    `json:"report"`
	Selection models.Selection     `json:"selection"`
	Options   models.FilterOptions `json:"options"`
	Dashboard string               `json:"dashboard"`
	Elapsed   time.Duration        `json:"elapsed_ns"`
}

type snapshot struct {
	orders   []models.Order
	loadedAt time.Time
	// retryAt is set on a snapshot kept after a failed reload.
	retryAt time.Time
}

// Analytics holds an in-memory snapshot of the order table and renders
// dashboards over it. The snapshot is never mutated; filtering copies.
type Analytics struct {
	source  OrderSource
	engine  *reporting.Engine
	ttl     time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics
	now     func() time.Time

	mu       sync.RWMutex
	snapshot *snapshot
	loads    singleflight.Group

	rendersServed atomic.Int64
	reloads       atomic.Int64
}

// NewAnalytics wires a service over source. A zero ttl keeps the first
// snapshot until Refresh is called.
func NewAnalytics(source OrderSource, engine *reporting.Engine, ttl time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Analytics {
	if engine == nil {
		engine = reporting.NewEngine(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analytics{
		source:  source,
		engine:  engine,
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// SetData replaces the snapshot directly.
func (a *Analytics) SetData(orders []models.Order) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snapshot = &snapshot{orders: orders, loadedAt: a.now()}
}

// Refresh reloads the snapshot from the source.
func (a *Analytics) Refresh(ctx context.Context) error {
	_, err := a.reload(ctx, true)
	return err
}

// Orders returns the current snapshot, reloading it when it has expired.
// Concurrent callers share one reload.
func (a *Analytics) Orders(ctx context.Context) ([]models.Order, error) {
	if snap := a.fresh(); snap != nil {
		return snap.orders, nil
	}
	return a.reload(ctx, false)
}

// fresh returns the snapshot if it has not expired.
func (a *Analytics) fresh() *snapshot {
	a.mu.RLock()
	snap := a.snapshot
	a.mu.RUnlock()

	if snap == nil {
		return nil
	}
	now := a.now()
	if a.ttl <= 0 || now.Sub(snap.loadedAt) < a.ttl || now.Before(snap.retryAt) {
		return snap
	}
	return nil
}

func (a *Analytics) reload(ctx context.Context, force bool) ([]models.Order, error) {
	if a.source == nil {
		return nil, fmt.Errorf("no order source configured: %w", apperrors.ErrUpstreamRead)
	}

	v, err, shared := a.loads.Do("orders", func() (any, error) {
		// Another caller may have finished a load since we looked.
		if snap := a.fresh(); snap != nil && !force {
			return snap.orders, nil
		}

		start := time.Now()
		orders, err := a.source.Load(ctx)
		if err != nil {
			return nil, err
		}

		a.mu.Lock()
		a.snapshot = &snapshot{orders: orders, loadedAt: a.now()}
		a.mu.Unlock()
		a.reloads.Add(1)

		a.logger.InfoContext(ctx, "order snapshot loaded",
			"source", a.source.Name(),
			"records", len(orders),
			"duration", time.Since(start),
		)
		return orders, nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrMissingColumn) {
			return nil, err
		}
		if stale := a.keepStale(); stale != nil {
			a.logger.WarnContext(ctx, "reload failed, serving previous snapshot",
				"error", err,
				"retry_in", staleRetryInterval,
			)
			return stale.orders, nil
		}
		return nil, err
	}
	if shared {
		a.logger.DebugContext(ctx, "joined in-flight snapshot load")
	}

	return v.([]models.Order), nil
}

// keepStale pushes the next reload attempt of the current snapshot out by
// staleRetryInterval and returns it, or nil when there is none.
func (a *Analytics) keepStale() *snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.snapshot == nil {
		return nil
	}
	kept := *a.snapshot
	kept.retryAt = a.now().Add(staleRetryInterval)
	a.snapshot = &kept
	return a.snapshot
}

// FilterOptions lists every category and the sub-categories under categories.
func (a *Analytics) FilterOptions(ctx context.Context, categories []string) (models.FilterOptions, error) {
	orders, err := a.Orders(ctx)
	if err != nil {
		return models.FilterOptions{}, err
	}
	return reporting.Options(orders, categories), nil
}

// Render filters the snapshot by requested and runs one dashboard over it.
func (a *Analytics) Render(ctx context.Context, slug string, requested models.Selection) (*Result, error) {
	dashboard, ok := reporting.Lookup(slug)
	if !ok {
		return nil, apperrors.NotFound(fmt.Sprintf("dashboard %q does not exist", slug))
	}

	ctx, span := observability.StartSpan(ctx, nil, "analytics.render",
		attribute.String("dashboard", slug),
		attribute.Int("categories", len(requested.Categories)),
	)

	result, err := a.render(ctx, dashboard, requested)
	observability.EndSpan(span, err)
	return result, err
}

func (a *Analytics) render(ctx context.Context, dashboard reporting.Dashboard, requested models.Selection) (*Result, error) {
	orders, err := a.Orders(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	selection, options, err := reporting.ResolveSelection(orders, requested)
	var report *reporting.Report
	if err == nil {
		report, err = a.engine.Run(dashboard, reporting.Filter(orders, selection))
	}
	elapsed := time.Since(start)

	a.metrics.ObserveRender(dashboard.Slug, err, elapsed)
	if err != nil {
		a.logger.DebugContext(ctx, "dashboard render failed", "dashboard", dashboard.Slug, "error", err)
		return &Result{Selection: selection, Options: options, Dashboard: dashboard.Slug}, err
	}
	a.rendersServed.Add(1)

	return &Result{
		Report:    report,
		Selection: selection,
		Options:   options,
		Dashboard: dashboard.Slug,
		Elapsed:   elapsed,
	}, nil
}

// RenderAll renders every registered dashboard for one selection. Results
// keep registry order; the first failure cancels the rest.
func (a *Analytics) RenderAll(ctx context.Context, requested models.Selection) ([]*Result, error) {
	if _, err := a.Orders(ctx); err != nil {
		return nil, err
	}

	dashboards := reporting.Dashboards()
	results := make([]*Result, len(dashboards))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelRenders)

	for i, d := range dashboards {
		g.Go(func() error {
			res, err := a.Render(gctx, d.Slug, requested)
			if err != nil {
				return fmt.Errorf("%s: %w", d.Slug, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Stats reports snapshot and render counters for monitoring.
func (a *Analytics) Stats() map[string]any {
	a.mu.RLock()
	snap := a.snapshot
	a.mu.RUnlock()

	stats := map[string]any{
		"renders":    a.rendersServed.Load(),
		"reloads":    a.reloads.Load(),
		"trend":      a.engine.Trend().Name(),
		"dashboards": len(reporting.Dashboards()),
	}
	if a.source != nil {
		stats["source"] = a.source.Name()
	}
	if snap != nil {
		stats["record_count"] = len(snap.orders)
		stats["loaded_at"] = snap.loadedAt
		stats["snapshot_age"] = a.now().Sub(snap.loadedAt).Round(time.Second).String()
	}
	return stats
}
