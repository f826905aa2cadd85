package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"retail-insights/internal/auth"
	"retail-insights/internal/charts"
	"retail-insights/internal/config"
	"retail-insights/internal/middleware"
	"retail-insights/internal/observability"
	"retail-insights/internal/reporting"
	"retail-insights/internal/server"
	"retail-insights/internal/services"
	"retail-insights/internal/store"
)

const (
	version            = "1.0.0"
	initialLoadTimeout = 60 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", version,
		"driver", cfg.Database.Driver,
		"cache", cfg.Cache.Backend,
		"trend", cfg.Reporting.TrendMethod,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("application failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}

// run assembles the application and serves until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	metrics := observability.NewMetrics()
	shutdownTracing := observability.InstallTracerProvider()

	stack, err := store.Open(cfg, logger, metrics)
	if err != nil {
		return fmt.Errorf("open order source: %w", err)
	}

	engine := reporting.NewEngine(reporting.TrendByName(cfg.Reporting.TrendMethod))
	analytics := services.NewAnalytics(stack.Source, engine, cfg.Cache.TTL, logger, metrics)

	loadCtx, cancel := context.WithTimeout(ctx, initialLoadTimeout)
	start := time.Now()
	err = analytics.Refresh(loadCtx)
	cancel()
	if err != nil {
		stack.Close()
		return fmt.Errorf("initial load: %w", err)
	}
	logger.Info("orders loaded", "source", stack.Source.Name(), "duration", time.Since(start))

	credentials, err := auth.LoadCredentials(cfg.Auth.CredentialsFile)
	if err != nil {
		stack.Close()
		return err
	}
	logger.Info("credentials loaded", "users", credentials.Len())

	if cfg.Auth.SessionSecret == "" {
		logger.Warn("AUTH_SESSION_SECRET is unset, sessions will not survive a restart")
	}
	sessions, err := auth.NewSessionManager(cfg.Auth.SessionSecret, cfg.Auth.SessionTTL, cfg.Auth.CookieSecure)
	if err != nil {
		stack.Close()
		return err
	}

	handler := newHandler(cfg, server.Deps{
		Analytics:   analytics,
		Credentials: credentials,
		Sessions:    sessions,
		Metrics:     metrics,
		Charts:      charts.NewRenderer(charts.DefaultStyle()),
	}, logger)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg.Server)
	gracefulServer.RegisterShutdownHook("order source", func(ctx context.Context) error {
		logger.Info("closing order source")
		return stack.Close()
	})
	gracefulServer.RegisterShutdownHook("tracing", shutdownTracing)

	return gracefulServer.ListenAndServe(ctx)
}

// newHandler wraps the routes in the middleware chain.
func newHandler(cfg *config.Config, deps server.Deps, logger *slog.Logger) http.Handler {
	srv := server.NewServer(cfg, deps, logger)

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(),
		middleware.Metrics(deps.Metrics),
		middleware.SecurityHeaders(frameOrigins(cfg.Reporting.PowerBIEmbedURL)...),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.SameOrigin(cfg.Security, logger),
		middleware.RateLimit(rateLimiter, logger),
	)

	return middlewareChain(srv)
}

// frameOrigins is the origin the embedded report may be framed from.
func frameOrigins(embedURL string) []string {
	if embedURL == "" {
		return nil
	}
	u, err := url.Parse(embedURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil
	}
	return []string{u.Scheme + "://" + u.Host}
}
