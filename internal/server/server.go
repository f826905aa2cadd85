package server

import (
	"log/slog"
	"net/http"

	"retail-insights/internal/auth"
	"retail-insights/internal/charts"
	"retail-insights/internal/config"
	"retail-insights/internal/handlers"
	"retail-insights/internal/middleware"
	"retail-insights/internal/observability"
	"retail-insights/internal/services"
)

// Deps are the services the routes are served from.
type Deps struct {
	Analytics   *services.Analytics
	Credentials *auth.CredentialStore
	Sessions    *auth.SessionManager
	Metrics     *observability.Metrics
	Charts      *charts.Renderer
}

type Server struct {
	mux          *http.ServeMux
	logger       *slog.Logger
	apiHandlers  *handlers.APIHandlers
	sseHandlers  *handlers.SSEHandlers
	pageHandlers *handlers.PageHandlers
	metrics      *observability.Metrics
	requireLogin middleware.Middleware
}

func NewServer(cfg *config.Config, deps Deps, logger *slog.Logger) *Server {
	if deps.Charts == nil {
		deps.Charts = charts.NewRenderer(charts.DefaultStyle())
	}

	s := &Server{
		mux:         http.NewServeMux(),
		logger:      logger,
		metrics:     deps.Metrics,
		apiHandlers: handlers.NewAPIHandlers(deps.Analytics, logger),
		sseHandlers: handlers.NewSSEHandlers(deps.Analytics, deps.Charts, logger),
		pageHandlers: handlers.NewPageHandlers(handlers.PageDeps{
			Analytics:   deps.Analytics,
			Charts:      deps.Charts,
			Credentials: deps.Credentials,
			Sessions:    deps.Sessions,
			Logins:      middleware.NewKeyedLimiter(cfg.Auth.LoginRPS, cfg.Auth.LoginBurst, true),
			Metrics:     deps.Metrics,
			Logger:      logger,
			PowerBIURL:  cfg.Reporting.PowerBIEmbedURL,
		}),
		requireLogin: middleware.RequireSession(deps.Sessions, logger),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Public routes
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
	s.mux.HandleFunc("GET /login", s.pageHandlers.HandleLoginForm)
	s.mux.HandleFunc("POST /login", s.pageHandlers.HandleLogin)
	s.mux.HandleFunc("POST /logout", s.pageHandlers.HandleLogout)

	// Pages
	s.protect("GET /{$}", s.pageHandlers.HandleHome)
	s.protect("GET /dashboards/powerbi", s.pageHandlers.HandlePowerBI)
	s.protect("GET /dashboards/{slug}", s.pageHandlers.HandleDashboard)

	// Datastar SSE endpoints
	s.protect("GET /sse/dashboards/{slug}", s.sseHandlers.HandleDashboard)

	// REST API endpoints
	s.protect("GET /api/dashboards", s.apiHandlers.HandleDashboards)
	s.protect("GET /api/dashboards/{slug}", s.apiHandlers.HandleDashboard)
	s.protect("GET /api/filters", s.apiHandlers.HandleFilters)
	s.protect("GET /export/dashboards/{file}", s.apiHandlers.HandleExport)
	s.protect("GET /admin/stats", s.apiHandlers.HandleStats)
}

func (s *Server) protect(pattern string, h http.HandlerFunc) {
	s.mux.Handle(pattern, s.requireLogin(h))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
