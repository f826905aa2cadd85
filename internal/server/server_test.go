package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"retail-insights/internal/auth"
	"retail-insights/internal/config"
	"retail-insights/internal/models"
	"retail-insights/internal/observability"
	"retail-insights/internal/services"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testServer(t *testing.T) *Server {
	t.Helper()

	rating := 4.0
	ratings := int64(10)
	analytics := services.NewAnalytics(nil, nil, 0, testLogger(), nil)
	analytics.SetData([]models.Order{
		{UserID: "U1", ProductID: "P1", Category: "Electronics", SubCategory1: "Phones", SellingPrice: 100, DiscountPercentage: 0.2, Rating: &rating, RatingCount: &ratings},
		{UserID: "U1", ProductID: "P2", Category: "Home", SubCategory1: "Decor", SellingPrice: 50, DiscountPercentage: 0.1, Rating: &rating, RatingCount: &ratings},
		{UserID: "U2", ProductID: "P1", Category: "Electronics", SubCategory1: "Phones", SellingPrice: 100, DiscountPercentage: 0.2, Rating: &rating, RatingCount: &ratings},
	})

	hash, err := auth.HashPassword("s3cret", bcrypt.MinCost)
	require.NoError(t, err)
	creds, err := auth.NewCredentialStore(map[string]string{"analyst": hash})
	require.NoError(t, err)
	sessions, err := auth.NewSessionManager("test-secret", time.Hour, false)
	require.NoError(t, err)

	cfg := &config.Config{Auth: config.AuthConfig{LoginRPS: 10, LoginBurst: 10}}
	return NewServer(cfg, Deps{
		Analytics:   analytics,
		Credentials: creds,
		Sessions:    sessions,
		Metrics:     observability.NewMetrics(),
	}, testLogger())
}

func login(t *testing.T, s *Server) *http.Cookie {
	t.Helper()
	form := url.Values{"username": {"analyst"}, "password": {"s3cret"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	return rec.Result().Cookies()[0]
}

func TestServer_PublicRoutes(t *testing.T) {
	s := testServer(t)

	for _, path := range []string{"/health", "/login", "/metrics"} {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestServer_RequiresLogin(t *testing.T) {
	s := testServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboards/orders", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	for _, path := range []string{"/api/dashboards", "/sse/dashboards/orders", "/export/dashboards/orders.xlsx", "/admin/stats"} {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestServer_LoggedInRoutes(t *testing.T) {
	s := testServer(t)
	cookie := login(t, s)

	tests := []struct {
		path        string
		contentType string
	}{
		{"/", "text/html"},
		{"/dashboards/customers", "text/html"},
		{"/dashboards/powerbi", "text/html"},
		{"/api/dashboards", "application/json"},
		{"/api/dashboards/satisfaction?categories=Electronics", "application/json"},
		{"/api/filters?categories=Home", "application/json"},
		{"/sse/dashboards/sales", "text/event-stream"},
		{"/export/dashboards/orders.xlsx", "application/vnd.openxmlformats"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.AddCookie(cookie)
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), tt.contentType), rec.Header().Get("Content-Type"))
		})
	}
}

func TestServer_UnknownDashboard(t *testing.T) {
	s := testServer(t)
	cookie := login(t, s)

	req := httptest.NewRequest(http.MethodGet, "/dashboards/nope", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGracefulServer_RunsHooksAfterShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})}
	gs := NewGracefulServer(srv, testLogger(), config.ServerConfig{ShutdownTimeout: 5 * time.Second})

	var closed atomic.Bool
	gs.RegisterShutdownHook("store", func(ctx context.Context) error {
		closed.Store(true)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gs.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String())
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusNoContent
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.True(t, closed.Load())
}

func TestGracefulServer_HookError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	gs := NewGracefulServer(&http.Server{Handler: http.NotFoundHandler()}, testLogger(), config.ServerConfig{ShutdownTimeout: time.Second})
	boom := errors.New("boom")
	gs.RegisterShutdownHook("cache", func(ctx context.Context) error { return boom })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = gs.Serve(ctx, ln)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
