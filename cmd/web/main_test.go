package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"retail-insights/internal/auth"
	"retail-insights/internal/config"
	"retail-insights/internal/models"
	"retail-insights/internal/observability"
	"retail-insights/internal/server"
	"retail-insights/internal/services"
)

const ordersCSV = "user_id,product_id,category,sub_category1,sub_category2,sub_category3,selling_price,discount_percentage,rating,rating_count\n" +
	"U1,P1,Electronics,Phones,Smart,Android,300,0.1,4.5,10\n" +
	"U1,P2,Electronics,Laptops,Ultra,Thin,900,0.2,4.0,20\n" +
	"U2,P3,Home,Kitchen,Cook,Pan,40,0.3,3.5,5\n"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "orders.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(ordersCSV), 0o600))

	hash, err := auth.HashPassword("s3cret", bcrypt.MinCost)
	require.NoError(t, err)
	credsPath := filepath.Join(dir, "credentials.yaml")
	require.NoError(t, os.WriteFile(credsPath, []byte("users:\n  analyst: "+hash+"\n"), 0o600))

	return &config.Config{
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            0,
			ReadTimeout:     time.Second,
			WriteTimeout:    time.Second,
			ShutdownTimeout: 2 * time.Second,
		},
		Database: config.DatabaseConfig{Driver: "csv", CSVFile: csvPath, Table: "orders"},
		Cache:    config.CacheConfig{Backend: "none", TTL: time.Minute, Version: "test"},
		Auth: config.AuthConfig{
			CredentialsFile: credsPath,
			SessionTTL:      time.Hour,
			LoginRPS:        1,
			LoginBurst:      5,
		},
		Reporting: config.ReportingConfig{TrendMethod: "ols", PowerBIEmbedURL: "https://app.powerbi.com/reportEmbed?reportId=1"},
		Security:  config.SecurityConfig{EnableCSRF: true, EnableRateLimit: true, RateLimitRPS: 100, RateLimitBurst: 100},
	}
}

func TestRun_ServesUntilCancelled(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, testLogger()) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestRun_FailsWithoutData(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.CSVFile = filepath.Join(t.TempDir(), "missing.csv")

	err := run(context.Background(), cfg, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initial load")
}

func TestRun_FailsWithoutCredentials(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.CredentialsFile = filepath.Join(t.TempDir(), "missing.yaml")

	err := run(context.Background(), cfg, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read credentials")
}

func testHandler(t *testing.T) http.Handler {
	t.Helper()
	cfg := testConfig(t)

	analytics := services.NewAnalytics(nil, nil, 0, testLogger(), nil)
	analytics.SetData([]models.Order{{UserID: "U1", ProductID: "P1", Category: "Electronics", SubCategory1: "Phones", SellingPrice: 10}})

	creds, err := auth.LoadCredentials(cfg.Auth.CredentialsFile)
	require.NoError(t, err)
	sessions, err := auth.NewSessionManager("secret", time.Hour, false)
	require.NoError(t, err)

	return newHandler(cfg, server.Deps{
		Analytics:   analytics,
		Credentials: creds,
		Sessions:    sessions,
		Metrics:     observability.NewMetrics(),
	}, testLogger())
}

func TestNewHandler_Middleware(t *testing.T) {
	h := testHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "frame-src https://app.powerbi.com")
}

func TestNewHandler_RejectsCrossOriginLogin(t *testing.T) {
	h := testHandler(t)

	req := httptest.NewRequest(http.MethodPost, "http://example.com/login", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestNewHandler_RedirectsWithoutSession(t *testing.T) {
	h := testHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboards/orders", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestFrameOrigins(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"not a url", nil},
		{"https://app.powerbi.com/view?r=abc", []string{"https://app.powerbi.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, frameOrigins(tt.in))
		})
	}
}
