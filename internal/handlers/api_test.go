package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"retail-insights/internal/export"
	"retail-insights/internal/models"
	"retail-insights/internal/reporting"
	"retail-insights/internal/services"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rated(v float64) *float64 { return &v }

func count(n int64) *int64 { return &n }

func testOrders() []models.Order {
	mk := func(user, product, category, sub string, price float64, rating float64) models.Order {
		return models.Order{
			UserID: user, ProductID: product, Category: category,
			SubCategory1: sub, SubCategory2: sub + "-2", SubCategory3: sub + "-3",
			SellingPrice: price, DiscountPercentage: 0.1,
			Rating: rated(rating), RatingCount: count(3),
		}
	}
	return []models.Order{
		mk("U1", "P1", "Electronics", "Phones", 300, 4.5),
		mk("U1", "P2", "Electronics", "Laptops", 900, 4),
		mk("U2", "P1", "Electronics", "Phones", 300, 4.5),
		mk("U3", "P3", "Home", "Kitchen", 40, 3),
		mk("U2", "P4", "Home", "Decor", 60, 5),
	}
}

func createTestAnalytics() *services.Analytics {
	a := services.NewAnalytics(nil, reporting.NewEngine(reporting.LinearOLS{}), 0, testLogger(), nil)
	a.SetData(testOrders())
	return a
}

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Success bool            `json:"success"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestAPIHandlers_HandleHealth(t *testing.T) {
	h := NewAPIHandlers(createTestAnalytics(), testLogger())

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var health map[string]string
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, version, health["version"])
}

func TestAPIHandlers_HandleStats(t *testing.T) {
	h := NewAPIHandlers(createTestAnalytics(), testLogger())

	rec := httptest.NewRecorder()
	h.HandleStats(rec, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))

	var stats map[string]any
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &stats))
	assert.EqualValues(t, 5, stats["record_count"])
	assert.Equal(t, "ols", stats["trend"])
}

func TestAPIHandlers_HandleDashboards(t *testing.T) {
	h := NewAPIHandlers(createTestAnalytics(), testLogger())

	rec := httptest.NewRecorder()
	h.HandleDashboards(rec, httptest.NewRequest(http.MethodGet, "/api/dashboards", nil))

	var infos []DashboardInfo
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &infos))

	slugs := make([]string, len(infos))
	for i, info := range infos {
		slugs[i] = info.Slug
		assert.NotEmpty(t, info.KPIs, info.Slug)
	}
	assert.Equal(t, []string{"orders", "customers", "sales", "satisfaction"}, slugs)
	assert.Equal(t, "public, max-age=300", rec.Header().Get("Cache-Control"))
}

func dashboardRequest(target, slug string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.SetPathValue("slug", slug)
	return req
}

func TestAPIHandlers_HandleDashboard(t *testing.T) {
	h := NewAPIHandlers(createTestAnalytics(), testLogger())

	tests := []struct {
		name     string
		target   string
		slug     string
		wantRows int
	}{
		{"everything by default", "/api/dashboards/sales", "sales", 5},
		{"one category", "/api/dashboards/sales?categories=Electronics", "sales", 3},
		{"comma separated", "/api/dashboards/sales?categories=Home&subcategories=Decor,Kitchen", "sales", 2},
		{"empty category list", "/api/dashboards/customers?categories=", "customers", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.HandleDashboard(rec, dashboardRequest(tt.target, tt.slug))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var result services.Result
			require.NoError(t, json.Unmarshal(decode(t, rec).Data, &result))
			assert.Equal(t, tt.slug, result.Dashboard)
			assert.Equal(t, tt.wantRows, result.Report.RowCount)
		})
	}
}

func TestAPIHandlers_HandleDashboard_Errors(t *testing.T) {
	h := NewAPIHandlers(createTestAnalytics(), testLogger())

	rec := httptest.NewRecorder()
	h.HandleDashboard(rec, dashboardRequest("/api/dashboards/nope", "nope"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, decode(t, rec).Success)

	rec = httptest.NewRecorder()
	h.HandleDashboard(rec, dashboardRequest("/api/dashboards/orders?categories=Home&subcategories=", "orders"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	env := decode(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "No data in the current selection", env.Error.Message)

	rec = httptest.NewRecorder()
	h.HandleDashboard(rec, dashboardRequest("/api/dashboards/orders?categories=Electornics", "orders"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "a misspelt category is not the full dataset")
}

func TestAPIHandlers_HandleFilters(t *testing.T) {
	h := NewAPIHandlers(createTestAnalytics(), testLogger())

	rec := httptest.NewRecorder()
	h.HandleFilters(rec, httptest.NewRequest(http.MethodGet, "/api/filters?categories=Home", nil))

	var options models.FilterOptions
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &options))
	assert.Equal(t, []string{"Electronics", "Home"}, options.Categories)
	assert.Equal(t, []string{"Decor", "Kitchen"}, options.SubCategories)

	rec = httptest.NewRecorder()
	h.HandleFilters(rec, httptest.NewRequest(http.MethodGet, "/api/filters", nil))
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &options))
	assert.Equal(t, []string{"Decor", "Kitchen", "Laptops", "Phones"}, options.SubCategories)
}

func TestAPIHandlers_HandleExport(t *testing.T) {
	h := NewAPIHandlers(createTestAnalytics(), testLogger())

	req := httptest.NewRequest(http.MethodGet, "/export/dashboards/sales.xlsx?categories=Electronics", nil)
	req.SetPathValue("file", "sales.xlsx")
	rec := httptest.NewRecorder()
	h.HandleExport(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, export.ContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="sales-`)

	book, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer book.Close()

	assert.Equal(t, "KPIs", book.GetSheetList()[0])
	cats, err := book.GetCellValue("Filters", "B3")
	require.NoError(t, err)
	assert.Equal(t, "Electronics", cats)
}

func TestAPIHandlers_HandleExport_BadName(t *testing.T) {
	h := NewAPIHandlers(createTestAnalytics(), testLogger())

	for _, file := range []string{"sales.csv", ".xlsx", "nope.xlsx"} {
		req := httptest.NewRequest(http.MethodGet, "/export/dashboards/"+file, nil)
		req.SetPathValue("file", file)
		rec := httptest.NewRecorder()
		h.HandleExport(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code, file)
	}
}

func TestSelectionFromQuery(t *testing.T) {
	tests := []struct {
		query string
		want  models.Selection
	}{
		{"", models.Selection{}},
		{"categories=", models.Selection{Categories: []string{}}},
		{"categories=A,B&categories=C", models.Selection{Categories: []string{"A", "B", "C"}}},
		{"subcategories=%20x%20,", models.Selection{SubCategories: []string{"x"}}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/dashboards/orders?"+tt.query, nil)
			assert.Equal(t, tt.want, SelectionFromQuery(r))
		})
	}
}
