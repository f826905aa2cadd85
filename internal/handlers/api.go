package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	apperrors "retail-insights/internal/errors"
	"retail-insights/internal/export"
	"retail-insights/internal/models"
	"retail-insights/internal/observability"
	"retail-insights/internal/reporting"
	"retail-insights/internal/services"
)

const (
	version    = "1.0.0"
	xlsxSuffix = ".xlsx"
)

type APIHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
}

func NewAPIHandlers(analytics *services.Analytics, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		analytics: analytics,
		logger:    logger,
	}
}

// DashboardInfo describes one registered dashboard.
type DashboardInfo struct {
	Slug   string   `json:"slug"`
	Title  string   `json:"title"`
	KPIs   []string `json:"kpis"`
	Charts []string `json:"charts"`
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   version,
	}

	apperrors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	apperrors.WriteSuccess(w, h.analytics.Stats())
}

func (h *APIHandlers) HandleDashboards(w http.ResponseWriter, r *http.Request) {
	dashboards := reporting.Dashboards()
	infos := make([]DashboardInfo, 0, len(dashboards))
	for _, d := range dashboards {
		info := DashboardInfo{Slug: d.Slug, Title: d.Title}
		for _, k := range d.KPIs {
			info.KPIs = append(info.KPIs, k.Name)
		}
		for _, c := range d.Charts {
			info.Charts = append(info.Charts, c.Name)
		}
		infos = append(infos, info)
	}

	apperrors.WriteSuccessWithHeaders(w, infos, map[string]string{
		"Cache-Control": "public, max-age=300",
	})
}

// HandleDashboard renders one dashboard as JSON for the selection given in
// the query string.
func (h *APIHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	result, err := h.analytics.Render(r.Context(), r.PathValue("slug"), SelectionFromQuery(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	apperrors.WriteSuccessWithHeaders(w, result, map[string]string{
		"Cache-Control": "private, no-store",
	})
}

// HandleFilters lists the sidebar choices for ?categories=. Without the
// parameter the sub-categories of every category are listed.
func (h *APIHandlers) HandleFilters(w http.ResponseWriter, r *http.Request) {
	categories, ok := listParam(r, "categories")

	options, err := h.analytics.FilterOptions(r.Context(), categories)
	if err == nil && !ok {
		options, err = h.analytics.FilterOptions(r.Context(), options.Categories)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	apperrors.WriteSuccess(w, options)
}

// HandleExport streams a dashboard as an Excel workbook.
func (h *APIHandlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	file := r.PathValue("file")
	slug, ok := strings.CutSuffix(file, xlsxSuffix)
	if !ok || slug == "" {
		h.fail(w, r, apperrors.NotFound(fmt.Sprintf("export %q does not exist", file)))
		return
	}

	result, err := h.analytics.Render(r.Context(), slug, SelectionFromQuery(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	book, err := export.Workbook(result.Report, result.Selection)
	if err != nil {
		h.fail(w, r, apperrors.InternalWrap(err, "Could not build the workbook"))
		return
	}
	defer book.Close()

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-%s.xlsx"`, slug, time.Now().Format("20060102")))
	if _, err := book.WriteTo(w); err != nil {
		h.logger.ErrorContext(r.Context(), "write workbook", "dashboard", slug, "error", err)
	}
}

func (h *APIHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
}

// SelectionFromQuery reads ?categories= and ?subcategories=. An absent
// parameter selects everything; a present but empty one selects nothing.
func SelectionFromQuery(r *http.Request) models.Selection {
	var sel models.Selection
	if cats, ok := listParam(r, "categories"); ok {
		sel.Categories = cats
	}
	if subs, ok := listParam(r, "subcategories"); ok {
		sel.SubCategories = subs
	}
	return sel
}

func listParam(r *http.Request, name string) ([]string, bool) {
	raw, ok := r.URL.Query()[name]
	if !ok {
		return nil, false
	}

	values := []string{}
	for _, v := range raw {
		for part := range strings.SplitSeq(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				values = append(values, part)
			}
		}
	}
	return values, true
}
