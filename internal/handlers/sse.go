package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/a-h/templ"
	"github.com/starfederation/datastar-go/datastar"

	"retail-insights/internal/charts"
	apperrors "retail-insights/internal/errors"
	"retail-insights/internal/models"
	"retail-insights/internal/services"
	"retail-insights/internal/ui/templates"
)

// resetSubcategories is sent by the category multiselect: a new category
// choice starts over with every sub-category selected.
const resetSubcategories = "subcategories"

// signalsParam carries the page signals on GET requests.
const signalsParam = "datastar"

const msgBadSignals = "The filter selection could not be read"

type SSEHandlers struct {
	analytics *services.Analytics
	charts    *charts.Renderer
	logger    *slog.Logger
}

func NewSSEHandlers(analytics *services.Analytics, renderer *charts.Renderer, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		analytics: analytics,
		charts:    renderer,
		logger:    logger,
	}
}

// dashboardSignals mirrors the signals bound by the sidebar multiselects.
type dashboardSignals struct {
	Categories    []string `json:"categories"`
	SubCategories []string `json:"subcategories"`
}

// HandleDashboard re-renders one dashboard for the selection held in the
// page signals and patches the filters, KPI cards and charts in place.
func (h *SSEHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	var signals dashboardSignals
	if r.URL.Query().Has(signalsParam) {
		if err := datastar.ReadSignals(r, &signals); err != nil {
			h.logger.WarnContext(r.Context(), "read signals", "error", err)
			h.patch(r.Context(), datastar.NewSSE(w, r), templates.ErrorBanner(msgBadSignals))
			return
		}
	}

	requested := models.Selection{Categories: signals.Categories, SubCategories: signals.SubCategories}
	if r.URL.Query().Get("reset") == resetSubcategories {
		requested.SubCategories = nil
	}

	slug := r.PathValue("slug")
	result, renderErr := h.analytics.Render(r.Context(), slug, requested)

	sse := datastar.NewSSE(w, r)

	if result == nil {
		h.patch(r.Context(), sse, templates.ErrorBanner(apperrors.FromError(renderErr).Message))
		return
	}

	if err := sse.MarshalAndPatchSignals(templates.SelectionSignals(result.Selection)); err != nil {
		h.logger.ErrorContext(r.Context(), "patch signals", "error", err)
		return
	}

	page := templates.DashboardPage{Slug: slug, Options: result.Options, Selection: result.Selection}
	h.patch(r.Context(), sse, templates.Filters(page))

	if renderErr != nil {
		h.patch(r.Context(), sse,
			templates.KPICards(nil),
			templates.ChartGrid(nil),
			templates.ErrorBanner(apperrors.FromError(renderErr).Message),
		)
		return
	}

	views, err := chartViews(h.charts, result.Report)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "render charts", "dashboard", slug, "error", err)
		h.patch(r.Context(), sse, templates.ErrorBanner(apperrors.FromError(err).Message))
		return
	}

	h.patch(r.Context(), sse,
		templates.KPICards(result.Report.KPIs),
		templates.ChartGrid(views),
		templates.ErrorBanner(""),
	)
}

// patch sends each component as its own element patch; elements are
// matched by their id.
func (h *SSEHandlers) patch(ctx context.Context, sse *datastar.ServerSentEventGenerator, components ...templ.Component) {
	for _, c := range components {
		html, err := templates.String(ctx, c)
		if err != nil {
			h.logger.ErrorContext(ctx, "render fragment", "error", err)
			return
		}
		if err := sse.PatchElements(html); err != nil {
			h.logger.DebugContext(ctx, "patch elements", "error", err)
			return
		}
	}
}
