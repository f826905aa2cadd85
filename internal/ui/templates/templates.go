// Package templates holds the page and fragment components of the web UI.
package templates

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"io"
	"slices"
	"strings"

	"github.com/a-h/templ"

	"retail-insights/internal/charts"
	"retail-insights/internal/models"
	"retail-insights/internal/reporting"
)

//go:embed html/*.html
var files embed.FS

// Fragment element ids patched by the dashboard stream.
const (
	KPIsID    = "kpis"
	ChartsID  = "charts"
	FiltersID = "filters"
	ErrorID   = "error-banner"
)

var funcs = template.FuncMap{
	"kpi":     FormatKPI,
	"cell":    FormatCell,
	"join":    strings.Join,
	"has":     contains,
	"chartID": charts.ChartID,
}

var (
	base  = template.Must(template.New("base").Funcs(funcs).ParseFS(files, "html/layout.html", "html/fragments.html"))
	pages = map[string]*template.Template{
		"login":     page("html/login.html"),
		"home":      page("html/home.html"),
		"dashboard": page("html/dashboard.html"),
		"powerbi":   page("html/powerbi.html"),
	}
)

func contains(list []string, v string) bool {
	return slices.Contains(list, v)
}

func page(file string) *template.Template {
	return template.Must(template.Must(base.Clone()).ParseFS(files, file))
}

// NavItem is one entry of the sidebar page selector.
type NavItem struct {
	Title  string
	Href   string
	Active bool
}

// Chrome is the state shared by every logged-in page.
type Chrome struct {
	Title string
	User  string
	Nav   []NavItem
}

type LoginPage struct {
	Username string
	Error    string
}

type HomePage struct {
	Chrome
	Welcome    string
	Dashboards []NavItem
}

type PowerBIPage struct {
	Chrome
	EmbedURL string
}

// ChartView is one chart dataset with its rendered markup. Tables have no
// markup and are drawn from the dataset rows.
type ChartView struct {
	Dataset reporting.Dataset
	HTML    template.HTML
}

type DashboardPage struct {
	Chrome
	Slug      string
	Heading   string
	Options   models.FilterOptions
	Selection models.Selection
	Report    *reporting.Report
	Charts    []ChartView
	Error     string
}

// Signals is the initial Datastar signal object of the page.
func (d DashboardPage) Signals() string {
	b, err := json.Marshal(SelectionSignals(d.Selection))
	if err != nil {
		return "{}"
	}
	return string(b)
}

// StreamURL is the endpoint the page subscribes to for fragment updates.
func (d DashboardPage) StreamURL() string {
	return "/sse/dashboards/" + d.Slug
}

// SelectionSignals maps a selection onto the signal names bound by the
// sidebar multiselects. Empty lists stay empty rather than null.
func SelectionSignals(sel models.Selection) map[string]any {
	cats, subs := sel.Categories, sel.SubCategories
	if cats == nil {
		cats = []string{}
	}
	if subs == nil {
		subs = []string{}
	}
	return map[string]any{"categories": cats, "subcategories": subs}
}

func Login(d LoginPage) templ.Component { return execute(pages["login"], "layout", d) }

func Home(d HomePage) templ.Component { return execute(pages["home"], "layout", d) }

func Dashboard(d DashboardPage) templ.Component { return execute(pages["dashboard"], "layout", d) }

func PowerBI(d PowerBIPage) templ.Component { return execute(pages["powerbi"], "layout", d) }

// KPICards is the metric card row.
func KPICards(kpis []reporting.KPIValue) templ.Component {
	return execute(base, "kpis", kpis)
}

// ChartGrid is the chart and table section.
func ChartGrid(views []ChartView) templ.Component {
	return execute(base, "charts", views)
}

// Filters is the sidebar filter form of a dashboard.
func Filters(d DashboardPage) templ.Component {
	return execute(base, "filters", d)
}

// ErrorBanner shows msg, or clears the banner when msg is empty.
func ErrorBanner(msg string) templ.Component {
	return execute(base, "error", msg)
}

func execute(t *template.Template, name string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return t.ExecuteTemplate(w, name, data)
	})
}

// String renders c into a string, for patching fragments over SSE.
func String(ctx context.Context, c templ.Component) (string, error) {
	var sb strings.Builder
	if err := c.Render(ctx, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}
