package handlers

import (
	"log/slog"
	"net/http"

	"github.com/a-h/templ"

	"retail-insights/internal/auth"
	"retail-insights/internal/charts"
	apperrors "retail-insights/internal/errors"
	"retail-insights/internal/middleware"
	"retail-insights/internal/observability"
	"retail-insights/internal/reporting"
	"retail-insights/internal/services"
	"retail-insights/internal/ui/templates"
)

const (
	homePage    = "home"
	powerBIPage = "powerbi"

	msgInvalidLogin  = "Invalid username or password"
	msgLoginThrottle = "Too many login attempts, try again later"
)

// PageDeps are the collaborators of the HTML pages.
type PageDeps struct {
	Analytics   *services.Analytics
	Charts      *charts.Renderer
	Credentials *auth.CredentialStore
	Sessions    *auth.SessionManager
	Logins      *middleware.RateLimiter
	Metrics     *observability.Metrics
	Logger      *slog.Logger
	PowerBIURL  string
}

type PageHandlers struct {
	PageDeps
}

func NewPageHandlers(deps PageDeps) *PageHandlers {
	if deps.Charts == nil {
		deps.Charts = charts.NewRenderer(charts.DefaultStyle())
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &PageHandlers{PageDeps: deps}
}

func (h *PageHandlers) HandleLoginForm(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Sessions.FromRequest(r); err == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, templates.Login(templates.LoginPage{}))
}

// HandleLogin checks the submitted credentials and starts a session.
func (h *PageHandlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	if h.Logins != nil && !h.Logins.Allow(middleware.ClientIP(r)) {
		h.Metrics.LoginAttempt("throttled")
		h.Logger.WarnContext(r.Context(), "login throttled", "ip", middleware.ClientIP(r))
		h.render(w, r, http.StatusTooManyRequests, templates.Login(templates.LoginPage{Username: username, Error: msgLoginThrottle}))
		return
	}

	if err := h.Credentials.Verify(username, password); err != nil {
		h.Metrics.LoginAttempt("failure")
		h.Logger.InfoContext(r.Context(), "login failed", "username", username)
		h.render(w, r, http.StatusUnauthorized, templates.Login(templates.LoginPage{Username: username, Error: msgInvalidLogin}))
		return
	}

	s, token, err := h.Sessions.Issue(username, homePage)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.Sessions.SetCookie(w, s, token)
	h.Metrics.LoginAttempt("success")
	h.Logger.InfoContext(r.Context(), "login", "username", username, "session", s.ID)

	http.Redirect(w, r, "/?welcome=1", http.StatusSeeOther)
}

func (h *PageHandlers) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if s, err := h.Sessions.FromRequest(r); err == nil {
		h.Logger.InfoContext(r.Context(), "logout", "username", s.Username, "session", s.ID)
	}
	h.Sessions.ClearCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *PageHandlers) HandleHome(w http.ResponseWriter, r *http.Request) {
	user := h.navigate(w, r, homePage)

	page := templates.HomePage{Chrome: h.chrome("Home", homePage, user)}
	if r.URL.Query().Get("welcome") != "" && user != "" {
		page.Welcome = "Welcome " + user + "!"
	}
	for _, d := range reporting.Dashboards() {
		page.Dashboards = append(page.Dashboards, templates.NavItem{Title: d.Title, Href: dashboardHref(d.Slug)})
	}

	h.render(w, r, http.StatusOK, templates.Home(page))
}

// HandleDashboard renders the full page of one dashboard. The selection
// may be preset through the query string.
func (h *PageHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	dashboard, ok := reporting.Lookup(slug)
	if !ok {
		http.NotFound(w, r)
		return
	}
	user := h.navigate(w, r, slug)

	page := templates.DashboardPage{
		Chrome:  h.chrome(dashboard.Title, slug, user),
		Slug:    slug,
		Heading: dashboard.Title,
	}

	status := http.StatusOK
	result, err := h.Analytics.Render(r.Context(), slug, SelectionFromQuery(r))
	if result != nil {
		page.Options = result.Options
		page.Selection = result.Selection
		page.Report = result.Report
	}
	if err == nil {
		page.Charts, err = chartViews(h.Charts, result.Report)
	}
	if err != nil {
		appErr := apperrors.FromError(err)
		page.Error = appErr.Message
		if result == nil {
			status = appErr.StatusCode
		}
		h.Logger.WarnContext(r.Context(), "dashboard render failed", "dashboard", slug, "error", err)
	}

	h.render(w, r, status, templates.Dashboard(page))
}

func (h *PageHandlers) HandlePowerBI(w http.ResponseWriter, r *http.Request) {
	user := h.navigate(w, r, powerBIPage)
	h.render(w, r, http.StatusOK, templates.PowerBI(templates.PowerBIPage{
		Chrome:   h.chrome("Power BI", powerBIPage, user),
		EmbedURL: h.PowerBIURL,
	}))
}

// navigate records page on the session cookie and returns the user name.
func (h *PageHandlers) navigate(w http.ResponseWriter, r *http.Request, page string) string {
	s := auth.FromContext(r.Context())
	if s == nil {
		return ""
	}
	if s.Page != page {
		next, token, err := h.Sessions.Navigate(s, page)
		if err != nil {
			h.Logger.WarnContext(r.Context(), "update session page", "error", err)
			return s.Username
		}
		h.Sessions.SetCookie(w, next, token)
	}
	return s.Username
}

// chrome builds the sidebar: home, every dashboard, then Power BI when an
// embed URL is configured.
func (h *PageHandlers) chrome(title, active, user string) templates.Chrome {
	nav := []templates.NavItem{{Title: "Home", Href: "/", Active: active == homePage}}
	for _, d := range reporting.Dashboards() {
		nav = append(nav, templates.NavItem{Title: d.Title, Href: dashboardHref(d.Slug), Active: active == d.Slug})
	}
	if h.PowerBIURL != "" {
		nav = append(nav, templates.NavItem{Title: "Power BI", Href: dashboardHref(powerBIPage), Active: active == powerBIPage})
	}
	return templates.Chrome{Title: title, User: user, Nav: nav}
}

func (h *PageHandlers) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	html, err := templates.String(r.Context(), c)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(html)); err != nil {
		h.Logger.DebugContext(r.Context(), "write page", "error", err)
	}
}

func (h *PageHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.WriteError(w, h.Logger, apperrors.InternalWrap(err, "Could not render the page"), observability.GetRequestID(r.Context()))
}

func dashboardHref(slug string) string {
	return "/dashboards/" + slug
}
