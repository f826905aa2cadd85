package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"retail-insights/internal/auth"
	"retail-insights/internal/errors"
	"retail-insights/internal/observability"
)

// machinePrefixes are answered with 401 instead of a login redirect.
var machinePrefixes = []string{"/api/", "/sse/", "/export/", "/admin/"}

// RequireSession admits requests that carry a valid session cookie and
// stores the session in the request context. Pages redirect to the login
// form; API, admin, stream and export calls get 401.
func RequireSession(sessions *auth.SessionManager, logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := sessions.FromRequest(r)
			if err == nil {
				next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), session)))
				return
			}

			logger.DebugContext(r.Context(), "session rejected", "path", r.URL.Path, "error", err)
			if !wantsPage(r) {
				errors.WriteError(w, logger, errors.Unauthorized("Login required"), observability.GetRequestID(r.Context()))
				return
			}
			sessions.ClearCookie(w)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
		})
	}
}

func wantsPage(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	for _, p := range machinePrefixes {
		if strings.HasPrefix(r.URL.Path, p) {
			return false
		}
	}
	return true
}
