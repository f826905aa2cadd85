package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"retail-insights/internal/config"
	"retail-insights/internal/errors"
	"retail-insights/internal/observability"
)

// forwardingHeaders are only honoured when set by a trusted proxy.
var forwardingHeaders = []string{"X-Forwarded-For", "X-Real-IP", "X-Forwarded-Proto"}

// SecurityHeaders sets the response hardening headers. frameSrc lists the
// origins allowed inside iframes, such as an embedded Power BI report.
func SecurityHeaders(frameSrc ...string) Middleware {
	frames := "'none'"
	if len(frameSrc) > 0 {
		frames = strings.Join(frameSrc, " ")
	}
	csp := strings.Join([]string{
		"default-src 'self'",
		"script-src 'self' 'unsafe-inline' 'unsafe-eval' https://cdn.jsdelivr.net",
		"style-src 'self' 'unsafe-inline' https://cdn.jsdelivr.net",
		"img-src 'self' data:",
		"connect-src 'self'",
		"frame-src " + frames,
	}, "; ")
	headers := map[string]string{
		"X-Content-Type-Options":    "nosniff",
		"X-Frame-Options":           "DENY",
		"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
		"Referrer-Policy":           "strict-origin-when-cross-origin",
		"Content-Security-Policy":   csp,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for k, v := range headers {
				h.Set(k, v)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CORS echoes allowed origins and answers preflight requests directly.
func CORS(cfg config.SecurityConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if origin := r.Header.Get("Origin"); allowedOrigin(origin, cfg.AllowedOrigins) {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Add("Vary", "Origin")
			}
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID, Datastar-Request")
			h.Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SameOrigin rejects state-changing requests whose Origin header names a
// site that is neither this host nor an allowed origin.
func SameOrigin(cfg config.SecurityConfig, logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case !cfg.EnableCSRF, safeMethod(r.Method), origin == "":
			case allowedOrigin(origin, cfg.AllowedOrigins), originHost(origin) == r.Host:
			default:
				logger.WarnContext(r.Context(), "cross-origin request rejected", "origin", origin, "path", r.URL.Path)
				errors.WriteError(w, logger, errors.New(errors.CodeForbidden, "Cross-origin request rejected"),
					observability.GetRequestID(r.Context()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// TrustedProxy strips forwarding headers from requests that did not come
// through one of the configured proxies.
func TrustedProxy(cfg config.SecurityConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !slices.Contains(cfg.TrustedProxies, remoteHost(r.RemoteAddr)) {
				for _, h := range forwardingHeaders {
					r.Header.Del(h)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP is the caller address, honouring forwarding headers that
// TrustedProxy left in place.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return remoteHost(r.RemoteAddr)
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func originHost(origin string) string {
	u, err := url.Parse(origin)
	if err != nil {
		return ""
	}
	return u.Host
}

func allowedOrigin(origin string, allowed []string) bool {
	if origin == "" {
		return false
	}
	return slices.ContainsFunc(allowed, func(a string) bool { return a == "*" || a == origin })
}
