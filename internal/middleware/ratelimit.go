package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"retail-insights/internal/config"
	"retail-insights/internal/errors"
	"retail-insights/internal/observability"
)

const limiterIdleTTL = time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per key. Buckets idle for longer than
// a minute are swept on the next call.
type RateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
	rps       rate.Limit
	burst     int
	enabled   bool
}

// NewRateLimiter builds the global per-client limiter from config.
func NewRateLimiter(cfg config.SecurityConfig) *RateLimiter {
	return NewKeyedLimiter(float64(cfg.RateLimitRPS), cfg.RateLimitBurst, cfg.EnableRateLimit)
}

// NewKeyedLimiter allows rps events per second per key with the given burst.
// A disabled limiter allows everything.
func NewKeyedLimiter(rps float64, burst int, enabled bool) *RateLimiter {
	return &RateLimiter{
		visitors:  make(map[string]*visitor),
		lastSweep: time.Now(),
		rps:       rate.Limit(rps),
		burst:     burst,
		enabled:   enabled,
	}
}

func (rl *RateLimiter) Allow(key string) bool {
	if !rl.enabled {
		return true
	}
	return rl.limiter(key, time.Now()).Allow()
}

func (rl *RateLimiter) limiter(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) > limiterIdleTTL {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) > limiterIdleTTL {
				delete(rl.visitors, k)
			}
		}
		rl.lastSweep = now
	}

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

// RateLimit throttles requests per client address.
func RateLimit(limiter *RateLimiter, logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			if limiter.Allow(ip) {
				next.ServeHTTP(w, r)
				return
			}
			logger.WarnContext(r.Context(), "rate limit exceeded", "ip", ip)
			errors.WriteError(w, logger, errors.RateLimit("Too many requests"), observability.GetRequestID(r.Context()))
		})
	}
}
