package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "insights"

// Metrics holds the Prometheus collectors of the service. Each instance owns
// its registry so tests can build as many as they like. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Renders            *prometheus.CounterVec
	RenderDuration     *prometheus.HistogramVec
	SourceReads        *prometheus.CounterVec
	SourceReadDuration *prometheus.HistogramVec
	CacheLookups       *prometheus.CounterVec
	Logins             *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Renders: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dashboard_renders_total",
			Help:      "Dashboard report computations by dashboard and outcome",
		}, []string{"dashboard", "outcome"}),
		RenderDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dashboard_render_duration_seconds",
			Help:      "Time to filter and aggregate one dashboard",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"dashboard"}),
		SourceReads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_reads_total",
			Help:      "Order table reads by source and outcome",
		}, []string{"source", "outcome"}),
		SourceReadDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_read_duration_seconds",
			Help:      "Time to read the whole order table",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Order snapshot cache lookups by backend and result",
		}, []string{"backend", "result"}),
		Logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by outcome",
		}, []string{"outcome"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code",
		}, []string{"method", "code"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveRender(dashboard string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.Renders.WithLabelValues(dashboard, outcome(err)).Inc()
	m.RenderDuration.WithLabelValues(dashboard).Observe(d.Seconds())
}

func (m *Metrics) ObserveSourceRead(source string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.SourceReads.WithLabelValues(source, outcome(err)).Inc()
	m.SourceReadDuration.WithLabelValues(source).Observe(d.Seconds())
}

// CacheResult counts a lookup; result is "hit", "miss" or "error".
func (m *Metrics) CacheResult(backend, result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(backend, result).Inc()
}

func (m *Metrics) LoginAttempt(outcome string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRequest(method string, code int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
