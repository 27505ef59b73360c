package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the API and workers.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	GenerationsTotal   *prometheus.CounterVec
	CreditsDebited     prometheus.Counter
	CycleResetsTotal   *prometheus.CounterVec
	UpgradesTotal      *prometheus.CounterVec
	ProviderLatency    *prometheus.HistogramVec
	PaymentOrdersTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors on registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gstdoc_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gstdoc_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		GenerationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gstdoc_generations_total",
				Help: "Letter generation attempts by outcome",
			},
			[]string{"outcome"},
		),
		CreditsDebited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gstdoc_credits_debited_total",
				Help: "Credits consumed by committed generations",
			},
		),
		CycleResetsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gstdoc_cycle_resets_total",
				Help: "Monthly credit resets by plan",
			},
			[]string{"plan"},
		),
		UpgradesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gstdoc_upgrades_total",
				Help: "Plan upgrade applications by result",
			},
			[]string{"result"},
		),
		ProviderLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gstdoc_provider_request_duration_seconds",
				Help:    "Text-generation provider latency in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"status"},
		),
		PaymentOrdersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gstdoc_payment_orders_total",
				Help: "Payment orders created by plan",
			},
			[]string{"plan"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.GenerationsTotal,
		m.CreditsDebited,
		m.CycleResetsTotal,
		m.UpgradesTotal,
		m.ProviderLatency,
		m.PaymentOrdersTotal,
	)
	return m
}

// NewNopMetrics returns collectors registered on a throwaway registry, for tests and tools.
func NewNopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMiddleware records request count and latency, labelled by the matched route pattern.
func HTTPMiddleware(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
