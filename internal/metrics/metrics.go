package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the process's Prometheus collectors. Request counts and
// latency are labeled by tier, model and provider; cost by model and
// provider; escalations by reason; provider metrics by provider.
type Registry struct {
	reg *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestLatency   *prometheus.HistogramVec
	CostUSD          *prometheus.CounterVec
	EscalationsTotal *prometheus.CounterVec
	RateLimitedTotal prometheus.Counter

	// Circuit breaker metrics (per provider).
	CircuitState  *prometheus.GaugeVec // 0=closed, 1=open, 2=half-open
	ProviderSkips *prometheus.CounterVec
}

func New() *Registry {
	reg := prometheus.NewRegistry()
	m := &Registry{
		reg: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "osqr_requests_total",
			Help: "Total requests routed through osqr",
		}, []string{"tier", "model", "provider", "status"}),
		RequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "osqr_request_latency_ms",
			Help:    "Request latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		}, []string{"tier", "model", "provider"}),
		CostUSD: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "osqr_cost_usd_total",
			Help: "Estimated USD cost accumulated in sealed MRPs",
		}, []string{"model", "provider"}),
		EscalationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "osqr_escalations_total",
			Help: "Total tier escalations, labeled by the reason that triggered them",
		}, []string{"reason"}),
		RateLimitedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "osqr_rate_limited_total",
			Help: "Total requests rejected by the rate limiter",
		}),
		CircuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "osqr_provider_circuit_state",
			Help: "Per-provider circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"provider"}),
		ProviderSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "osqr_provider_skips_total",
			Help: "Total provider calls skipped because the circuit was open",
		}, []string{"provider"}),
	}
	reg.MustRegister(m.RequestsTotal, m.RequestLatency, m.CostUSD, m.EscalationsTotal,
		m.RateLimitedTotal, m.CircuitState, m.ProviderSkips)
	return m
}

func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
