package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "webmitra"

// Outcome labels shared by the auth counters.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeMissingToken       = "missing_token"
	OutcomeInvalidToken       = "invalid_token"
	OutcomeRejected           = "rejected"
	OutcomeConflict           = "conflict"
	OutcomeError              = "error"
)

type Metrics struct {
	registry *prometheus.Registry

	logins         *prometheus.CounterVec
	refreshes      *prometheus.CounterVec
	logouts        prometheus.Counter
	csrfRejections *prometheus.CounterVec
	rateLimited    *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "refreshes_total",
			Help:      "Refresh token rotations by outcome.",
		}, []string{"outcome"}),
		logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "logouts_total",
			Help:      "Logout requests.",
		}),
		csrfRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "csrf",
			Name:      "rejections_total",
			Help:      "Mutating requests refused by CSRF validation.",
		}, []string{"reason"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests refused by a rate limiter.",
		}, []string{"limiter"}),
	}

	registry.MustRegister(m.logins, m.refreshes, m.logouts, m.csrfRejections, m.rateLimited)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveLogin(outcome string) {
	if m != nil {
		m.logins.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObserveRefresh(outcome string) {
	if m != nil {
		m.refreshes.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObserveLogout() {
	if m != nil {
		m.logouts.Inc()
	}
}

func (m *Metrics) ObserveCSRFRejection(reason string) {
	if m != nil {
		m.csrfRejections.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) ObserveRateLimited(limiter string) {
	if m != nil {
		m.rateLimited.WithLabelValues(limiter).Inc()
	}
}
