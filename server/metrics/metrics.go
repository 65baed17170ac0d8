package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for the customer-auth service.
type Metrics struct {
	LoginsSucceeded    prometheus.Counter
	LoginsFailed       *prometheus.CounterVec
	ActiveSessions     prometheus.Gauge
	ExchangeDurationMs prometheus.Histogram
	ProfileRequests    *prometheus.CounterVec
}

// New registers and returns the service metrics collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LoginsSucceeded: factory.NewCounter(prometheus.CounterOpts{
			Name: "storefront_auth_logins_succeeded_total",
			Help: "Total number of completed customer logins",
		}),
		LoginsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_auth_logins_failed_total",
			Help: "Total number of failed customer logins by reason",
		}, []string{"reason"}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "storefront_auth_active_sessions",
			Help: "Sessions created minus explicit logouts; lazily expired sessions are not subtracted",
		}),
		ExchangeDurationMs: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "storefront_auth_exchange_duration_ms",
			Help:    "Duration of authorization code exchange in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		ProfileRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_auth_profile_requests_total",
			Help: "Total number of profile requests by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) IncrementLoginsSucceeded() {
	m.LoginsSucceeded.Inc()
}

func (m *Metrics) IncrementLoginsFailed(reason string) {
	m.LoginsFailed.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementActiveSessions() {
	m.ActiveSessions.Inc()
}

func (m *Metrics) DecrementActiveSessions() {
	m.ActiveSessions.Dec()
}

func (m *Metrics) ObserveExchangeDuration(durationMs float64) {
	m.ExchangeDurationMs.Observe(durationMs)
}

func (m *Metrics) IncrementProfileRequests(outcome string) {
	m.ProfileRequests.WithLabelValues(outcome).Inc()
}
