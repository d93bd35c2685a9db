package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application. Services
// accept a nil *Metrics, so tests don't have to register collectors.
type Metrics struct {
	Logins             prometheus.Counter
	LoginFailures      prometheus.Counter
	TokenRenewals      prometheus.Counter
	SessionsSuperseded prometheus.Counter
	PermissionRequests *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics on the default
// registry.
func New() *Metrics {
	return &Metrics{
		Logins: promauto.NewCounter(prometheus.CounterOpts{
			Name: "apim_logins_total",
			Help: "Total number of successful logins",
		}),
		LoginFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "apim_login_failures_total",
			Help: "Total number of rejected login attempts",
		}),
		TokenRenewals: promauto.NewCounter(prometheus.CounterOpts{
			Name: "apim_token_renewals_total",
			Help: "Total number of silent access assertion renewals",
		}),
		SessionsSuperseded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "apim_sessions_superseded_total",
			Help: "Total number of requests rejected because the session was rotated elsewhere",
		}),
		PermissionRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "apim_permission_requests_total",
			Help: "Permission request workflow transitions by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) IncLogin() {
	if m != nil {
		m.Logins.Inc()
	}
}

func (m *Metrics) IncLoginFailure() {
	if m != nil {
		m.LoginFailures.Inc()
	}
}

func (m *Metrics) IncTokenRenewal() {
	if m != nil {
		m.TokenRenewals.Inc()
	}
}

func (m *Metrics) IncSessionSuperseded() {
	if m != nil {
		m.SessionsSuperseded.Inc()
	}
}

// IncPermissionRequest records a workflow transition. Outcome is one of
// "submitted", "approved", "rejected", "auto_approved".
func (m *Metrics) IncPermissionRequest(outcome string) {
	if m != nil {
		m.PermissionRequests.WithLabelValues(outcome).Inc()
	}
}
