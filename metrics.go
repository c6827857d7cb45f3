package authcore

import (
	"github.com/prometheus/client_golang/prometheus"
)

// engineMetrics holds the Prometheus instruments. All methods are
// nil-safe; an engine built without a registry simply records nothing.
type engineMetrics struct {
	loginAttempts  *prometheus.CounterVec
	lockouts       prometheus.Counter
	otpIssued      *prometheus.CounterVec
	otpConfirmed   *prometheus.CounterVec
	tokenRefreshes *prometheus.CounterVec
	tokenRevokes   prometheus.Counter
}

func newEngineMetrics(reg prometheus.Registerer) *engineMetrics {
	if reg == nil {
		return nil
	}

	m := &engineMetrics{
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "login_attempts_total",
			Help:      "Login attempts by principal kind and result.",
		}, []string{"kind", "result"}),
		lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "lockouts_total",
			Help:      "Accounts locked by the failed-login threshold.",
		}),
		otpIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "otp_issued_total",
			Help:      "One-time codes issued by purpose.",
		}, []string{"purpose"}),
		otpConfirmed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "otp_confirmed_total",
			Help:      "One-time code confirmations by purpose and result.",
		}, []string{"purpose", "result"}),
		tokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "token_refreshes_total",
			Help:      "Refresh rotations by result.",
		}, []string{"result"}),
		tokenRevokes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "token_revocations_total",
			Help:      "Explicit token revocations.",
		}),
	}

	reg.MustRegister(
		m.loginAttempts, m.lockouts,
		m.otpIssued, m.otpConfirmed,
		m.tokenRefreshes, m.tokenRevokes,
	)
	return m
}

func (m *engineMetrics) loginAttempt(kind Kind, result string) {
	if m == nil {
		return
	}
	m.loginAttempts.WithLabelValues(string(kind), result).Inc()
}

func (m *engineMetrics) lockout() {
	if m == nil {
		return
	}
	m.lockouts.Inc()
}

func (m *engineMetrics) otpIssue(purpose string) {
	if m == nil {
		return
	}
	m.otpIssued.WithLabelValues(purpose).Inc()
}

func (m *engineMetrics) otpConfirm(purpose string, ok bool) {
	if m == nil {
		return
	}
	m.otpConfirmed.WithLabelValues(purpose, boolResult(ok)).Inc()
}

func (m *engineMetrics) tokenRefresh(ok bool) {
	if m == nil {
		return
	}
	m.tokenRefreshes.WithLabelValues(boolResult(ok)).Inc()
}

func (m *engineMetrics) tokenRevoke() {
	if m == nil {
		return
	}
	m.tokenRevokes.Inc()
}

func boolResult(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
