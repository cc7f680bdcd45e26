package core

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes the dispatcher's operational counters on the admin
// surface's /metrics endpoint. Grounded on core/system_health_logging.go's
// registry + typed-gauge/counter construction.
type Metrics struct {
	Registry *prometheus.Registry

	operationsTotal   *prometheus.CounterVec
	operationFailures *prometheus.CounterVec
	rateLimitRejects  prometheus.Counter
	vaultCount        prometheus.Gauge
}

// NewMetrics constructs and registers a fresh metrics set.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xvault_operations_total",
			Help: "Number of dispatched operations by kind and outcome.",
		}, []string{"operation", "outcome"}),
		operationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xvault_operation_failures_total",
			Help: "Number of failed operations by error code.",
		}, []string{"code"}),
		rateLimitRejects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xvault_rate_limit_rejections_total",
			Help: "Number of operations rejected by the rate limiter.",
		}),
		vaultCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "xvault_vaults",
			Help: "Current number of vaults held in the store.",
		}),
	}

	reg.MustRegister(m.operationsTotal, m.operationFailures, m.rateLimitRejects, m.vaultCount)
	return m
}

// ObserveSuccess records a successfully dispatched operation.
func (m *Metrics) ObserveSuccess(operation string) {
	m.operationsTotal.WithLabelValues(operation, "success").Inc()
}

// ObserveFailure records a failed operation and its error code.
func (m *Metrics) ObserveFailure(operation string, code ErrorCode) {
	m.operationsTotal.WithLabelValues(operation, "failure").Inc()
	m.operationFailures.WithLabelValues(string(code)).Inc()
	if code == ErrRateLimitExceeded {
		m.rateLimitRejects.Inc()
	}
}

// SetVaultCount updates the current vault-count gauge.
func (m *Metrics) SetVaultCount(n int) {
	m.vaultCount.Set(float64(n))
}
