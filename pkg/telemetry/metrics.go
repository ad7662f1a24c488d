package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the bedrock tooling.
type Metrics struct {
	config MetricsConfig

	// Deployment metrics
	deploymentsStarted   *prometheus.CounterVec
	deploymentsCompleted *prometheus.CounterVec
	deployDuration       *prometheus.HistogramVec

	// Daemon control protocol metrics
	daemonRequests        *prometheus.CounterVec
	daemonRequestDuration *prometheus.HistogramVec

	// Descriptor metrics
	validations      *prometheus.CounterVec
	policyViolations *prometheus.CounterVec
	configReloads    *prometheus.CounterVec

	// System metrics
	activeDeployments prometheus.Gauge
	daemonUp          *prometheus.GaugeVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	// Create a new registry
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		// Deployment metrics
		deploymentsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deployments_started_total",
				Help:      "Total number of daemon deployments started",
			},
			[]string{"protocol"},
		),
		deploymentsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deployments_completed_total",
				Help:      "Total number of daemon deployments completed",
			},
			[]string{"status"},
		),
		deployDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "deploy_duration_seconds",
				Help:      "Duration of deployments in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),

		// Daemon control protocol metrics
		daemonRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "daemon_requests_total",
				Help:      "Total number of control protocol requests",
			},
			[]string{"operation", "status"},
		),
		daemonRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "daemon_request_duration_seconds",
				Help:      "Duration of control protocol requests in seconds",
				Buckets:   buckets,
			},
			[]string{"operation"},
		),

		// Descriptor metrics
		validations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validations_total",
				Help:      "Total number of descriptor validations",
			},
			[]string{"result"},
		),
		policyViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_violations_total",
				Help:      "Total number of policy violations reported",
			},
			[]string{"policy", "severity"},
		),
		configReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reloads_total",
				Help:      "Total number of descriptor reloads by the watcher",
			},
			[]string{"status"},
		),

		// System metrics
		activeDeployments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_deployments",
				Help:      "Current number of active deployments",
			},
		),
		daemonUp: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "daemon_up",
				Help:      "Whether the daemon at an address answered its last probe (1=up, 0=down)",
			},
			[]string{"address"},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.deploymentsStarted,
		m.deploymentsCompleted,
		m.deployDuration,
		m.daemonRequests,
		m.daemonRequestDuration,
		m.validations,
		m.policyViolations,
		m.configReloads,
		m.activeDeployments,
		m.daemonUp,
	)

	return m, nil
}

// Deployment Metrics

// RecordDeploymentStarted increments the counter for started deployments.
func (m *Metrics) RecordDeploymentStarted(protocol string) {
	if m.deploymentsStarted == nil {
		return
	}
	m.deploymentsStarted.WithLabelValues(protocol).Inc()
	m.activeDeployments.Inc()
}

// RecordDeploymentCompleted records a completed deployment with its status and duration.
func (m *Metrics) RecordDeploymentCompleted(status string, duration time.Duration) {
	if m.deploymentsCompleted == nil {
		return
	}
	m.deploymentsCompleted.WithLabelValues(status).Inc()
	m.deployDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.activeDeployments.Dec()
}

// Daemon Metrics

// RecordDaemonRequest records a control protocol request with its duration.
func (m *Metrics) RecordDaemonRequest(operation, status string, duration time.Duration) {
	if m.daemonRequests == nil {
		return
	}
	m.daemonRequests.WithLabelValues(operation, status).Inc()
	m.daemonRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetDaemonUp records the result of the last daemon probe.
func (m *Metrics) SetDaemonUp(address string, up bool) {
	if m.daemonUp == nil {
		return
	}
	value := 0.0
	if up {
		value = 1.0
	}
	m.daemonUp.WithLabelValues(address).Set(value)
}

// Descriptor Metrics

// RecordValidation records the result of a descriptor validation.
func (m *Metrics) RecordValidation(result string) {
	if m.validations == nil {
		return
	}
	m.validations.WithLabelValues(result).Inc()
}

// RecordPolicyViolation records a reported policy violation.
func (m *Metrics) RecordPolicyViolation(policy, severity string) {
	if m.policyViolations == nil {
		return
	}
	m.policyViolations.WithLabelValues(policy, severity).Inc()
}

// RecordConfigReload records a watcher reload attempt.
func (m *Metrics) RecordConfigReload(status string) {
	if m.configReloads == nil {
		return
	}
	m.configReloads.WithLabelValues(status).Inc()
}

// System Metrics

// SetActiveDeployments sets the current number of active deployments.
func (m *Metrics) SetActiveDeployments(count float64) {
	if m.activeDeployments == nil {
		return
	}
	m.activeDeployments.Set(count)
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration is a helper to time an operation and record it.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't fail the application
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
