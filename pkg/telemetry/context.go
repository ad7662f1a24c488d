package telemetry

import (
	"context"
	"time"
)

// Telemetry bundles the logger and metrics collector behind one handle.
type Telemetry struct {
	Logger  *Logger
	Metrics *Metrics
	Config  *Config
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Initialize logger
	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	// Initialize metrics
	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Metrics: metrics,
		Config:  cfg,
	}, nil
}

// WithContext adds the telemetry instance to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	ctx = t.Logger.WithContext(ctx)
	return ctx
}

// FromTelemetryContext retrieves the telemetry instance from the context.
// If no telemetry is found, it returns nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// StartMetricsServer starts the metrics HTTP server if metrics are enabled.
func (t *Telemetry) StartMetricsServer() error {
	return t.Metrics.StartMetricsServer()
}

// WithDeployment creates a context enriched with deployment-specific
// telemetry and records the deployment start.
func WithDeployment(ctx context.Context, deploymentID, address, protocol string) context.Context {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return ctx
	}

	logger := tel.Logger.WithDeploymentID(deploymentID).WithAddress(address)
	ctx = logger.WithContext(ctx)

	tel.Metrics.RecordDeploymentStarted(protocol)

	return ctx
}

// EndDeployment completes the deployment context, recording metrics.
func EndDeployment(ctx context.Context, deploymentID, status string, duration time.Duration, err error) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return
	}

	tel.Metrics.RecordDeploymentCompleted(status, duration)

	logger := FromContext(ctx)
	if err != nil {
		logger.WithError(err).Error("Deployment finished with error")
		return
	}
	logger.WithField("status", status).Info("Deployment finished")
}
