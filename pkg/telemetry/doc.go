// Package telemetry provides observability instrumentation for the
// bedrock tooling.
//
// The telemetry package integrates structured logging (zerolog) and
// metrics (Prometheus) into one handle shared by the CLI and the
// deployment pipeline.
//
// # Architecture
//
// The telemetry system is built on two pillars:
//
//  1. Structured Logging - Context-aware logging with zerolog
//  2. Metrics Collection - Prometheus metrics for operational insights
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceName = "bedrockctl"
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Start metrics server
//	if err := tel.StartMetricsServer(); err != nil {
//	    log.Fatal(err)
//	}
//
// Add telemetry to context:
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// The logger provides component-specific logging with automatic context
// propagation:
//
//	logger := tel.Logger.NewComponentLogger("deployer")
//	logger = logger.WithDeploymentID("dep-123").WithAddress("ofi+tcp://")
//	logger.Info("Starting daemon")
//	logger.WithError(err).Error("Daemon exited")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// Components that take a plain zerolog.Logger get one from Zerolog:
//
//	loader := config.NewLoader(tel.Logger.Zerolog())
//
// # Metrics
//
// Prometheus metrics track deployments and descriptor operations:
//
//	// Record a deployment
//	tel.Metrics.RecordDeploymentStarted("ofi+tcp")
//	tel.Metrics.RecordDeploymentCompleted("running", duration)
//
//	// Record control protocol requests
//	tel.Metrics.RecordDaemonRequest("get_config", "ok", duration)
//
//	// Record descriptor validations and policy results
//	tel.Metrics.RecordValidation("ok")
//	tel.Metrics.RecordPolicyViolation("dedicated-rpc-pool", "warning")
//
// Metrics are exposed via HTTP at /metrics (default: :9090/metrics)
//
// # Deployment Context
//
// High-level helpers tie logging and metrics to a deployment:
//
//	ctx = telemetry.WithDeployment(ctx, deploymentID, address, protocol)
//	defer telemetry.EndDeployment(ctx, deploymentID, status, duration, err)
//
// # Configuration
//
// The package provides pre-configured setups for different environments:
//
//	// Development (verbose console logging)
//	cfg := telemetry.DevelopmentConfig()
//
//	// Production (JSON logs, sampling, metrics on)
//	cfg := telemetry.ProductionConfig()
//
//	// Custom configuration
//	cfg := &telemetry.Config{
//	    ServiceName: "bedrockctl",
//	    ServiceVersion: "1.0.0",
//	    Environment: "staging",
//	    Logging: telemetry.LoggingConfig{
//	        Level: "info",
//	        Format: "json",
//	    },
//	    Metrics: telemetry.MetricsConfig{
//	        Enabled: true,
//	        ListenAddress: ":9090",
//	    },
//	}
//
// # Common Metrics
//
// Key metrics exposed:
//
//   - bedrock_deployments_started_total{protocol}
//   - bedrock_deployments_completed_total{status}
//   - bedrock_deploy_duration_seconds{status}
//   - bedrock_daemon_requests_total{operation,status}
//   - bedrock_daemon_request_duration_seconds{operation}
//   - bedrock_validations_total{result}
//   - bedrock_policy_violations_total{policy,severity}
//   - bedrock_config_reloads_total{status}
//   - bedrock_active_deployments
//   - bedrock_daemon_up{address}
//
// # Security Considerations
//
//   - Never log sensitive data (credentials, keys, tokens)
//   - Limit metrics endpoint access via network policies
package telemetry
