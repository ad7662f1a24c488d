package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mochi-hpc/go-bedrock/pkg/config"
	"github.com/mochi-hpc/go-bedrock/pkg/service"
	"github.com/mochi-hpc/go-bedrock/pkg/spec"
	"github.com/mochi-hpc/go-bedrock/pkg/stores"
	"github.com/mochi-hpc/go-bedrock/pkg/telemetry"
	"github.com/mochi-hpc/go-bedrock/pkg/transports/ssh"
)

type deployFlags struct {
	binary         string
	daemonLogLevel string
	timeout        time.Duration

	host     string
	user     string
	port     int
	keyPath  string
	password string

	storePath     string
	watch         bool
	metricsListen string
}

func newDeployCommand() *cobra.Command {
	flags := &deployFlags{}

	cmd := &cobra.Command{
		Use:   "deploy <descriptor>",
		Short: "Start a daemon from a descriptor",
		Long: `Start a Bedrock daemon from a descriptor, locally or on a remote
host over SSH. The command stays attached to the daemon and shuts it
down when interrupted.

With --watch the descriptor file is watched for changes; every valid
new version replaces the running daemon. With --store each deployment
is recorded in a history database readable via "bedrockctl history".`,
		Example: `  # Start a local daemon
  bedrockctl deploy config.json

  # Start on a remote host, record history
  bedrockctl deploy config.json --host node12 --user mochi --store history.db

  # Redeploy on every descriptor change, expose metrics
  bedrockctl deploy config.json --watch --metrics-listen :9090`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(cmd.Context(), args[0], flags)
		},
	}

	cmd.Flags().StringVar(&flags.binary, "binary", "bedrock", "daemon executable")
	cmd.Flags().StringVar(&flags.daemonLogLevel, "daemon-log-level", "info", "log level passed to the daemon")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 30*time.Second, "daemon startup timeout")
	cmd.Flags().StringVar(&flags.host, "host", "", "deploy to a remote host over SSH instead of locally")
	cmd.Flags().StringVar(&flags.user, "user", "", "SSH user for remote deployment")
	cmd.Flags().IntVar(&flags.port, "port", 22, "SSH port for remote deployment")
	cmd.Flags().StringVar(&flags.keyPath, "identity", "", "SSH private key path")
	cmd.Flags().StringVar(&flags.password, "password", "", "SSH password (key-based auth is preferred)")
	cmd.Flags().StringVar(&flags.storePath, "store", "", "record the deployment in this history database")
	cmd.Flags().BoolVar(&flags.watch, "watch", false, "redeploy whenever the descriptor file changes")
	cmd.Flags().StringVar(&flags.metricsListen, "metrics-listen", "", "serve Prometheus metrics on this address")

	return cmd
}

func runDeploy(ctx context.Context, path string, flags *deployFlags) error {
	loader := config.NewLoader(log.Logger)
	tree, err := loader.Load(ctx, path)
	if err != nil {
		return fmt.Errorf("descriptor is invalid: %w", err)
	}

	var metrics *telemetry.Metrics
	if flags.metricsListen != "" {
		metrics, err = telemetry.NewMetrics(telemetry.MetricsConfig{
			Enabled:       true,
			ListenAddress: flags.metricsListen,
			Path:          "/metrics",
			Namespace:     "bedrock",
		})
		if err != nil {
			return err
		}
		if err := metrics.StartMetricsServer(); err != nil {
			return err
		}
		log.Info().Str("address", flags.metricsListen).Msg("Metrics server started")
	}

	var store stores.Store
	if flags.storePath != "" {
		s, err := stores.NewSQLiteStore(stores.Config{Path: flags.storePath})
		if err != nil {
			return err
		}
		if err := s.Init(ctx); err != nil {
			return err
		}
		defer s.Close()
		store = s
	}

	d := &deployment{flags: flags, store: store, metrics: metrics}

	if err := d.start(ctx, tree); err != nil {
		return err
	}

	if !flags.watch {
		<-ctx.Done()
		return d.stop(context.Background())
	}

	// Watch mode: every valid descriptor change replaces the daemon.
	watcher := config.NewWatcher(loader, log.Logger)
	err = watcher.Watch(ctx, []string{path}, func(changed string, next *spec.ProcSpec, loadErr error) {
		if loadErr != nil {
			log.Error().Err(loadErr).Str("path", changed).Msg("Reloaded descriptor is invalid, keeping current daemon")
			if metrics != nil {
				metrics.RecordConfigReload("invalid")
			}
			return
		}
		if metrics != nil {
			metrics.RecordConfigReload("ok")
		}
		log.Info().Str("path", changed).Msg("Descriptor changed, redeploying")
		if err := d.stop(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to stop previous daemon")
		}
		if err := d.start(ctx, next); err != nil {
			log.Error().Err(err).Msg("Redeployment failed")
		}
	})
	if err != nil {
		return err
	}

	<-ctx.Done()
	return d.stop(context.Background())
}

// deployment carries the state shared between the initial deploy and
// watch-mode redeployments. The watcher goroutine and the command
// goroutine both reach the current handle, so it sits behind a mutex.
type deployment struct {
	flags   *deployFlags
	store   stores.Store
	metrics *telemetry.Metrics

	mu       sync.Mutex
	handle   *service.ServiceHandle
	recordID string
}

func (d *deployment) start(ctx context.Context, tree *spec.ProcSpec) error {
	proto := tree.Margo().Mercury.Protocol()
	if d.metrics != nil {
		d.metrics.RecordDeploymentStarted(proto)
	}
	started := time.Now()

	handle, err := d.spawn(ctx, tree)
	if err != nil {
		if d.metrics != nil {
			d.metrics.RecordDeploymentCompleted("failed", time.Since(started))
		}
		return err
	}

	if d.metrics != nil {
		d.metrics.RecordDeploymentCompleted("ok", time.Since(started))
		d.metrics.SetDaemonUp(handle.Address(), true)
		d.metrics.SetActiveDeployments(1)
	}
	log.Info().
		Str("address", handle.Address()).
		Int("pid", handle.PID()).
		Str("config", handle.ConfigPath()).
		Msg("Daemon is ready")

	if d.store != nil {
		doc, err := json.Marshal(tree)
		if err != nil {
			return fmt.Errorf("failed to serialize descriptor: %w", err)
		}
		record := &stores.Deployment{
			ID:         uuid.New().String(),
			Address:    handle.Address(),
			Protocol:   proto,
			Host:       d.flags.host,
			ConfigPath: handle.ConfigPath(),
			Config:     string(doc),
			PID:        handle.PID(),
			Status:     stores.DeploymentStatusRunning,
		}
		if err := d.store.SaveDeployment(ctx, record); err != nil {
			log.Warn().Err(err).Msg("Failed to record deployment")
		} else {
			log.Info().Str("deployment_id", record.ID).Msg("Deployment recorded")
			d.mu.Lock()
			d.recordID = record.ID
			d.mu.Unlock()
		}
	}

	d.mu.Lock()
	d.handle = handle
	d.mu.Unlock()
	return nil
}

func (d *deployment) spawn(ctx context.Context, tree *spec.ProcSpec) (*service.ServiceHandle, error) {
	if d.flags.host == "" {
		deployer := service.NewLocalDeployer(&service.LocalDeployerConfig{
			Binary:         d.flags.binary,
			LogLevel:       d.flags.daemonLogLevel,
			StartupTimeout: d.flags.timeout,
			Logger:         log.Logger,
		})
		return deployer.Deploy(ctx, tree)
	}

	cfg := ssh.DefaultConfig(d.flags.host, d.flags.user)
	cfg.Port = d.flags.port
	if d.flags.keyPath != "" {
		cfg.AuthMethod = ssh.AuthMethodKey
		cfg.PrivateKeyPath = d.flags.keyPath
	} else if d.flags.password != "" {
		cfg.AuthMethod = ssh.AuthMethodPassword
		cfg.Password = d.flags.password
	}
	client, err := ssh.NewClient(cfg, log.Logger)
	if err != nil {
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	return ssh.DeployRemote(ctx, client, tree, &ssh.DeployOptions{
		Binary:         d.flags.binary,
		LogLevel:       d.flags.daemonLogLevel,
		StartupTimeout: d.flags.timeout,
	})
}

func (d *deployment) stop(ctx context.Context) error {
	d.mu.Lock()
	handle := d.handle
	recordID := d.recordID
	d.handle = nil
	d.recordID = ""
	d.mu.Unlock()
	if handle == nil {
		return nil
	}

	err := handle.Close()
	if d.metrics != nil {
		d.metrics.SetDaemonUp(handle.Address(), false)
		d.metrics.SetActiveDeployments(0)
	}
	if d.store != nil && recordID != "" {
		var msg *string
		status := stores.DeploymentStatusStopped
		if err != nil {
			s := err.Error()
			msg = &s
			status = stores.DeploymentStatusFailed
		}
		if uerr := d.store.UpdateDeploymentStatus(ctx, recordID, status, msg); uerr != nil {
			log.Warn().Err(uerr).Msg("Failed to update deployment record")
		}
	}
	return err
}
