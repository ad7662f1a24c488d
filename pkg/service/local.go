package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog"

	"github.com/mochi-hpc/go-bedrock/pkg/spec"
)

// Deployer starts a daemon from a descriptor and returns a handle on it.
type Deployer interface {
	Deploy(ctx context.Context, tree *spec.ProcSpec) (*ServiceHandle, error)
}

// LocalDeployerConfig configures a LocalDeployer.
type LocalDeployerConfig struct {
	// Binary is the daemon executable (default "bedrock")
	Binary string
	// WorkDir is where descriptor files are written (default os.TempDir)
	WorkDir string
	// LogLevel is passed to the daemon via -v (default "info")
	LogLevel string
	// StartupTimeout bounds the wait for the ready message (default 10s)
	StartupTimeout time.Duration
	// Logger for deployment operations
	Logger zerolog.Logger
}

// LocalDeployer starts daemons as child processes on the local host. The
// descriptor is written to a file and passed to the daemon on its command
// line; the control protocol then runs over the child's stdin and stdout.
type LocalDeployer struct {
	binary         string
	workDir        string
	logLevel       string
	startupTimeout time.Duration
	logger         zerolog.Logger
}

// NewLocalDeployer creates a local deployer with the given configuration.
func NewLocalDeployer(cfg *LocalDeployerConfig) *LocalDeployer {
	if cfg == nil {
		cfg = &LocalDeployerConfig{}
	}
	binary := cfg.Binary
	if binary == "" {
		binary = "bedrock"
	}
	workDir := cfg.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}
	logLevel := cfg.LogLevel
	if logLevel == "" {
		logLevel = "info"
	}
	timeout := cfg.StartupTimeout
	if timeout == 0 {
		timeout = DefaultStartupTimeout
	}
	return &LocalDeployer{
		binary:         binary,
		workDir:        workDir,
		logLevel:       logLevel,
		startupTimeout: timeout,
		logger:         cfg.Logger.With().Str("component", "local-deployer").Logger(),
	}
}

// Deploy writes the descriptor to a file, starts the daemon and waits for
// it to become ready. The descriptor file is kept so that the running
// daemon can be inspected; its path is available via ServiceHandle.ConfigPath.
func (d *LocalDeployer) Deploy(ctx context.Context, tree *spec.ProcSpec) (*ServiceHandle, error) {
	doc, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize descriptor: %w", err)
	}

	f, err := os.CreateTemp(d.workDir, "bedrock-*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to create descriptor file: %w", err)
	}
	if _, err := f.Write(doc); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write descriptor file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close descriptor file: %w", err)
	}
	configPath := f.Name()

	proto := tree.Margo().Mercury.Protocol()
	cmd := exec.CommandContext(ctx, d.binary, proto, "-v", d.logLevel, "-c", configPath)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stderr pipe: %w", err)
	}

	// Log daemon stderr in background
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := stderr.Read(buf)
			if n > 0 {
				d.logger.Warn().Str("stderr", string(buf[:n])).Msg("Daemon stderr")
			}
			if err != nil {
				break
			}
		}
	}()

	d.logger.Info().
		Str("binary", d.binary).
		Str("protocol", proto).
		Str("config", configPath).
		Msg("Starting daemon")

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start daemon: %w", err)
	}

	// Reap the child once it exits
	go func() {
		if err := cmd.Wait(); err != nil {
			d.logger.Debug().Err(err).Msg("Daemon exited")
		}
	}()

	handle, err := NewHandle(&HandleConfig{
		Writer:         stdin,
		Reader:         stdout,
		StartupTimeout: d.startupTimeout,
		ConfigPath:     configPath,
		PID:            cmd.Process.Pid,
		Logger:         d.logger,
	})
	if err != nil {
		_ = cmd.Process.Kill()
		return nil, err
	}

	if err := handle.WaitReady(ctx); err != nil {
		_ = cmd.Process.Kill()
		return nil, fmt.Errorf("daemon failed to start: %w", err)
	}

	return handle, nil
}
