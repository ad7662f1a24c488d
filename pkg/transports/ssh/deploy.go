package ssh

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"

	"github.com/mochi-hpc/go-bedrock/pkg/service"
	"github.com/mochi-hpc/go-bedrock/pkg/spec"
)

// DeployOptions configures a remote deployment.
type DeployOptions struct {
	// Binary is the daemon executable on the remote host (default "bedrock")
	Binary string
	// RemoteDir is where descriptor files are uploaded (default "/tmp")
	RemoteDir string
	// LogLevel is passed to the daemon via -v (default "info")
	LogLevel string
	// StartupTimeout bounds the wait for the ready message (default 10s)
	StartupTimeout time.Duration
	// VerifyUpload reads the descriptor back after uploading and
	// compares checksums before starting the daemon
	VerifyUpload bool
	// SkipBinaryCheck disables the preflight check that the daemon
	// binary exists on the remote host
	SkipBinaryCheck bool
}

// RemoteDeployer starts daemons on a remote host over SSH. The
// descriptor is uploaded via SFTP and passed to the daemon on its
// command line; the control protocol then runs over the remote
// process's stdin and stdout, carried by the SSH session.
type RemoteDeployer struct {
	client         *Client
	binary         string
	remoteDir      string
	logLevel       string
	startupTimeout time.Duration
	verifyUpload   bool
	checkBinary    bool
	logger         zerolog.Logger
}

// NewRemoteDeployer creates a remote deployer over an SSH client.
func NewRemoteDeployer(client *Client, opts *DeployOptions) *RemoteDeployer {
	if opts == nil {
		opts = &DeployOptions{}
	}
	binary := opts.Binary
	if binary == "" {
		binary = "bedrock"
	}
	remoteDir := opts.RemoteDir
	if remoteDir == "" {
		remoteDir = "/tmp"
	}
	logLevel := opts.LogLevel
	if logLevel == "" {
		logLevel = "info"
	}
	timeout := opts.StartupTimeout
	if timeout == 0 {
		timeout = service.DefaultStartupTimeout
	}
	return &RemoteDeployer{
		client:         client,
		binary:         binary,
		remoteDir:      remoteDir,
		logLevel:       logLevel,
		startupTimeout: timeout,
		verifyUpload:   opts.VerifyUpload,
		checkBinary:    !opts.SkipBinaryCheck,
		logger:         client.logger.With().Str("component", "remote-deployer").Logger(),
	}
}

// Deploy uploads the descriptor, starts the daemon on the remote host
// and waits for it to become ready. The uploaded descriptor is kept so
// that the running daemon can be inspected; its path is available via
// ServiceHandle.ConfigPath.
func (d *RemoteDeployer) Deploy(ctx context.Context, tree *spec.ProcSpec) (*service.ServiceHandle, error) {
	doc, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize descriptor: %w", err)
	}

	// Connect returns immediately when the connection is healthy
	if err := d.client.Connect(ctx); err != nil {
		return nil, err
	}

	if d.checkBinary {
		if _, _, err := d.client.ExecuteCommand(ctx, fmt.Sprintf("command -v %s", d.binary)); err != nil {
			return nil, fmt.Errorf("daemon binary %q not found on %s: %w", d.binary, d.client.config.Host, err)
		}
	}

	remotePath := path.Join(d.remoteDir, fmt.Sprintf("bedrock-%s.json", uuid.New().String()[:8]))
	if err := d.client.UploadBytes(ctx, doc, remotePath, 0600); err != nil {
		return nil, fmt.Errorf("failed to upload descriptor: %w", err)
	}

	if d.verifyUpload {
		if err := d.client.VerifyUpload(ctx, doc, remotePath); err != nil {
			return nil, fmt.Errorf("descriptor verification failed: %w", err)
		}
	}

	proto := tree.Margo().Mercury.Protocol()
	cmd := fmt.Sprintf("%s %s -v %s -c %s", d.binary, proto, d.logLevel, remotePath)

	d.logger.Info().
		Str("host", d.client.config.Host).
		Str("protocol", proto).
		Str("config", remotePath).
		Msg("Starting remote daemon")

	stdin, stdout, stderr, session, err := d.client.startCommandSession(ctx, cmd)
	if err != nil {
		return nil, err
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

	// Reap the session once the remote process exits
	go func() {
		if err := session.Wait(); err != nil {
			d.logger.Debug().Err(err).Msg("Remote daemon exited")
		}
		_ = session.Close()
	}()

	// The session reaper tears the channel down once the remote
	// process exits, so the handle gets a no-op closer for its reader.
	handle, err := service.NewHandle(&service.HandleConfig{
		Writer:         stdin,
		Reader:         io.NopCloser(stdout),
		StartupTimeout: d.startupTimeout,
		ConfigPath:     remotePath,
		Logger:         d.logger,
	})
	if err != nil {
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		return nil, err
	}

	if err := handle.WaitReady(ctx); err != nil {
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		return nil, fmt.Errorf("daemon failed to start on %s: %w", d.client.config.Host, err)
	}

	return handle, nil
}

// DeployRemote uploads the descriptor to the client's host, runs the
// daemon command there and returns a handle on the running daemon.
func DeployRemote(ctx context.Context, client *Client, tree *spec.ProcSpec, opts *DeployOptions) (*service.ServiceHandle, error) {
	return NewRemoteDeployer(client, opts).Deploy(ctx, tree)
}
