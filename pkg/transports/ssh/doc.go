// Package ssh deploys daemons on remote hosts over SSH.
//
// # Overview
//
// The package adapts the service deployment flow to remote targets: the
// descriptor is pushed to the host via SFTP, the daemon command is
// started in an SSH session, and the control protocol runs over the
// session's stdin and stdout exactly as it would over a local child's
// pipes.
//
//   - Config: connection settings for one target (host, port, user,
//     authentication, known_hosts handling, timeouts)
//   - Client: the SSH connection (golang.org/x/crypto/ssh) with command
//     execution and SFTP transfer (github.com/pkg/sftp)
//   - RemoteDeployer / DeployRemote: upload the descriptor, start the
//     daemon, wait for its ready announcement
//
// # Example Usage
//
//	cfg := ssh.DefaultConfig("node12.cluster", "svc-bedrock")
//	client, err := ssh.NewClient(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Disconnect()
//
//	handle, err := ssh.DeployRemote(ctx, client, tree, nil)
//	if err != nil {
//	    return err
//	}
//	defer handle.Close()
//
// # Authentication
//
// Key, password and agent authentication are supported. With key
// authentication and no explicit path, the usual default keys under
// ~/.ssh are tried. Host keys are verified against known_hosts unless
// StrictHostKeyChecking is disabled.
package ssh
