package ssh

import (
	"context"
	"time"
)

// Transport defines the interface for SSH-based remote operations. It
// covers connection management, command execution and descriptor
// transfer, which is everything a remote deployment needs.
type Transport interface {
	// Connect establishes an SSH connection to the remote host.
	// Returns an error if the connection fails or authentication is
	// rejected. Calling Connect on a healthy connection is a no-op.
	Connect(ctx context.Context) error

	// Disconnect closes the SSH connection and releases all resources.
	Disconnect() error

	// IsConnected returns true if the transport has an active connection.
	IsConnected() bool

	// HealthCheck verifies the connection is still alive and responsive.
	HealthCheck(ctx context.Context) error

	// ExecuteCommand runs a command on the remote host.
	// Returns stdout, stderr, and any error that occurred.
	ExecuteCommand(ctx context.Context, cmd string) (stdout string, stderr string, err error)

	// UploadFile uploads a single file to the remote host via SFTP.
	// The mode parameter sets file permissions (e.g. 0644).
	UploadFile(ctx context.Context, localPath string, remotePath string, mode uint32) error

	// UploadBytes writes an in-memory document to a remote file via SFTP.
	UploadBytes(ctx context.Context, data []byte, remotePath string, mode uint32) error

	// VerifyUpload reads a remote file back and checks its content
	// against the given bytes.
	VerifyUpload(ctx context.Context, data []byte, remotePath string) error

	// GetConnectionInfo returns information about the current connection.
	GetConnectionInfo() ConnectionInfo
}

// ConnectionInfo contains details about an active SSH connection.
type ConnectionInfo struct {
	// Host is the remote hostname or IP address
	Host string

	// Port is the SSH port number
	Port int

	// User is the SSH username
	User string

	// ConnectedAt is when the connection was established
	ConnectedAt time.Time

	// LastActivity is when the connection was last used
	LastActivity time.Time
}

// TransportError represents an error from the transport layer.
type TransportError struct {
	// Op is the operation that failed (e.g. "connect", "exec", "upload")
	Op string

	// Err is the underlying error
	Err error

	// IsTemporary indicates if the error is temporary and can be retried
	IsTemporary bool

	// IsAuthError indicates if the error is related to authentication
	IsAuthError bool
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Temporary() bool {
	return e.IsTemporary
}
