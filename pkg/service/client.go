package service

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DialConfig configures Dial.
type DialConfig struct {
	// Network is the control socket network, "tcp" or "unix"
	// (default "tcp")
	Network string
	// StartupTimeout bounds the wait for the ready message (default 10s)
	StartupTimeout time.Duration
	// RequestTimeout bounds requests without a context deadline (default 30s)
	RequestTimeout time.Duration
	// Logger for handle operations
	Logger zerolog.Logger
}

// Dial attaches to the control socket of an already-running daemon and
// waits for its ready announcement. The daemon repeats the announcement
// to every new control connection, so Dial can be used any time after
// deployment.
func Dial(ctx context.Context, addr string, cfg *DialConfig) (*ServiceHandle, error) {
	if cfg == nil {
		cfg = &DialConfig{}
	}
	network := cfg.Network
	if network == "" {
		network = "tcp"
		if strings.HasPrefix(addr, "/") || strings.HasPrefix(addr, "@") {
			network = "unix"
		}
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to reach daemon at %s: %w", addr, err)
	}

	// The handle closes its writer and reader independently; both sides
	// are the same connection here, so only the writer close is real.
	handle, err := NewHandle(&HandleConfig{
		Writer:         conn,
		Reader:         noCloseReader{conn},
		StartupTimeout: cfg.StartupTimeout,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         cfg.Logger,
	})
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := handle.WaitReady(ctx); err != nil {
		handle.Close()
		return nil, err
	}
	return handle, nil
}

// noCloseReader hands reads through to a shared connection whose close
// belongs to the write side.
type noCloseReader struct {
	net.Conn
}

func (noCloseReader) Close() error { return nil }
