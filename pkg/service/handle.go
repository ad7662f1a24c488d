package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mochi-hpc/go-bedrock/pkg/service/protocol"
	"github.com/mochi-hpc/go-bedrock/pkg/spec"
)

const (
	// DefaultStartupTimeout is how long WaitReady waits for the ready message
	DefaultStartupTimeout = 10 * time.Second
	// DefaultRequestTimeout is the per-request timeout when the context has no deadline
	DefaultRequestTimeout = 30 * time.Second
)

// HandleConfig configures a ServiceHandle.
type HandleConfig struct {
	// Writer is the daemon's control input (typically its stdin)
	Writer io.WriteCloser
	// Reader is the daemon's control output (typically its stdout)
	Reader io.ReadCloser
	// StartupTimeout bounds WaitReady (default 10s)
	StartupTimeout time.Duration
	// RequestTimeout bounds requests without a context deadline (default 30s)
	RequestTimeout time.Duration
	// ConfigPath records where the deployer wrote the descriptor, if anywhere
	ConfigPath string
	// PID records the spawned process id when the deployer knows it
	PID int
	// Logger for handle operations
	Logger zerolog.Logger
}

// ServiceHandle drives the control protocol of one running daemon. It sends
// requests over the daemon's stdin and reads responses from its stdout, one
// request at a time.
type ServiceHandle struct {
	writer         io.WriteCloser
	reader         io.ReadCloser
	encoder        *protocol.Encoder
	decoder        *protocol.Decoder
	logger         zerolog.Logger
	startupTimeout time.Duration
	requestTimeout time.Duration

	mu         sync.Mutex
	ready      *protocol.ReadyMessage
	closed     bool
	configPath string
	pid        int
}

// NewHandle creates a handle over an established control channel. Call
// WaitReady before issuing requests.
func NewHandle(cfg *HandleConfig) (*ServiceHandle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Writer == nil || cfg.Reader == nil {
		return nil, fmt.Errorf("both reader and writer are required")
	}
	startup := cfg.StartupTimeout
	if startup == 0 {
		startup = DefaultStartupTimeout
	}
	request := cfg.RequestTimeout
	if request == 0 {
		request = DefaultRequestTimeout
	}
	return &ServiceHandle{
		writer:         cfg.Writer,
		reader:         cfg.Reader,
		encoder:        protocol.NewEncoder(cfg.Writer),
		decoder:        protocol.NewDecoder(cfg.Reader),
		logger:         cfg.Logger.With().Str("component", "service-handle").Logger(),
		startupTimeout: startup,
		requestTimeout: request,
		configPath:     cfg.ConfigPath,
		pid:            cfg.PID,
	}, nil
}

// WaitReady blocks until the daemon announces itself or the timeout expires.
func (h *ServiceHandle) WaitReady(ctx context.Context) error {
	readyCh := make(chan *protocol.ReadyMessage, 1)
	errCh := make(chan error, 1)

	go func() {
		for {
			msg, err := h.decoder.Decode()
			if err != nil {
				errCh <- fmt.Errorf("failed to read ready message: %w", err)
				return
			}
			switch msg.Type {
			case protocol.MessageTypeReady:
				var ready protocol.ReadyMessage
				if err := protocol.ParseParams(msg.Data, &ready); err != nil {
					errCh <- fmt.Errorf("invalid ready message: %w", err)
					return
				}
				readyCh <- &ready
				return
			case protocol.MessageTypeError:
				var em protocol.ErrorMessage
				if err := protocol.ParseParams(msg.Data, &em); err != nil {
					errCh <- fmt.Errorf("daemon reported an unreadable error during startup: %w", err)
					return
				}
				errCh <- &DaemonError{
					Code:      em.Code,
					Message:   em.Message,
					Details:   em.Details,
					Retryable: em.Retryable,
				}
				return
			case protocol.MessageTypeExit:
				errCh <- fmt.Errorf("daemon exited before becoming ready")
				return
			default:
				// Ignore anything else sent before READY
				continue
			}
		}
	}()

	waitCtx, cancel := context.WithTimeout(ctx, h.startupTimeout)
	defer cancel()

	select {
	case ready := <-readyCh:
		h.mu.Lock()
		h.ready = ready
		h.mu.Unlock()
		h.logger.Info().
			Str("address", ready.Address).
			Str("protocol", ready.Protocol).
			Int("pid", ready.PID).
			Msg("Daemon ready")
		return nil
	case err := <-errCh:
		return err
	case <-waitCtx.Done():
		return fmt.Errorf("timeout waiting for daemon to become ready after %v", h.startupTimeout)
	}
}

// Ready returns the daemon's announcement, or nil before WaitReady succeeds.
func (h *ServiceHandle) Ready() *protocol.ReadyMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ready
}

// Address returns the Mercury address the daemon is listening on.
func (h *ServiceHandle) Address() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ready == nil {
		return ""
	}
	return h.ready.Address
}

// ConfigPath returns the path of the descriptor file the daemon was started
// with, if this handle was produced by a deployer.
func (h *ServiceHandle) ConfigPath() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.configPath
}

// PID returns the daemon's process id as reported in the ready message,
// or the spawned pid if the deployer recorded one.
func (h *ServiceHandle) PID() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ready != nil && h.ready.PID != 0 {
		return h.ready.PID
	}
	return h.pid
}

// call sends one request and waits for its DONE or ERROR response. The
// protocol is strictly request/response, so the handle serializes callers.
func (h *ServiceHandle) call(ctx context.Context, reqType protocol.RequestType, params any, result any) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return fmt.Errorf("handle is closed")
	}
	if h.ready == nil {
		return fmt.Errorf("daemon is not ready")
	}

	timeout := h.requestTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	data := json.RawMessage("{}")
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("failed to marshal request params: %w", err)
		}
		data = encoded
	}

	req := &protocol.RequestMessage{
		ID:      uuid.New().String(),
		Type:    reqType,
		Timeout: int(timeout.Seconds()),
		Params:  data,
	}

	h.logger.Debug().
		Str("request_id", req.ID).
		Str("type", string(reqType)).
		Msg("Sending request")

	if err := h.encoder.EncodeRequest(req); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := h.decoder.Decode()
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		switch msg.Type {
		case protocol.MessageTypeDone:
			var done protocol.DoneMessage
			if err := protocol.ParseParams(msg.Data, &done); err != nil {
				return fmt.Errorf("invalid done message: %w", err)
			}
			if done.RequestID != req.ID {
				return fmt.Errorf("response for unknown request %s (expected %s)", done.RequestID, req.ID)
			}
			if result != nil {
				if err := protocol.ParseParams(done.Result, result); err != nil {
					return fmt.Errorf("failed to parse result: %w", err)
				}
			}
			return nil

		case protocol.MessageTypeError:
			var em protocol.ErrorMessage
			if err := protocol.ParseParams(msg.Data, &em); err != nil {
				return fmt.Errorf("invalid error message: %w", err)
			}
			if em.RequestID != "" && em.RequestID != req.ID {
				return fmt.Errorf("error for unknown request %s (expected %s)", em.RequestID, req.ID)
			}
			return &DaemonError{
				RequestID: em.RequestID,
				Code:      em.Code,
				Message:   em.Message,
				Details:   em.Details,
				Retryable: em.Retryable,
			}

		case protocol.MessageTypeExit:
			var exit protocol.ExitMessage
			if err := protocol.ParseParams(msg.Data, &exit); err != nil {
				return fmt.Errorf("daemon exited during request")
			}
			return fmt.Errorf("daemon exited during request: %s", exit.Reason)

		default:
			return fmt.Errorf("unexpected message type during request: %s", msg.Type)
		}
	}
}

// GetConfig fetches the daemon's current descriptor and parses it.
func (h *ServiceHandle) GetConfig(ctx context.Context) (*spec.ProcSpec, error) {
	var result protocol.ConfigGetResult
	if err := h.call(ctx, protocol.RequestTypeConfigGet, nil, &result); err != nil {
		return nil, err
	}
	tree, err := spec.ParseProcSpec(result.Config)
	if err != nil {
		return nil, fmt.Errorf("daemon returned an unparseable configuration: %w", err)
	}
	return tree, nil
}

// QueryConfig runs a query script against the daemon's descriptor and
// returns the raw result.
func (h *ServiceHandle) QueryConfig(ctx context.Context, script string) (json.RawMessage, error) {
	params := &protocol.ConfigQueryParams{Script: script}
	var result protocol.ConfigQueryResult
	if err := h.call(ctx, protocol.RequestTypeConfigQuery, params, &result); err != nil {
		return nil, err
	}
	return result.Result, nil
}

// AddSSGGroup creates a new SSG group in the running daemon.
func (h *ServiceHandle) AddSSGGroup(ctx context.Context, group *spec.SSGSpec) error {
	doc, err := json.Marshal(group)
	if err != nil {
		return fmt.Errorf("failed to marshal group descriptor: %w", err)
	}
	params := &protocol.SSGAddGroupParams{Group: doc}
	var result protocol.SSGAddGroupResult
	return h.call(ctx, protocol.RequestTypeSSGAddGroup, params, &result)
}

// CreateAbtIOInstance creates a new ABT-IO instance in the running daemon.
func (h *ServiceHandle) CreateAbtIOInstance(ctx context.Context, name, pool string) error {
	params := &protocol.AbtIOCreateParams{Name: name, Pool: pool}
	var result protocol.AbtIOCreateResult
	return h.call(ctx, protocol.RequestTypeAbtIOCreate, params, &result)
}

// LoadModule loads a module library into the running daemon.
func (h *ServiceHandle) LoadModule(ctx context.Context, name, path string) error {
	params := &protocol.ModuleLoadParams{Name: name, Path: path}
	return h.call(ctx, protocol.RequestTypeModuleLoad, params, nil)
}

// StartProvider starts a provider in the running daemon.
func (h *ServiceHandle) StartProvider(ctx context.Context, pr *spec.ProviderSpec) error {
	deps, err := json.Marshal(pr.Dependencies())
	if err != nil {
		return fmt.Errorf("failed to marshal dependencies: %w", err)
	}
	params := &protocol.ProviderStartParams{
		Name:         pr.Name(),
		Type:         pr.Type(),
		ProviderID:   pr.ProviderID(),
		Pool:         pr.Pool,
		Config:       pr.Config,
		Dependencies: deps,
	}
	var result protocol.ProviderStartResult
	return h.call(ctx, protocol.RequestTypeProviderStart, params, &result)
}

// StartClient creates a client in the running daemon.
func (h *ServiceHandle) StartClient(ctx context.Context, c *spec.ClientSpec) error {
	deps, err := json.Marshal(c.Dependencies())
	if err != nil {
		return fmt.Errorf("failed to marshal dependencies: %w", err)
	}
	params := &protocol.ClientCreateParams{
		Name:         c.Name(),
		Type:         c.Type(),
		Config:       c.Config,
		Dependencies: deps,
	}
	var result protocol.ClientCreateResult
	return h.call(ctx, protocol.RequestTypeClientCreate, params, &result)
}

// Close shuts down the control channel. Closing the daemon's stdin tells it
// to finalize and exit.
func (h *ServiceHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	var firstErr error
	if err := h.writer.Close(); err != nil {
		firstErr = err
	}
	if err := h.reader.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	h.logger.Debug().Msg("Handle closed")
	return firstErr
}
