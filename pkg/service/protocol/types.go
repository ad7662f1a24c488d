// Package protocol defines the newline-delimited JSON control protocol
// spoken between a Bedrock daemon and its deployment clients.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType represents the type of message in the protocol.
type MessageType string

const (
	// MessageTypeReady indicates the daemon is up and accepting requests
	MessageTypeReady MessageType = "READY"
	// MessageTypeRequest indicates a control request from a client
	MessageTypeRequest MessageType = "REQ"
	// MessageTypeDone indicates successful completion of a request
	MessageTypeDone MessageType = "DONE"
	// MessageTypeError indicates a request failed
	MessageTypeError MessageType = "ERROR"
	// MessageTypeExit indicates the daemon is shutting down
	MessageTypeExit MessageType = "EXIT"
)

// RequestType represents the control operation being requested.
type RequestType string

const (
	// RequestTypeConfigGet fetches the daemon's current descriptor
	RequestTypeConfigGet RequestType = "config.get"
	// RequestTypeConfigQuery runs a script against the descriptor
	RequestTypeConfigQuery RequestType = "config.query"
	// RequestTypeSSGAddGroup registers a new SSG group membership
	RequestTypeSSGAddGroup RequestType = "ssg.add_group"
	// RequestTypeAbtIOCreate instantiates an ABT-IO instance
	RequestTypeAbtIOCreate RequestType = "abtio.create"
	// RequestTypeModuleLoad loads a module library by path
	RequestTypeModuleLoad RequestType = "module.load"
	// RequestTypeProviderStart starts a provider
	RequestTypeProviderStart RequestType = "provider.start"
	// RequestTypeClientCreate creates a named client
	RequestTypeClientCreate RequestType = "client.create"
)

// Error codes reported in ErrorMessage.Code.
const (
	// ErrCodeInvalidRequest indicates a malformed or unknown request
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	// ErrCodeInvalidConfig indicates a descriptor the daemon rejected
	ErrCodeInvalidConfig = "INVALID_CONFIG"
	// ErrCodeUnknownModule indicates a module type with no loaded library
	ErrCodeUnknownModule = "UNKNOWN_MODULE"
	// ErrCodeDuplicate indicates a name or provider id collision
	ErrCodeDuplicate = "DUPLICATE"
	// ErrCodeScript indicates a query script failure
	ErrCodeScript = "SCRIPT_ERROR"
	// ErrCodeInternal indicates an unexpected daemon-side failure
	ErrCodeInternal = "INTERNAL"
)

// Message is the base message structure for all protocol messages.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ReadyMessage is sent once by the daemon after its Margo instance is
// initialized.
type ReadyMessage struct {
	Version  string            `json:"version"`
	Address  string            `json:"address"`
	Protocol string            `json:"protocol"`
	PID      int               `json:"pid"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// RequestMessage contains one control request.
type RequestMessage struct {
	ID      string          `json:"id"`
	Type    RequestType     `json:"type"`
	Timeout int             `json:"timeout"` // seconds
	Params  json.RawMessage `json:"params"`
}

// DoneMessage indicates successful request completion.
type DoneMessage struct {
	RequestID string          `json:"request_id"`
	Result    json.RawMessage `json:"result"`
	Duration  float64         `json:"duration"` // seconds
}

// ErrorMessage indicates a request failed.
type ErrorMessage struct {
	RequestID string            `json:"request_id,omitempty"`
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
	Retryable bool              `json:"retryable"`
}

// ExitMessage is sent before the daemon terminates.
type ExitMessage struct {
	Reason        string `json:"reason"`
	ExitCode      int    `json:"exit_code"`
	RequestsTotal int    `json:"requests_total"`
}

// Request parameter structures for each request type

// ConfigGetParams contains parameters for fetching the descriptor.
// The daemon returns the full current configuration document.
type ConfigGetParams struct{}

// ConfigGetResult contains the daemon's current descriptor document.
type ConfigGetResult struct {
	Config json.RawMessage `json:"config"`
}

// ConfigQueryParams contains a script evaluated against the
// descriptor on the daemon side.
type ConfigQueryParams struct {
	Script string `json:"script"`
}

// ConfigQueryResult contains the value produced by the script.
type ConfigQueryResult struct {
	Result json.RawMessage `json:"result"`
}

// SSGAddGroupParams contains the wire form of one SSG group.
type SSGAddGroupParams struct {
	Group json.RawMessage `json:"group"`
}

// SSGAddGroupResult reports the registered group.
type SSGAddGroupResult struct {
	Name string `json:"name"`
}

// AbtIOCreateParams contains parameters for creating an ABT-IO
// instance.
type AbtIOCreateParams struct {
	Name   string          `json:"name"`
	Pool   string          `json:"pool"`
	Config json.RawMessage `json:"config"`
}

// AbtIOCreateResult reports the created instance.
type AbtIOCreateResult struct {
	Name string `json:"name"`
}

// ModuleLoadParams contains parameters for loading a module library.
type ModuleLoadParams struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// ModuleLoadResult reports the loaded module.
type ModuleLoadResult struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// ProviderStartParams contains parameters for starting a provider.
type ProviderStartParams struct {
	Name         string          `json:"name"`
	Type         string          `json:"type"`
	ProviderID   uint16          `json:"provider_id"`
	Pool         string          `json:"pool,omitempty"`
	Config       json.RawMessage `json:"config,omitempty"`
	Dependencies json.RawMessage `json:"dependencies,omitempty"`
}

// ProviderStartResult reports the started provider.
type ProviderStartResult struct {
	Name       string `json:"name"`
	ProviderID uint16 `json:"provider_id"`
}

// ClientCreateParams contains parameters for creating a named client.
type ClientCreateParams struct {
	Name         string          `json:"name"`
	Type         string          `json:"type"`
	Config       json.RawMessage `json:"config,omitempty"`
	Dependencies json.RawMessage `json:"dependencies,omitempty"`
}

// ClientCreateResult reports the created client.
type ClientCreateResult struct {
	Name string `json:"name"`
}

// Validation methods

// Validate checks if the message type is valid.
func (mt MessageType) Validate() error {
	switch mt {
	case MessageTypeReady, MessageTypeRequest, MessageTypeDone,
		MessageTypeError, MessageTypeExit:
		return nil
	default:
		return fmt.Errorf("invalid message type: %s", mt)
	}
}

// Validate checks if the request type is valid.
func (rt RequestType) Validate() error {
	switch rt {
	case RequestTypeConfigGet, RequestTypeConfigQuery,
		RequestTypeSSGAddGroup, RequestTypeAbtIOCreate,
		RequestTypeModuleLoad, RequestTypeProviderStart,
		RequestTypeClientCreate:
		return nil
	default:
		return fmt.Errorf("invalid request type: %s", rt)
	}
}

// Validate checks if the request message is valid.
func (r *RequestMessage) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("request ID is required")
	}
	if err := r.Type.Validate(); err != nil {
		return err
	}
	if r.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if len(r.Params) == 0 {
		return fmt.Errorf("request params are required")
	}
	return nil
}
