package service

import (
	"errors"
	"fmt"
)

// DaemonError is a failure reported by the daemon itself, as opposed to a
// transport or protocol failure on the way there.
type DaemonError struct {
	// RequestID is the id of the request that failed, if any
	RequestID string
	// Code is a stable machine-readable error code
	Code string
	// Message is the human-readable error description
	Message string
	// Details carries optional daemon-provided context
	Details map[string]string
	// Retryable indicates whether the same request may succeed later
	Retryable bool
}

// Error implements the error interface
func (e *DaemonError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("daemon error [%s]: %s (request %s)", e.Code, e.Message, e.RequestID)
	}
	return fmt.Sprintf("daemon error [%s]: %s", e.Code, e.Message)
}

// IsRetryable reports whether err is a daemon error marked retryable
func IsRetryable(err error) bool {
	var de *DaemonError
	return errors.As(err, &de) && de.Retryable
}
