package spec

import (
	"errors"
	"fmt"
)

// Kind classifies a validation failure. Every error returned by this
// package carries exactly one kind, so callers can branch on the
// failure class without parsing messages.
type Kind string

const (
	// KindDuplicateName indicates an attempt to add an entry whose
	// name is already present in the target collection.
	KindDuplicateName Kind = "duplicate_name"

	// KindNotFound indicates a lookup for a name or index with no
	// corresponding entry.
	KindNotFound Kind = "not_found"

	// KindUnknownPoolReference indicates a reference to an Argobots
	// pool that does not exist at the time of the operation.
	KindUnknownPoolReference Kind = "unknown_pool_reference"

	// KindInvalidDependencyExpression indicates a dependency string
	// that matches none of the recognized expression shapes.
	KindInvalidDependencyExpression Kind = "invalid_dependency_expression"

	// KindDuplicateProviderID indicates a provider whose
	// (type, provider id) pair collides with an existing provider.
	KindDuplicateProviderID Kind = "duplicate_provider_id"

	// KindInvalidValue indicates a field holding a value outside its
	// allowed set or range.
	KindInvalidValue Kind = "invalid_value"

	// KindSchemaError indicates a document that violates the wire
	// schema: missing required fields, wrong types, or unknown keys.
	KindSchemaError Kind = "schema_error"
)

// Error is the validation error type returned by all operations in
// this package.
type Error struct {
	// Kind is the failure classification.
	Kind Kind

	// Field names the offending field or document path, when known.
	Field string

	// Value is the offending value rendered as a string, when known.
	Value string

	// Message is the human-readable description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	switch {
	case e.Field != "" && e.Value != "":
		msg += fmt.Sprintf(" (field=%s, value=%q)", e.Field, e.Value)
	case e.Field != "":
		msg += fmt.Sprintf(" (field=%s)", e.Field)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newError(kind Kind, field, value, message string) *Error {
	return &Error{Kind: kind, Field: field, Value: value, Message: message}
}

func schemaError(field, message string, err error) *Error {
	return &Error{Kind: KindSchemaError, Field: field, Message: message, Err: err}
}

func isKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsDuplicateName reports whether err is a duplicate-name error.
func IsDuplicateName(err error) bool {
	return isKind(err, KindDuplicateName)
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return isKind(err, KindNotFound)
}

// IsUnknownPoolReference reports whether err is an unknown-pool error.
func IsUnknownPoolReference(err error) bool {
	return isKind(err, KindUnknownPoolReference)
}

// IsInvalidDependencyExpression reports whether err is a malformed
// dependency expression error.
func IsInvalidDependencyExpression(err error) bool {
	return isKind(err, KindInvalidDependencyExpression)
}

// IsDuplicateProviderID reports whether err is a conflicting provider
// id error.
func IsDuplicateProviderID(err error) bool {
	return isKind(err, KindDuplicateProviderID)
}

// IsInvalidValue reports whether err is an out-of-range or
// out-of-set value error.
func IsInvalidValue(err error) bool {
	return isKind(err, KindInvalidValue)
}

// IsSchemaError reports whether err is a wire schema violation.
func IsSchemaError(err error) bool {
	return isKind(err, KindSchemaError)
}
