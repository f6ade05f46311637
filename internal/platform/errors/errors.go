package errors

import (
	"errors"
	"maps"
)

// Domain scopes ErrorInfo reasons to this module.
const Domain = "github.com/louisbranch/assetflow"

// MetadataRetryable marks errors the caller may retry unchanged.
const MetadataRetryable = "retryable"

// Error is a coded failure. Message is for logs. Metadata feeds the
// localized user message and the ErrorInfo detail.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error with the same code, so errors.Is(err,
// New(CodeNotFound, "")) works regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

// Retryable reports whether the error carries retryable=true.
func (e *Error) Retryable() bool {
	return e != nil && e.Metadata[MetadataRetryable] == "true"
}

// New returns an error with code and message.
func New(code Code, message string) *Error {
	return WrapWithMetadata(code, message, nil, nil)
}

// WithMetadata returns an error carrying template metadata.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return WrapWithMetadata(code, message, metadata, nil)
}

// Wrap returns an error that unwraps to cause.
func Wrap(code Code, message string, cause error) *Error {
	return WrapWithMetadata(code, message, nil, cause)
}

// WrapWithMetadata returns an error with metadata that unwraps to cause.
// The metadata map is copied.
func WrapWithMetadata(code Code, message string, metadata map[string]string, cause error) *Error {
	return &Error{Code: code, Message: message, Metadata: maps.Clone(metadata), Cause: cause}
}

func asError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// GetCode returns the code of the first *Error in err's chain, or
// CodeUnknown.
func GetCode(err error) Code {
	if e, ok := asError(err); ok {
		return e.Code
	}
	return CodeUnknown
}

// IsCode reports whether err carries code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

// IsRetryable reports whether err carries the retryable marker.
func IsRetryable(err error) bool {
	e, ok := asError(err)
	return ok && e.Retryable()
}

// GetMetadata returns the metadata of the first *Error in err's chain.
func GetMetadata(err error) map[string]string {
	if e, ok := asError(err); ok {
		return e.Metadata
	}
	return nil
}
