package llm

import (
	"errors"
	"fmt"
)

// Code is the closed set of error codes surfaced by this library.
// Modeling codes as a dedicated type rather than ad hoc strings lets
// callers handle them exhaustively.
type Code string

const (
	CodeProviderNotFound         Code = "PROVIDER_NOT_FOUND"
	CodeDuplicateProvider        Code = "DUPLICATE_PROVIDER"
	CodeInvalidProviderID        Code = "INVALID_PROVIDER_ID"
	CodeNoProviderWithCapability Code = "NO_PROVIDER_WITH_CAPABILITY"
	CodeConversationNotFound     Code = "CONVERSATION_NOT_FOUND"
	CodeHealthCheckFailed        Code = "HEALTH_CHECK_FAILED"
	CodeHealthCheckTimeout       Code = "HEALTH_CHECK_TIMEOUT"
	CodeAuthError                Code = "AUTH_ERROR"
	CodeTransientError           Code = "TRANSIENT_ERROR"
)

// Error is a coded error with optional provider context.
type Error struct {
	// Code classifies the failure.
	Code Code

	// Provider is the id of the provider involved, if any.
	Provider string

	// Message is a human-readable description.
	Message string

	// Err is the wrapped cause, if any.
	Err error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s (provider: %s)", e.Code, msg, e.Provider)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Errf constructs a coded error with a formatted message.
func Errf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the error code from err, unwrapping as needed.
// It returns "" for nil errors and errors without a code.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Sentinel errors shared across providers. Providers wrap these so the
// health checker can classify probe failures without vendor knowledge.
var (
	// ErrProviderUnavailable indicates the provider is not reachable.
	// Treated as a transient failure.
	ErrProviderUnavailable = errors.New("provider is not reachable")

	// ErrAuthentication indicates the provider rejected the credentials.
	ErrAuthentication = errors.New("provider rejected credentials")

	// ErrModelNotFound indicates the requested model is not available.
	ErrModelNotFound = errors.New("requested model is not available")

	// ErrUnsupported indicates the provider does not implement the
	// requested operation.
	ErrUnsupported = errors.New("operation not supported by provider")

	// ErrStreamClosed indicates the stream was closed unexpectedly.
	ErrStreamClosed = errors.New("stream was closed unexpectedly")
)
