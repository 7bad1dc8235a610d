package errors

import (
	"errors"
	"fmt"
)

// Kind classifies the failures a remote call can produce. Callers switch on
// the kind instead of matching substrings of error messages.
type Kind string

const (
	KindNetwork    Kind = "network"
	KindRateLimit  Kind = "rate_limit"
	KindAuth       Kind = "auth"
	KindPermission Kind = "permission"
	KindParse      Kind = "parse"
	KindServer     Kind = "server"
	KindUnknown    Kind = "unknown"
)

// Error is a typed API error. Code carries the HTTP status or the remote
// base_resp.ret value, whichever produced the error.
type Error struct {
	Kind    Kind
	Message string
	Code    int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error (code %d): %s", e.Kind, e.Code, e.Message)
}

// New creates a typed error.
func New(kind Kind, code int, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	}
}

// KindOf extracts the kind from an error chain. Errors that are not *Error
// report KindUnknown.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsRateLimit reports whether the error signals remote throttling. The rate
// limiter feeds this back into its adaptive controller.
func IsRateLimit(err error) bool { return Is(err, KindRateLimit) }

// IsAuth reports whether the error means "must re-login".
func IsAuth(err error) bool { return Is(err, KindAuth) }

// IsPermission reports whether the error means the account is off limits.
func IsPermission(err error) bool { return Is(err, KindPermission) }

// IsRetryable reports whether an error is worth retrying at the transport
// level. Rate-limit errors are deliberately excluded: the limiter already
// slows the session down, and the caller decides whether to try again.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindServer:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode reports whether an HTTP status code indicates a
// retryable failure.
func IsRetryableStatusCode(statusCode int) bool {
	switch {
	case statusCode == 0: // transport failure before any response
		return true
	case statusCode >= 500:
		return true
	default:
		return false
	}
}
