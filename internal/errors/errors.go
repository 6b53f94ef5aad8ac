// Package errors provides the structured error taxonomy used across
// folder-mcp: InvalidInput, NotFound, ParseError, ModelError, StoreError,
// Cancelled, and Internal. Each error carries the machine-readable token the
// MCP endpoint layer puts in status.message.
package errors

import "fmt"

// Kind classifies an error for propagation and retry policy decisions.
type Kind string

const (
	KindInvalidInput Kind = "InvalidInput"
	KindNotFound      Kind = "NotFound"
	KindParseError    Kind = "ParseError"
	KindModelError    Kind = "ModelError"
	KindStoreError    Kind = "StoreError"
	KindCancelled     Kind = "Cancelled"
	KindInternal      Kind = "Internal"
)

// Token is the short machine-readable string surfaced in MCP responses.
type Token string

const (
	TokenInvalidArgument      Token = "INVALID_ARGUMENT"
	TokenNotFound             Token = "NOT_FOUND"
	TokenTokenLimitExceeded   Token = "TOKEN_LIMIT_EXCEEDED_BUT_INCLUDED"
	TokenParseFailed          Token = "PARSE_FAILED"
	TokenStoreUnavailable     Token = "STORE_UNAVAILABLE"
	TokenModelUnavailable     Token = "MODEL_UNAVAILABLE"
	TokenCancelled            Token = "CANCELLED"
	TokenInternal             Token = "INTERNAL"
)

// Error is the structured error type used throughout folder-mcp.
type Error struct {
	Kind      Kind
	Token     Token
	Message   string
	Details   map[string]string
	Cause     error
	Retryable bool
	// Busy marks a StoreError as the StoreBusy subclass (§7): retryable
	// locally with bounded backoff before being surfaced.
	Busy bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Token, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on Kind+Token so errors.Is works across wrap/rewrap.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Token == t.Token
}

// WithDetail attaches a key/value debugging detail and returns the error.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

func newErr(kind Kind, token Token, retryable bool, message string, cause error) *Error {
	return &Error{Kind: kind, Token: token, Message: message, Cause: cause, Retryable: retryable}
}

// InvalidInput builds a non-retryable InvalidInput error (bad request shape,
// unsupported format, malformed range grammar).
func InvalidInput(message string) *Error {
	return newErr(KindInvalidInput, TokenInvalidArgument, false, message, nil)
}

// NotFound builds a non-retryable NotFound error (unknown document/folder id).
func NotFound(message string) *Error {
	return newErr(KindNotFound, TokenNotFound, false, message, nil)
}

// ParseFailed builds a non-fatal ParseError attached to a single document.
func ParseFailed(message string, cause error) *Error {
	return newErr(KindParseError, TokenParseFailed, false, message, cause)
}

// ModelError builds a ModelError. Retryable distinguishes transient
// failures (timeouts) from permanent ones (auth, dimension mismatch).
func ModelError(message string, retryable bool, cause error) *Error {
	return newErr(KindModelError, TokenModelUnavailable, retryable, message, cause)
}

// StoreErr builds a StoreError. busy marks the retryable StoreBusy
// subclass (lock contention, WAL checkpoint in progress).
func StoreErr(message string, busy bool, cause error) *Error {
	e := newErr(KindStoreError, TokenStoreUnavailable, busy, message, cause)
	e.Busy = busy
	return e
}

// Cancelled builds a Cancelled error from cooperative cancellation.
func Cancelled(message string) *Error {
	return newErr(KindCancelled, TokenCancelled, false, message, nil)
}

// Internal builds an Internal error: invariant violation, always logged
// with context by the caller before being surfaced generically.
func Internal(message string, cause error) *Error {
	return newErr(KindInternal, TokenInternal, false, message, cause)
}

// As extracts *Error from err, following Unwrap chains.
func As(err error) (*Error, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}

// IsRetryable reports whether err (or a wrapped *Error) is retryable.
func IsRetryable(err error) bool {
	e, ok := As(err)
	return ok && e.Retryable
}

// IsBusy reports whether err is the StoreBusy subclass.
func IsBusy(err error) bool {
	e, ok := As(err)
	return ok && e.Kind == KindStoreError && e.Busy
}

// TokenOf returns the MCP status.message token for err, defaulting to
// INTERNAL for unrecognized errors.
func TokenOf(err error) Token {
	if e, ok := As(err); ok {
		return e.Token
	}
	return TokenInternal
}
