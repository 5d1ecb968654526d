package statsig

import (
	"errors"
	"fmt"
)

// Kind classifies an [Error].
type Kind int

const (
	// KindValidation is returned for bad caller input. It is never retried.
	KindValidation Kind = iota + 1
	// KindNetwork is returned for transport-level failures.
	KindNetwork
	// KindAPI is returned for non-2xx responses other than 401 and 429.
	KindAPI
	// KindUnauthorized is returned when the server rejects the API key.
	KindUnauthorized
	// KindRateLimited is returned when the server keeps answering 429.
	KindRateLimited
	// KindSerialization is returned when a request or response body cannot be (de)coded.
	KindSerialization
	// KindConfiguration is returned by [NewFromConfig] for an invalid [Config].
	KindConfiguration
	// KindBatchProcessor is returned when the background batcher is unavailable.
	KindBatchProcessor
	// KindUserValidation is returned when a [User] fails validation.
	KindUserValidation
	// KindInternal signals a broken invariant inside the client.
	KindInternal
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNetwork:
		return "network"
	case KindAPI:
		return "api"
	case KindUnauthorized:
		return "unauthorized"
	case KindRateLimited:
		return "rate_limited"
	case KindSerialization:
		return "serialization"
	case KindConfiguration:
		return "configuration"
	case KindBatchProcessor:
		return "batch_processor"
	case KindUserValidation:
		return "user_validation"
	case KindInternal:
		return "internal"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the error type returned by every exported operation of this package.
//
// Use [errors.Is] with the Err* sentinels to match on the kind:
//
//	if errors.Is(err, statsig.ErrRateLimited) { ... }
type Error struct {
	Kind Kind
	// Status is the HTTP status code for KindAPI errors.
	Status int
	// RetryAfterSeconds is set for KindRateLimited errors.
	RetryAfterSeconds uint64
	Message           string
	// Err is the underlying cause, if any.
	Err error
}

// Sentinels for use with errors.Is.
var (
	ErrValidation     = &Error{Kind: KindValidation}
	ErrNetwork        = &Error{Kind: KindNetwork}
	ErrAPI            = &Error{Kind: KindAPI}
	ErrUnauthorized   = &Error{Kind: KindUnauthorized}
	ErrRateLimited    = &Error{Kind: KindRateLimited}
	ErrSerialization  = &Error{Kind: KindSerialization}
	ErrConfiguration  = &Error{Kind: KindConfiguration}
	ErrBatchProcessor = &Error{Kind: KindBatchProcessor}
	ErrUserValidation = &Error{Kind: KindUserValidation}
	ErrInternal       = &Error{Kind: KindInternal}
)

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Message: err.Error(), Err: err}
}

func apiError(status int, body string) *Error {
	return &Error{Kind: KindAPI, Status: status, Message: body}
}

func rateLimitedError(retryAfterSeconds uint64) *Error {
	return &Error{Kind: KindRateLimited, RetryAfterSeconds: retryAfterSeconds}
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch e.Kind {
	case KindAPI:
		return fmt.Sprintf("API error: %d - %s", e.Status, e.Message)
	case KindNetwork:
		return "Network error: " + e.Message
	case KindSerialization:
		return "Serialization error: " + e.Message
	case KindValidation:
		return "Validation error: " + e.Message
	case KindConfiguration:
		return "Invalid configuration: " + e.Message
	case KindBatchProcessor:
		return "Batch processor error: " + e.Message
	case KindRateLimited:
		return fmt.Sprintf("Rate limited: retry after %d seconds", e.RetryAfterSeconds)
	case KindUnauthorized:
		return "Unauthorized: invalid API key"
	case KindUserValidation:
		return "User validation error: " + e.Message
	case KindInternal:
		return "Internal error: " + e.Message
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// WithContext returns a copy of the error whose message is prefixed with context.
// The kind is preserved. Rate-limit and unauthorized errors carry no message
// and are returned unchanged.
func (e *Error) WithContext(context string) *Error {
	if e.Kind == KindRateLimited || e.Kind == KindUnauthorized {
		return e
	}
	annotated := *e
	annotated.Message = context + ": " + e.Message
	return &annotated
}

// IsRetryable reports whether a caller may reasonably try the operation again.
func (e *Error) IsRetryable() bool {
	switch e.Kind {
	case KindNetwork, KindRateLimited:
		return true
	case KindAPI:
		return e.Status == 429 || (e.Status >= 500 && e.Status <= 599)
	}
	return false
}

// RetryAfter returns the number of seconds the server asked the caller to wait.
func (e *Error) RetryAfter() (uint64, bool) {
	switch {
	case e.Kind == KindRateLimited:
		return e.RetryAfterSeconds, true
	case e.Kind == KindAPI && e.Status == 429:
		return defaultRetryAfterSeconds, true
	}
	return 0, false
}

func (e *Error) clone() *Error {
	c := *e
	return &c
}

// cloneError copies err for delivery to one of several waiting callers.
func cloneError(err error) error {
	var statsigErr *Error
	if errors.As(err, &statsigErr) {
		return statsigErr.clone()
	}
	return err
}
