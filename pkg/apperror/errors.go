// Package apperror defines the error kinds shared by every service and the
// HTTP status each kind maps to.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers and for the HTTP layer.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindAuth
	KindForbidden
	KindRateLimit
	KindTransport
	KindHandler
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindAuth:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindRateLimit:
		return "rate_limit_exceeded"
	case KindTransport:
		return "transport_error"
	case KindHandler:
		return "handler_error"
	default:
		return "internal_error"
	}
}

// Error is the error type returned across package boundaries.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind, so that
// errors.Is(err, apperror.ErrNotFound) works for any not-found error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Kind sentinels for errors.Is.
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrConflict   = &Error{Kind: KindConflict}
	ErrAuth       = &Error{Kind: KindAuth}
	ErrForbidden  = &Error{Kind: KindForbidden}
	ErrRateLimit  = &Error{Kind: KindRateLimit}
	ErrTransport  = &Error{Kind: KindTransport}
	ErrHandler    = &Error{Kind: KindHandler}
)

func Validation(op, message string) error {
	return &Error{Kind: KindValidation, Op: op, Message: message}
}

func NotFound(op, message string) error {
	return &Error{Kind: KindNotFound, Op: op, Message: message}
}

func Conflict(op, message string) error {
	return &Error{Kind: KindConflict, Op: op, Message: message}
}

func Auth(op, message string, err error) error {
	return &Error{Kind: KindAuth, Op: op, Message: message, Err: err}
}

func RateLimited(op, message string) error {
	return &Error{Kind: KindRateLimit, Op: op, Message: message}
}

// Transport wraps a failure to reach the bus, the cache or another service.
func Transport(op string, err error) error {
	return &Error{Kind: KindTransport, Op: op, Err: err}
}

// Handler wraps a consumer's failure to process one event.
func Handler(op string, err error) error {
	return &Error{Kind: KindHandler, Op: op, Err: err}
}

func Internal(op string, err error) error {
	return &Error{Kind: KindInternal, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps err to the status code returned to callers.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindTransport:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to show to a caller. Internal and
// transport details are not exposed.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		switch e.Kind {
		case KindInternal, KindTransport, KindHandler:
		default:
			return e.Message
		}
	}
	return http.StatusText(HTTPStatus(err))
}
