package onboarding

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed operation against the upstream backend.
type Kind int

const (
	// KindValidation covers malformed requests, bad step data and
	// upstream responses with an unexpected shape.
	KindValidation Kind = iota
	// KindAuth covers missing or rejected credentials.
	KindAuth
	// KindForbidden covers credentials without access to the tenant.
	KindForbidden
	// KindNotFound covers operations against an uninitialized tenant.
	KindNotFound
	// KindConflict covers business-rule rejections, e.g. re-completing
	// a finished onboarding.
	KindConflict
	// KindRateLimit means the upstream asked us to back off.
	KindRateLimit
	// KindUpstream covers 5xx responses from the backend.
	KindUpstream
	// KindConnectivity covers network failures and timeouts.
	KindConnectivity
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimit:
		return "rate_limit"
	case KindUpstream:
		return "upstream"
	case KindConnectivity:
		return "connectivity"
	default:
		return "unknown"
	}
}

// Error is the domain error surfaced by the operation service. The
// message is always safe to show to the gateway's own caller; raw
// upstream bodies and stack traces never pass through.
type Error struct {
	Kind    Kind
	Message string
	// UpstreamStatus is the HTTP status the backend answered with,
	// 0 for transport-level failures.
	UpstreamStatus int
}

func (e *Error) Error() string {
	return e.Message
}

// HTTPStatus maps the error to the status this gateway returns to its
// own caller. The original upstream status wins where one exists.
func (e *Error) HTTPStatus() int {
	if e.UpstreamStatus >= 400 && e.UpstreamStatus < 600 {
		return e.UpstreamStatus
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindConnectivity:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the caller may safely retry, optionally
// with an idempotency key.
func (e *Error) Retryable() bool {
	return e.Kind == KindConnectivity || e.Kind == KindRateLimit || e.Kind == KindUpstream
}

// Errorf builds a domain error with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// classifyStatus maps an upstream HTTP status to an error kind.
// Unlisted statuses split on the 5xx boundary so a client error is
// never reported, or retried, as a backend failure.
func classifyStatus(status int) Kind {
	switch {
	case status == http.StatusBadRequest:
		return KindValidation
	case status == http.StatusUnauthorized:
		return KindAuth
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status >= 500:
		return KindUpstream
	default:
		return KindValidation
	}
}

// FromStatus builds a domain error from an upstream HTTP status and a
// normalized message.
func FromStatus(status int, message string) *Error {
	return &Error{Kind: classifyStatus(status), Message: message, UpstreamStatus: status}
}

// AsError extracts a domain error, wrapping unclassified failures as
// connectivity errors so callers always see the taxonomy.
func AsError(err error) *Error {
	var oe *Error
	if errors.As(err, &oe) {
		return oe
	}
	return &Error{Kind: KindConnectivity, Message: err.Error()}
}
