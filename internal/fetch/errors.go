package fetch

import (
	"errors"
	"fmt"
)

// Fetch failure sentinels. A *Failure unwraps to the sentinel of its kind,
// so callers can use errors.Is(err, fetch.ErrTimeout) and similar checks.
var (
	// ErrHTTPStatus is returned when the server answered with a 4xx or 5xx status.
	ErrHTTPStatus = errors.New("http error status")

	// ErrConnection is returned when no connection could be established or
	// it broke while reading the response (DNS, refused, reset, TLS).
	ErrConnection = errors.New("connection failed")

	// ErrTimeout is returned when the request did not complete within the timeout.
	ErrTimeout = errors.New("request timed out")

	// ErrOther is returned for every other failure, such as an unparsable URL.
	ErrOther = errors.New("request failed")

	// ErrInvalidProxy is returned by New when the proxy URL cannot be used.
	ErrInvalidProxy = errors.New("invalid proxy URL: expected http, https, socks5 or socks5h scheme with host:port")
)

// FailureKind categorizes why a fetch produced no content.
type FailureKind int

const (
	// FailureHTTPStatus indicates a response with status 400 or above.
	FailureHTTPStatus FailureKind = iota

	// FailureConnection indicates a transport-level failure.
	FailureConnection

	// FailureTimeout indicates the fetch timeout elapsed.
	FailureTimeout

	// FailureOther indicates any other failure.
	FailureOther
)

// String returns the metric label of the kind.
func (k FailureKind) String() string {
	switch k {
	case FailureHTTPStatus:
		return "http_status"
	case FailureConnection:
		return "connection"
	case FailureTimeout:
		return "timeout"
	case FailureOther:
		return "other"
	default:
		return "unknown"
	}
}

// Error returns the sentinel error for this kind.
func (k FailureKind) Error() error {
	switch k {
	case FailureHTTPStatus:
		return ErrHTTPStatus
	case FailureConnection:
		return ErrConnection
	case FailureTimeout:
		return ErrTimeout
	default:
		return ErrOther
	}
}

// Failure describes a fetch that produced no usable content.
type Failure struct {
	// Kind is the failure category.
	Kind FailureKind

	// URL is the requested URL.
	URL string

	// StatusCode is set for FailureHTTPStatus.
	StatusCode int

	// Err is the underlying cause, nil for FailureHTTPStatus.
	Err error
}

// Error implements error.
func (f *Failure) Error() string {
	if f.Kind == FailureHTTPStatus {
		return fmt.Sprintf("fetch %s: %v: %d", f.URL, f.Kind.Error(), f.StatusCode)
	}
	if f.Err == nil {
		return fmt.Sprintf("fetch %s: %v", f.URL, f.Kind.Error())
	}
	return fmt.Sprintf("fetch %s: %v: %v", f.URL, f.Kind.Error(), f.Err)
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (f *Failure) Unwrap() []error {
	if f.Err == nil {
		return []error{f.Kind.Error()}
	}
	return []error{f.Kind.Error(), f.Err}
}

// AsFailure extracts a *Failure from err. Errors that are not failures are
// reported as FailureOther so callers always get a category.
func AsFailure(err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{Kind: FailureOther, Err: err}
}
