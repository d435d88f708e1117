package provider

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnavailable = errors.New("provider.errors.unavailable")
	ErrTimeout     = errors.New("provider.errors.timeout")
	ErrSubmit      = errors.New("provider.errors.submit_failed")
	ErrCircuitOpen = errors.New("provider.errors.circuit_open")
	ErrUnknownKind = errors.New("provider.errors.unknown_kind")
	ErrRemoteJob   = errors.New("provider.errors.remote_job_failed")
)

// ErrorKind classifies provider failures for the dispatcher.
type ErrorKind string

const (
	ProviderUnavailable ErrorKind = "provider_unavailable"
	Timeout             ErrorKind = "timeout"
	SubmitError         ErrorKind = "submit_error"
)

// Error is the only error type a Client returns. Raw transport errors are
// kept as Cause and never returned on their own.
type Error struct {
	Kind    ErrorKind
	Backend Backend
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Backend, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Backend, e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches the sentinel for the error kind.
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case ProviderUnavailable:
		return target == ErrUnavailable
	case Timeout:
		return target == ErrTimeout
	case SubmitError:
		return target == ErrSubmit
	}
	return false
}

func Unavailable(b Backend, cause error) *Error {
	return &Error{Kind: ProviderUnavailable, Backend: b, Cause: cause}
}

func TimedOut(b Backend, cause error) *Error {
	return &Error{Kind: Timeout, Backend: b, Cause: cause}
}

func SubmitFailed(b Backend, cause error) *Error {
	return &Error{Kind: SubmitError, Backend: b, Cause: cause}
}

// AsError extracts a *Error, wrapping anything else as ProviderUnavailable.
func AsError(b Backend, err error) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return Unavailable(b, err)
}

// HTTPStatusError records a non-success HTTP response.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// ClassifyStatus maps an HTTP status to an error kind. Client errors other
// than timeouts and rate limits are the request's fault and become SubmitError.
func ClassifyStatus(b Backend, status int, body string) *Error {
	cause := &HTTPStatusError{StatusCode: status, Body: body}
	if status >= 400 && status < 500 && status != http.StatusRequestTimeout && status != http.StatusTooManyRequests {
		return SubmitFailed(b, cause)
	}
	return Unavailable(b, cause)
}
