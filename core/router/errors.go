package router

import (
	"errors"
	"fmt"
	stdhttp "net/http"
)

// Continuation signals. Passing one of these to next is not an error.
var (
	// SkipRoute skips the remaining handlers registered in the same call.
	SkipRoute = errors.New("route")
	// SkipRouter skips the remaining entries of the current router.
	SkipRouter = errors.New("router")
)

// HTTPError is an error that carries the response status to use when no
// error handler takes over.
type HTTPError struct {
	Status  int
	Message string
	Err     error
}

// NewHTTPError creates an HTTPError. An empty message uses the status text.
func NewHTTPError(status int, message string) *HTTPError {
	if message == "" {
		message = stdhttp.StatusText(status)
	}
	return &HTTPError{Status: status, Message: message}
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error { return e.Err }

// Wrap returns a copy of e that wraps err.
func (e *HTTPError) Wrap(err error) *HTTPError {
	return &HTTPError{Status: e.Status, Message: e.Message, Err: err}
}

// Common HTTP errors.
var (
	ErrBadRequest   = NewHTTPError(stdhttp.StatusBadRequest, "")
	ErrUnauthorized = NewHTTPError(stdhttp.StatusUnauthorized, "")
	ErrForbidden    = NewHTTPError(stdhttp.StatusForbidden, "")
	ErrNotFound     = NewHTTPError(stdhttp.StatusNotFound, "")
)

// statusOf returns the status carried by err, or 500.
func statusOf(err error) int {
	var he *HTTPError
	if errors.As(err, &he) && he.Status >= 400 {
		return he.Status
	}
	return stdhttp.StatusInternalServerError
}

// panicError converts a recovered value into an error.
func panicError(v any) error {
	if err, ok := v.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", v)
}
