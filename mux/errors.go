package mux

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// HTTPError is an error that carries an HTTP status code. Returning one
// from an Endpoint renders that status unless an error handler takes over.
type HTTPError struct {
	// Code is the HTTP status code.
	Code int

	// Detail is the message sent to the client. Empty means the status text.
	Detail string

	// Headers are copied to the response when the error is rendered.
	Headers http.Header

	// Err is the underlying cause, never sent to the client.
	Err error
}

// NewHTTPError returns an HTTPError for code. Detail defaults to the
// status text.
func NewHTTPError(code int, detail string) *HTTPError {
	return &HTTPError{Code: code, Detail: detail}
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Code, e.detail(), e.Err)
	}
	return fmt.Sprintf("%d %s", e.Code, e.detail())
}

// Unwrap returns the underlying cause.
func (e *HTTPError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status code.
func (e *HTTPError) StatusCode() int {
	return e.Code
}

// WithHeader returns a copy of e with the header set.
func (e *HTTPError) WithHeader(key, value string) *HTTPError {
	c := *e
	c.Headers = e.Headers.Clone()
	if c.Headers == nil {
		c.Headers = make(http.Header)
	}
	c.Headers.Set(key, value)
	return &c
}

// Wrap returns a copy of e with err as the cause.
func (e *HTTPError) Wrap(err error) *HTTPError {
	c := *e
	c.Err = err
	return &c
}

func (e *HTTPError) detail() string {
	if e.Detail != "" {
		return e.Detail
	}
	if text := http.StatusText(e.Code); text != "" {
		return text
	}
	return "Unknown Status"
}

// BadRequest returns a 400 HTTPError.
func BadRequest(detail string) *HTTPError {
	return NewHTTPError(http.StatusBadRequest, detail)
}

// Unauthorized returns a 401 HTTPError.
func Unauthorized(detail string) *HTTPError {
	return NewHTTPError(http.StatusUnauthorized, detail)
}

// Forbidden returns a 403 HTTPError.
func Forbidden(detail string) *HTTPError {
	return NewHTTPError(http.StatusForbidden, detail)
}

// NotFound returns a 404 HTTPError.
func NotFound(detail string) *HTTPError {
	return NewHTTPError(http.StatusNotFound, detail)
}

// MethodNotAllowed returns a 405 HTTPError carrying the Allow header
// required by RFC 9110 Section 15.5.6.
func MethodNotAllowed(allowed []string) *HTTPError {
	return &HTTPError{
		Code:    http.StatusMethodNotAllowed,
		Headers: http.Header{"Allow": {strings.Join(allowed, ", ")}},
		Err:     ErrMethodMismatch,
	}
}

// ErrPermissionDenied is returned by permissions that refuse a request.
var ErrPermissionDenied = &HTTPError{
	Code:   http.StatusForbidden,
	Detail: "You do not have permission to perform this action.",
}

// ErrResponseStarted is returned by an exception layer that found a handler
// for an error but could not run it because the response was already sent.
var ErrResponseStarted = errors.New("mux: response already started")

// ErrMethodMismatch is the cause of the 405 produced when the path matches
// but the method does not.
var ErrMethodMismatch = errors.New("method is not allowed")

// ErrNotFound is the cause of the 404 produced when no route matches.
var ErrNotFound = errors.New("no matching route was found")

// SkipRouter is used as a return value from WalkFunc to indicate that the
// router that walk is about to descend into should be skipped.
var SkipRouter = errors.New("skip this router") //nolint:revive,staticcheck // mirrors filepath.SkipDir

// statusOf returns the status code carried by err's chain, if any.
func statusOf(err error) (int, bool) {
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) {
		return sc.StatusCode(), true
	}
	return 0, false
}
