package engine

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned by Find when no container carries the name.
	ErrNotFound = errors.New("container not found")

	// ErrMalformedResponse is returned when the engine answers with a body
	// that does not have the expected shape.
	ErrMalformedResponse = errors.New("malformed engine response")

	// ErrEmptyBody is returned by Response.Decode when the response carried
	// no JSON document.
	ErrEmptyBody = errors.New("empty response body")
)

// TransportError reports a call that failed before a complete response was
// received: connect refused, timeout, short write or read.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("engine request %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusError reports a response whose status the caller did not accept.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("engine request %s %s: unexpected status %d %s",
		e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// NewStatusError builds a StatusError from a response.
func NewStatusError(method, path string, resp *Response) *StatusError {
	return &StatusError{
		Method:     method,
		Path:       path,
		StatusCode: resp.StatusCode,
		Body:       resp.Body,
	}
}

// IsConflict reports whether err is a 409 Conflict from the engine.
func IsConflict(err error) bool {
	return HasStatus(err, http.StatusConflict)
}

// HasStatus reports whether err is a StatusError with the given code.
func HasStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
