package client

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError is a non-2xx backend response.
type HTTPError struct {
	Op     string
	Status int
	// Message is the backend's "error"/"message" field when present, else a
	// truncated body.
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("client: %s: http %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("client: %s: http %d", e.Op, e.Status)
}

// Temporary reports whether retrying may help.
func (e *HTTPError) Temporary() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests || e.Status == http.StatusRequestTimeout
}

// CircuitOpenError is returned without calling the backend while the
// breaker is open.
type CircuitOpenError struct {
	Op string
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("client: %s: circuit open", e.Op)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status
	}
	return 0
}

// ErrInvalidID is returned when a path identifier is unsafe.
var ErrInvalidID = errors.New("client: invalid identifier")
