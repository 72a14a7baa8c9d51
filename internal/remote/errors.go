package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnavailable matches every *UnavailableError.
var ErrUnavailable = errors.New("remote service unavailable")

// StatusError is a non-2xx reply. It is a domain answer, not an outage.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote: %s %s: status %d", e.Method, e.URL, e.Code)
}

// UnavailableError reports that all attempts failed at the transport level.
type UnavailableError struct {
	Method   string
	URL      string
	Attempts int
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("remote: %s %s: unavailable after %d attempts: %v", e.Method, e.URL, e.Attempts, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrUnavailable) succeed.
func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

// IsNotFound reports a 404 reply.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// StatusCode extracts the HTTP status from a *StatusError, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}
