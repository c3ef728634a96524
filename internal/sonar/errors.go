package sonar

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrNotFound matches API errors with status 404.
	ErrNotFound = errors.New("sonar: not found")
	// ErrUnauthorized matches API errors with status 401 or 403.
	ErrUnauthorized = errors.New("sonar: unauthorized")
)

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int
	Endpoint   string
	// Body is a truncated copy of the response body.
	Body string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("sonar %s: HTTP %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("sonar %s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Is lets errors.Is match the sentinel errors by status code.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}

// Transient reports whether a retry may succeed.
func (e *APIError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsTransient reports whether err is worth retrying: network failures,
// rate limiting and server errors. Cancellation of the caller's context is
// never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
