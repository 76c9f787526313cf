package fetch

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidProxyAddress is returned when the proxy address is not in
	// "host:port" format.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrInvalidBodySize is returned when the maximum body size is not positive.
	ErrInvalidBodySize = errors.New("maximum body size must be positive")

	// ErrInvalidRateLimit is returned when the per-host rate is negative.
	ErrInvalidRateLimit = errors.New("per-host rate limit must not be negative")
)

// StatusError is returned when the server answers with an error status.
type StatusError struct {
	URL        string
	StatusCode int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s from %s",
		e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

// HTTPStatus returns the response status code.
func (e *StatusError) HTTPStatus() int {
	return e.StatusCode
}
