package client

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable means the server could not be reached, or kept
	// answering 502/503/504 after the retries ran out.
	ErrUnavailable = errors.New("server unavailable")

	// ErrUnauthorized means the session is gone: no tokens, or the refresh
	// token was rejected.
	ErrUnauthorized = errors.New("unauthorized")
)

// APIError is a non-2xx response decoded from the server's
// {"error_code", "message"} body.
type APIError struct {
	Status     int    `json:"-"`
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsCode reports whether err is an APIError carrying code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}
