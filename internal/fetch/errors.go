package fetch

import (
	"errors"
	"fmt"
	"net"
	"net/http"
)

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d from %s", e.Code, e.URL)
}

// IsBlocked reports whether the error is a blocking response (auth or rate
// limit). Blocking responses trigger strategy fallback, not further retries.
func IsBlocked(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

// IsTransient reports whether the error is worth retrying: network timeouts
// and 5xx responses. Anything structural (bad payload) is neither.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 && se.Code < 600
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return true
}

// retryReason labels a retried error for metrics.
func retryReason(err error) string {
	if code := StatusCode(err); code >= 500 {
		return "server_error"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	return "network"
}

// StatusCode extracts the HTTP status from an error, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}
