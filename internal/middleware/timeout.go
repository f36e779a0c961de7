package middleware

import (
	"net/http"
	"time"
)

const (
	defaultRequestTimeout = 30 * time.Second

	timeoutBody = `{"success":false,"error":{"code":"REQUEST_TIMEOUT","message":"request timed out"}}`
)

// Timeout bounds handler execution. Bcrypt work and store I/O both run
// inside the bound.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, timeoutBody)
	}
}
