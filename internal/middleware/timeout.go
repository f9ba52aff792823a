package middleware

import (
	"net/http"
	"time"
)

// DefaultRequestTimeout bounds non-streaming handlers
const DefaultRequestTimeout = 30 * time.Second

// Timeout cancels the handler after timeout and answers 503 with a JSON body.
// Streaming routes must not be wrapped: http.TimeoutHandler buffers the response.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, `{"success":false,"error":"Request timed out"}`)
	}
}
