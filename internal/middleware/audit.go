package middleware

import (
	"net/http"

	logpkg "github.com/benvon/tubecompanion/internal/logger"
	"github.com/benvon/tubecompanion/internal/request"
	"go.uber.org/zap"
)

// Audit logs denied requests: failed authentication, forbidden admin access and throttling
func Audit(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			var event string
			switch rec.status {
			case http.StatusUnauthorized, http.StatusForbidden:
				event = "security_event"
			case http.StatusTooManyRequests:
				event = "request_denied_too_many"
			default:
				return
			}

			fields := []zap.Field{
				zap.Int("status_code", rec.status),
				zap.String("method", r.Method),
				zap.String("path", logpkg.SanitizePath(r.URL.Path)),
				zap.String("ip", logpkg.SanitizeString(request.ClientIP(r), logpkg.MaxGeneralStringLength)),
			}
			if id := request.RequestIDFromContext(r.Context()); id != "" {
				fields = append(fields, zap.String("request_id", id))
			}
			logger.Warn(event, fields...)
		})
	}
}
