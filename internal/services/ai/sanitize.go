package ai

import (
	"context"
	"strings"

	"github.com/benvon/tubecompanion/internal/logger"
)

type contextKey string

const (
	userIDContextKey    contextKey = "user_id"
	requestIDContextKey contextKey = "request_id"
)

const (
	// MaxPreviewLength is the maximum length for prompt previews in logs
	MaxPreviewLength = 200
	// RedactedValue replaces sensitive data
	RedactedValue = "[REDACTED]"
)

// WithUserID attaches the user ID used in provider logs
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// WithRequestID attaches the request ID used in provider logs
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

// ExtractUserID returns the user ID attached to ctx, if any
func ExtractUserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDContextKey).(string)
	return id
}

// ExtractRequestID returns the request ID attached to ctx, if any
func ExtractRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}

// SanitizeAPIKey keeps the first and last four characters of a key
func SanitizeAPIKey(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	if len(apiKey) <= 8 {
		return RedactedValue
	}
	return apiKey[:4] + RedactedValue + apiKey[len(apiKey)-4:]
}

// SanitizePrompt returns a short preview, or the debug-length content when fullLog is set
func SanitizePrompt(prompt string, fullLog bool) string {
	if fullLog {
		return logger.SanitizeDebugContent(prompt)
	}
	return logger.SanitizeString(strings.Join(strings.Fields(prompt), " "), MaxPreviewLength)
}

// SanitizeResponse returns a log-safe view of a model response
func SanitizeResponse(response string, fullLog bool) string {
	return SanitizePrompt(response, fullLog)
}
