package ai

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
)

// APIError is a provider error with the details needed for retry decisions
type APIError struct {
	Message     string
	Type        string
	Code        string
	StatusCode  int
	RetryAfter  *time.Duration
	IsPermanent bool // quota exhaustion, as opposed to a transient rate limit
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d, type %s): %s", e.StatusCode, e.Type, e.Message)
}

// ExtractAPIError converts an SDK error into an APIError, or returns nil
func ExtractAPIError(err error) *APIError {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var sdkErr *openai.Error
	if !errors.As(err, &sdkErr) {
		return nil
	}

	out := &APIError{
		Message:    sdkErr.Message,
		Type:       sdkErr.Type,
		Code:       sdkErr.Code,
		StatusCode: sdkErr.StatusCode,
	}
	if out.StatusCode == http.StatusTooManyRequests {
		retryAfter := 60 * time.Second
		if out.Code == "insufficient_quota" || out.Type == "insufficient_quota" {
			out.IsPermanent = true
			retryAfter = time.Hour
		}
		out.RetryAfter = &retryAfter
	}
	return out
}

// wrapAPIError prefers the structured error when one can be extracted
func wrapAPIError(err error) error {
	if apiErr := ExtractAPIError(err); apiErr != nil {
		return apiErr
	}
	return err
}

// IsRateLimitError reports a transient 429
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	if apiErr := ExtractAPIError(err); apiErr != nil {
		return apiErr.StatusCode == http.StatusTooManyRequests && !apiErr.IsPermanent
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests")
}

// IsQuotaError reports provider quota exhaustion
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	if apiErr := ExtractAPIError(err); apiErr != nil {
		return apiErr.IsPermanent
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "insufficient_quota") || strings.Contains(msg, "billing")
}

// GetRetryDelay returns an exponential backoff for the given attempt, scaled by error type
func GetRetryDelay(err error, attempt int) time.Duration {
	shift := uint(min(max(attempt, 0), 10))

	switch {
	case IsQuotaError(err):
		return min(time.Hour*time.Duration(1<<shift), 24*time.Hour)
	case IsRateLimitError(err):
		delay := min(60*time.Second*time.Duration(1<<shift), 15*time.Minute)
		if apiErr := ExtractAPIError(err); apiErr != nil && apiErr.RetryAfter != nil && *apiErr.RetryAfter > delay {
			delay = *apiErr.RetryAfter
		}
		return delay
	default:
		return min(5*time.Second*time.Duration(1<<shift), 5*time.Minute)
	}
}
