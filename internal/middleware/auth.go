package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	logpkg "github.com/benvon/tubecompanion/internal/logger"
	"github.com/benvon/tubecompanion/internal/models"
	"github.com/benvon/tubecompanion/internal/request"
	"go.uber.org/zap"
)

// TokenVerifier validates a bearer token and returns its identity claims
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*models.JWTClaims, error)
}

// UserResolver maps verified claims to a stored user, creating it on first sight
type UserResolver interface {
	UpsertFromClaims(ctx context.Context, claims *models.JWTClaims) (*models.User, error)
}

// UserFromContext returns the authenticated user, or nil
func UserFromContext(r *http.Request) *models.User {
	return request.UserFromContext(r)
}

// SetUserInContext attaches a user to ctx the way Auth does
func SetUserInContext(ctx context.Context, user *models.User) context.Context {
	return request.WithUser(ctx, user)
}

// Auth resolves the bearer token into a user. Requests without a valid token get 401.
func Auth(verifier TokenVerifier, users UserResolver, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				respondError(w, http.StatusUnauthorized, "Missing or malformed Authorization header")
				return
			}

			ctx := r.Context()
			claims, err := verifier.Verify(ctx, token)
			if err != nil {
				logger.Info("token_verification_failed", zap.String("error", logpkg.SanitizeError(err)))
				respondError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}
			if claims.Sub == "" || claims.Email == "" {
				respondError(w, http.StatusUnauthorized, "Token is missing subject or email")
				return
			}

			user, err := users.UpsertFromClaims(ctx, claims)
			if err != nil {
				logger.Error("failed_to_resolve_user", zap.Error(err))
				respondError(w, http.StatusInternalServerError, "Failed to resolve user")
				return
			}

			next.ServeHTTP(w, r.WithContext(request.WithUser(ctx, user)))
		})
	}
}

// RequireAdmin allows only users whose email isAdmin accepts
func RequireAdmin(isAdmin func(email string) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := request.UserFromContext(r)
			if user == nil {
				respondError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			if !isAdmin(user.Email) {
				respondError(w, http.StatusForbidden, "Administrator access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   message,
	})
}
