package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/benvon/tubecompanion/internal/database"
	"github.com/benvon/tubecompanion/internal/middleware"
	"github.com/benvon/tubecompanion/internal/models"
	"github.com/benvon/tubecompanion/internal/services/oidc"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// LoginProvider exposes the public login parameters
type LoginProvider interface {
	LoginConfig() *oidc.LoginConfig
}

// CodeExchanger trades an authorization code for an ID token
type CodeExchanger interface {
	ExchangeCode(ctx context.Context, code, codeVerifier string) (string, error)
}

// AccountStore resolves and updates user accounts
type AccountStore interface {
	middleware.UserResolver
	UpdateLanguage(ctx context.Context, id uuid.UUID, language models.Language) error
}

var (
	_ LoginProvider = (*oidc.Provider)(nil)
	_ CodeExchanger = (*oidc.Client)(nil)
)

// ExchangeRequest is the body of POST /auth/oidc/exchange
type ExchangeRequest struct {
	Code         string `json:"code" validate:"required,max=4096"`
	CodeVerifier string `json:"codeVerifier" validate:"max=256"`
}

// ExchangeResponse returns the ID token to use as bearer token, and the account
type ExchangeResponse struct {
	IDToken string       `json:"idToken"`
	User    *models.User `json:"user"`
}

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	login    LoginProvider
	exchange CodeExchanger
	verifier middleware.TokenVerifier
	users    AccountStore
	logger   *zap.Logger
}

// NewAuthHandler creates a new auth handler. login and exchange may be nil when OIDC is not configured.
func NewAuthHandler(login LoginProvider, exchange CodeExchanger, verifier middleware.TokenVerifier, users AccountStore, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{login: login, exchange: exchange, verifier: verifier, users: users, logger: logger}
}

// RegisterPublicRoutes registers routes reachable without a token
// The router should already have the /api/v1/auth prefix
func (h *AuthHandler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/oidc/login", h.GetOIDCLogin).Methods(http.MethodGet)
	r.HandleFunc("/oidc/exchange", h.ExchangeCode).Methods(http.MethodPost)
}

// RegisterRoutes registers routes that need an authenticated user
func (h *AuthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/me", h.GetMe).Methods(http.MethodGet)
	r.HandleFunc("/me", h.UpdateMe).Methods(http.MethodPatch)
}

// GetOIDCLogin returns OIDC configuration for frontend
func (h *AuthHandler) GetOIDCLogin(w http.ResponseWriter, r *http.Request) {
	if h.login == nil {
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Login is not configured")
		return
	}
	respondJSON(w, http.StatusOK, h.login.LoginConfig())
}

// ExchangeCode completes the authorization-code flow and returns the ID token
func (h *AuthHandler) ExchangeCode(w http.ResponseWriter, r *http.Request) {
	if h.exchange == nil {
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Login is not configured")
		return
	}

	var req ExchangeRequest
	if problems := decodeAndValidate(r, &req); problems != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", strings.Join(problems, "; "))
		return
	}

	ctx := r.Context()
	idToken, err := h.exchange.ExchangeCode(ctx, req.Code, req.CodeVerifier)
	if err != nil {
		h.logger.Info("oidc_code_exchange_failed", zap.Error(err))
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Authorization code was rejected")
		return
	}
	claims, err := h.verifier.Verify(ctx, idToken)
	if err != nil || claims.Sub == "" || claims.Email == "" {
		h.logger.Warn("oidc_id_token_rejected", zap.Error(err))
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "ID token was rejected")
		return
	}
	user, err := h.users.UpsertFromClaims(ctx, claims)
	if err != nil {
		h.logger.Error("failed_to_resolve_user", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to resolve user")
		return
	}
	respondJSON(w, http.StatusOK, ExchangeResponse{IDToken: idToken, User: user})
}

// GetMe returns current user information
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// UpdateMe changes the preferred response language
func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req models.UpdateUserRequest
	if problems := decodeAndValidate(r, &req); problems != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", strings.Join(problems, "; "))
		return
	}

	if err := h.users.UpdateLanguage(r.Context(), user.ID, req.PreferredLanguage); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "User not found")
			return
		}
		h.logger.Error("failed_to_update_user", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to update user")
		return
	}

	updated := *user
	updated.PreferredLanguage = req.PreferredLanguage
	respondJSON(w, http.StatusOK, &updated)
}
