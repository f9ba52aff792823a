// Package oidc verifies bearer tokens issued by the configured OpenID Connect provider
// and runs the authorization-code exchange for the login flow.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrNotConfigured is returned when no issuer is configured
var ErrNotConfigured = errors.New("oidc provider not configured")

const defaultScope = "openid email profile"

// Settings is the provider configuration read from the environment. Empty endpoints are discovered.
type Settings struct {
	Issuer       string
	JWKSURL      string
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RedirectURL  string
}

// Endpoints are the resolved provider URLs
type Endpoints struct {
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
}

// LoginConfig is what the frontend needs to start a login
type LoginConfig struct {
	AuthorizationEndpoint string `json:"authorizationEndpoint"`
	TokenEndpoint         string `json:"tokenEndpoint"`
	ClientID              string `json:"clientId"`
	RedirectURI           string `json:"redirectUri"`
	Scope                 string `json:"scope"`
}

// Provider resolves endpoints for a single issuer
type Provider struct {
	settings  Settings
	endpoints Endpoints
}

// NewProvider resolves the provider's endpoints. Explicit settings win over discovery;
// when discovery fails the issuer-relative /oauth2 paths are used.
func NewProvider(ctx context.Context, settings Settings, client *resty.Client) (*Provider, error) {
	if settings.Issuer == "" {
		return nil, ErrNotConfigured
	}
	if client == nil {
		client = resty.New().SetTimeout(5 * time.Second)
	}

	base := strings.TrimRight(settings.Issuer, "/")
	discovered, _ := discover(ctx, client, base)

	ep := Endpoints{
		AuthorizationEndpoint: firstNonEmpty(settings.AuthURL, discovered.AuthorizationEndpoint, base+"/oauth2/authorize"),
		TokenEndpoint:         firstNonEmpty(settings.TokenURL, discovered.TokenEndpoint, base+"/oauth2/token"),
		JWKSURI:               firstNonEmpty(settings.JWKSURL, discovered.JWKSURI, base+"/.well-known/jwks.json"),
	}
	return &Provider{settings: settings, endpoints: ep}, nil
}

// Endpoints returns the resolved endpoints
func (p *Provider) Endpoints() Endpoints {
	return p.endpoints
}

// Settings returns the configured settings
func (p *Provider) Settings() Settings {
	return p.settings
}

// LoginConfig returns the public login parameters
func (p *Provider) LoginConfig() *LoginConfig {
	return &LoginConfig{
		AuthorizationEndpoint: p.endpoints.AuthorizationEndpoint,
		TokenEndpoint:         p.endpoints.TokenEndpoint,
		ClientID:              p.settings.ClientID,
		RedirectURI:           p.settings.RedirectURL,
		Scope:                 defaultScope,
	}
}

func discover(ctx context.Context, client *resty.Client, issuer string) (Endpoints, error) {
	var doc Endpoints
	resp, err := client.R().
		SetContext(ctx).
		SetResult(&doc).
		Get(issuer + "/.well-known/openid-configuration")
	if err != nil {
		return Endpoints{}, fmt.Errorf("failed to fetch discovery document: %w", err)
	}
	if resp.IsError() {
		return Endpoints{}, fmt.Errorf("discovery document returned status %d", resp.StatusCode())
	}
	return doc, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
