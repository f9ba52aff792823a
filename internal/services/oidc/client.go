package oidc

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
)

// ErrNoIDToken is returned when the token response lacks an id_token
var ErrNoIDToken = errors.New("token response did not include an id_token")

// Client runs the authorization-code flow
type Client struct {
	config *oauth2.Config
}

// NewClient builds an OAuth2 client from the resolved provider
func NewClient(p *Provider) *Client {
	s := p.Settings()
	ep := p.Endpoints()
	return &Client{config: &oauth2.Config{
		ClientID:     s.ClientID,
		ClientSecret: s.ClientSecret,
		RedirectURL:  s.RedirectURL,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  ep.AuthorizationEndpoint,
			TokenURL: ep.TokenEndpoint,
		},
	}}
}

// ExchangeCode trades an authorization code for tokens and returns the ID token
func (c *Client) ExchangeCode(ctx context.Context, code, codeVerifier string) (string, error) {
	var opts []oauth2.AuthCodeOption
	if codeVerifier != "" {
		opts = append(opts, oauth2.VerifierOption(codeVerifier))
	}
	token, err := c.config.Exchange(ctx, code, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to exchange code: %w", err)
	}
	idToken, _ := token.Extra("id_token").(string)
	if idToken == "" {
		return "", ErrNoIDToken
	}
	return idToken, nil
}

// AuthCodeURL returns the authorization URL for state
func (c *Client) AuthCodeURL(state string) string {
	return c.config.AuthCodeURL(state)
}
