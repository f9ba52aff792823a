package oidc

import (
	"context"
	"fmt"
	"slices"

	"github.com/benvon/tubecompanion/internal/models"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Verifier checks signature, expiry and issuer of bearer tokens
type Verifier struct {
	keys     *JWKSManager
	issuer   string
	audience string
}

// NewVerifier creates a verifier. An empty audience skips the audience check.
func NewVerifier(keys *JWKSManager, issuer, audience string) *Verifier {
	return &Verifier{keys: keys, issuer: issuer, audience: audience}
}

// Verify validates tokenString and extracts its identity claims
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*models.JWTClaims, error) {
	keys, err := v.keys.Keys(ctx)
	if err != nil {
		return nil, err
	}

	token, err := v.parse(tokenString, keys)
	if err != nil {
		// unknown kid after a rotation: refetch once
		if keys, refreshErr := v.keys.Refresh(ctx); refreshErr == nil {
			token, err = v.parse(tokenString, keys)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to verify token: %w", err)
		}
	}

	if v.audience != "" && len(token.Audience()) > 0 && !slices.Contains(token.Audience(), v.audience) {
		return nil, fmt.Errorf("token audience %v does not include %s", token.Audience(), v.audience)
	}

	claims := &models.JWTClaims{
		Sub: token.Subject(),
		Iss: token.Issuer(),
	}
	if email, ok := token.Get("email"); ok {
		claims.Email, _ = email.(string)
	}
	if name, ok := token.Get("name"); ok {
		claims.Name, _ = name.(string)
	}
	return claims, nil
}

func (v *Verifier) parse(tokenString string, keys jwk.Set) (jwt.Token, error) {
	return jwt.Parse([]byte(tokenString),
		jwt.WithKeySet(keys, jws.WithInferAlgorithmFromKey(true)),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
	)
}
