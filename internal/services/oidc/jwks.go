package oidc

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

const (
	// DefaultJWKSTTL is how long a fetched key set is reused
	DefaultJWKSTTL = time.Hour
	// minRefreshInterval throttles forced refetches triggered by bad tokens
	minRefreshInterval = time.Minute
)

// JWKSManager fetches and caches a provider's key set
type JWKSManager struct {
	url        string
	ttl        time.Duration
	httpClient *http.Client

	mu      sync.RWMutex
	keys    jwk.Set
	fetched time.Time
	expires time.Time
}

// NewJWKSManager creates a manager for the key set at url
func NewJWKSManager(url string, ttl time.Duration, httpClient *http.Client) *JWKSManager {
	if ttl <= 0 {
		ttl = DefaultJWKSTTL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &JWKSManager{url: url, ttl: ttl, httpClient: httpClient}
}

// Keys returns the cached set, fetching it when missing or expired
func (m *JWKSManager) Keys(ctx context.Context) (jwk.Set, error) {
	m.mu.RLock()
	keys, fresh := m.keys, time.Now().Before(m.expires)
	m.mu.RUnlock()
	if keys != nil && fresh {
		return keys, nil
	}
	return m.Refresh(ctx)
}

// Refresh refetches the key set after a key rotation, at most once per minRefreshInterval
func (m *JWKSManager) Refresh(ctx context.Context) (jwk.Set, error) {
	m.mu.RLock()
	keys, recent := m.keys, time.Since(m.fetched) < minRefreshInterval
	m.mu.RUnlock()
	if keys != nil && recent {
		return keys, nil
	}

	fetched, err := jwk.Fetch(ctx, m.url, jwk.WithHTTPClient(m.httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}

	m.mu.Lock()
	m.keys = fetched
	m.fetched = time.Now()
	m.expires = m.fetched.Add(m.ttl)
	m.mu.Unlock()
	return fetched, nil
}
