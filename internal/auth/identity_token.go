// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/confluence/internal/metrics"
)

// DefaultIdentityTokenTTL is how long a service identity token is reused.
const DefaultIdentityTokenTTL = 5 * time.Minute

// TokenSource mints an identity token for an audience (the target service URL).
type TokenSource interface {
	FetchToken(ctx context.Context, audience string) (string, error)
}

type cachedToken struct {
	token     string
	fetchedAt time.Time
}

// IdentityTokenCache caches service identity tokens per audience.
// Concurrent misses for one audience result in a single fetch.
type IdentityTokenCache struct {
	source TokenSource
	ttl    time.Duration
	now    func() time.Time

	mu     sync.RWMutex
	tokens map[string]cachedToken
}

// NewIdentityTokenCache creates a cache over source. ttl <= 0 uses
// DefaultIdentityTokenTTL.
func NewIdentityTokenCache(source TokenSource, ttl time.Duration) *IdentityTokenCache {
	if ttl <= 0 {
		ttl = DefaultIdentityTokenTTL
	}
	return &IdentityTokenCache{
		source: source,
		ttl:    ttl,
		now:    time.Now,
		tokens: make(map[string]cachedToken),
	}
}

// Token returns a cached token for audience, fetching a new one when the
// cached token is missing or older than the TTL.
func (c *IdentityTokenCache) Token(ctx context.Context, audience string) (string, error) {
	if tok, ok := c.lookup(audience); ok {
		return tok, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.tokens[audience]; ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		return entry.token, nil
	}

	tok, err := c.source.FetchToken(ctx, audience)
	metrics.RecordIdentityTokenFetch(err)
	if err != nil {
		return "", fmt.Errorf("fetch identity token for %s: %w", audience, err)
	}
	if tok == "" {
		return "", fmt.Errorf("fetch identity token for %s: empty token", audience)
	}
	c.tokens[audience] = cachedToken{token: tok, fetchedAt: c.now()}
	return tok, nil
}

func (c *IdentityTokenCache) lookup(audience string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.tokens[audience]
	if !ok || c.now().Sub(entry.fetchedAt) >= c.ttl {
		return "", false
	}
	return entry.token, true
}

// Invalidate drops the cached token for audience, e.g. after the target
// rejected it.
func (c *IdentityTokenCache) Invalidate(audience string) {
	c.mu.Lock()
	delete(c.tokens, audience)
	c.mu.Unlock()
}

// MetadataTokenSource fetches Google-signed identity tokens from the
// GCE / Cloud Run metadata server.
type MetadataTokenSource struct {
	// URL is the metadata identity endpoint.
	URL    string
	Client *http.Client
}

// DefaultMetadataIdentityURL is the metadata server identity endpoint.
const DefaultMetadataIdentityURL = "http://metadata.google.internal/computeMetadata/v1/instance/service-accounts/default/identity"

// FetchToken implements TokenSource.
func (s *MetadataTokenSource) FetchToken(ctx context.Context, audience string) (string, error) {
	endpoint := s.URL
	if endpoint == "" {
		endpoint = DefaultMetadataIdentityURL
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse metadata url: %w", err)
	}
	q := u.Query()
	q.Set("audience", audience)
	q.Set("format", "full")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return "", err
	}
	req.Header.Set("Metadata-Flavor", "Google")

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("metadata server: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("read metadata response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("metadata server returned %s", resp.Status)
	}
	return strings.TrimSpace(string(body)), nil
}

// SignedTokenSource mints HS256 tokens with a shared secret, for
// deployments outside Google Cloud where the atomic services verify the
// same secret.
type SignedTokenSource struct {
	Secret []byte
	Issuer string
	TTL    time.Duration

	now func() time.Time
}

// NewSignedTokenSource creates a SignedTokenSource.
func NewSignedTokenSource(secret, issuer string, ttl time.Duration) *SignedTokenSource {
	if ttl <= 0 {
		ttl = DefaultIdentityTokenTTL
	}
	return &SignedTokenSource{Secret: []byte(secret), Issuer: issuer, TTL: ttl, now: time.Now}
}

// FetchToken implements TokenSource. Tokens outlive the cache TTL by a
// minute so a cached token is never expired when used.
func (s *SignedTokenSource) FetchToken(_ context.Context, audience string) (string, error) {
	if len(s.Secret) == 0 {
		return "", errors.New("shared secret is empty")
	}
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	issued := now()
	claims := jwt.RegisteredClaims{
		Issuer:    s.Issuer,
		Subject:   s.Issuer,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(issued),
		NotBefore: jwt.NewNumericDate(issued),
		ExpiresAt: jwt.NewNumericDate(issued.Add(s.TTL + time.Minute)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
}

// ShouldUseIdentityToken reports whether calls to serviceURL need a service
// identity token. Cloud Run hosts always do; loopback and private addresses
// never do; any other host does.
func ShouldUseIdentityToken(serviceURL string) bool {
	u, err := url.Parse(serviceURL)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())

	if strings.HasSuffix(host, ".run.app") || strings.HasSuffix(host, "run.googleapis.com") {
		return true
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return false
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		return !(addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast())
	}
	return true
}
