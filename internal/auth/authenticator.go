// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

// Package auth verifies callers and issues service-to-service identity tokens.
//
// Caller verification is pluggable through the Authenticator interface:
//   - FirebaseAuthenticator verifies Firebase ID tokens (bearer scheme)
//   - ForwardedAuthenticator trusts identity headers set by a fronting gateway
//   - Chain tries several authenticators in priority order
//
// Upstream calls authenticate as this service, never as the caller; see
// IdentityTokenCache.
package auth

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
)

// Authenticator defines the interface for caller verification.
type Authenticator interface {
	// Authenticate extracts and verifies credentials from the request.
	Authenticate(ctx context.Context, r *http.Request) (*CallerIdentity, error)

	// Name returns the authenticator's name for logging.
	Name() string

	// Priority orders authenticators in a Chain. Lower values are tried first.
	Priority() int
}

// Chain tries authenticators in ascending priority. The first success wins.
type Chain struct {
	authenticators []Authenticator
	mu             sync.RWMutex
}

// NewChain creates a chain over the given authenticators.
func NewChain(authenticators ...Authenticator) *Chain {
	c := &Chain{authenticators: append([]Authenticator(nil), authenticators...)}
	c.sortByPriority()
	return c
}

// Add registers another authenticator and re-sorts the chain.
func (c *Chain) Add(a Authenticator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authenticators = append(c.authenticators, a)
	c.sortByPriority()
}

// Authenticators returns a copy of the chain in evaluation order.
func (c *Chain) Authenticators() []Authenticator {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Authenticator, len(c.authenticators))
	copy(out, c.authenticators)
	return out
}

// Authenticate implements Authenticator.
func (c *Chain) Authenticate(ctx context.Context, r *http.Request) (*CallerIdentity, error) {
	authenticators := c.Authenticators()
	if len(authenticators) == 0 {
		return nil, ErrNoCredentials
	}

	lastErr := ErrNoCredentials
	for _, a := range authenticators {
		id, err := a.Authenticate(ctx, r)
		if err == nil {
			return id, nil
		}
		// ErrNoCredentials never replaces a more specific failure.
		if !errors.Is(err, ErrNoCredentials) || errors.Is(lastErr, ErrNoCredentials) {
			lastErr = err
		}
		if shouldTryNext(err) {
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// Name implements Authenticator.
func (c *Chain) Name() string { return "multi" }

// Priority implements Authenticator.
func (c *Chain) Priority() int { return 0 }

// shouldTryNext reports whether the next authenticator may still succeed.
// Credentials that were present but rejected end the chain.
func shouldTryNext(err error) bool {
	return errors.Is(err, ErrNoCredentials) || errors.Is(err, ErrAuthenticatorUnavailable)
}

func (c *Chain) sortByPriority() {
	sort.SliceStable(c.authenticators, func(i, j int) bool {
		return c.authenticators[i].Priority() < c.authenticators[j].Priority()
	})
}
