// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package auth

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

// ForwardedAuthenticator trusts identity headers set by an API gateway that
// has already verified the caller's token. Only deploy it behind such a
// gateway; the headers are otherwise client-controlled.
type ForwardedAuthenticator struct {
	identityHeader string
	userInfoHeader string
}

// NewForwardedAuthenticator creates a ForwardedAuthenticator. userInfoHeader
// may be empty to ignore forwarded claims.
func NewForwardedAuthenticator(identityHeader, userInfoHeader string) *ForwardedAuthenticator {
	if identityHeader == "" {
		identityHeader = "x-firebase-uid"
	}
	return &ForwardedAuthenticator{identityHeader: identityHeader, userInfoHeader: userInfoHeader}
}

// forwardedClaims is the subset of the gateway's userinfo payload we map.
type forwardedClaims struct {
	Sub           string `json:"sub"`
	UserID        string `json:"user_id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	Issuer        string `json:"iss"`
}

// Authenticate implements Authenticator.
func (a *ForwardedAuthenticator) Authenticate(_ context.Context, r *http.Request) (*CallerIdentity, error) {
	uid := strings.TrimSpace(r.Header.Get(a.identityHeader))
	if uid == "" {
		return nil, ErrNoCredentials
	}

	id := &CallerIdentity{SubjectID: uid, Method: MethodForwarded}

	if a.userInfoHeader == "" {
		return id, nil
	}
	encoded := r.Header.Get(a.userInfoHeader)
	if encoded == "" {
		return id, nil
	}

	raw, err := decodeSegment(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: userinfo header is not base64url", ErrMalformedCredentials)
	}
	var claims forwardedClaims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return nil, fmt.Errorf("%w: userinfo header is not JSON", ErrMalformedCredentials)
	}
	if sub := firstNonEmpty(claims.UserID, claims.Sub); sub != "" && sub != uid {
		return nil, fmt.Errorf("%w: userinfo subject does not match %s", ErrInvalidCredentials, a.identityHeader)
	}

	var all map[string]any
	if err := json.Unmarshal(raw, &all); err == nil {
		id.RawClaims = all
	}
	id.Email = claims.Email
	id.EmailVerified = claims.EmailVerified
	id.DisplayName = claims.Name
	id.AvatarURL = claims.Picture
	id.Issuer = claims.Issuer
	return id, nil
}

// Name implements Authenticator.
func (a *ForwardedAuthenticator) Name() string { return MethodForwarded }

// Priority implements Authenticator.
func (a *ForwardedAuthenticator) Priority() int { return 20 }

// decodeSegment accepts base64url with or without padding.
func decodeSegment(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "=")); err == nil {
		return b, nil
	}
	return base64.StdEncoding.DecodeString(s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
