// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/zitadel/oidc/v3/pkg/client/rp"
	"github.com/zitadel/oidc/v3/pkg/oidc"

	"github.com/tomtom215/confluence/internal/logging"
)

// FirebaseConfig configures Firebase ID token verification.
type FirebaseConfig struct {
	// ProjectID is the expected audience.
	ProjectID string

	// Issuer is the expected iss claim, normally
	// https://securetoken.google.com/<ProjectID>.
	Issuer string

	// JWKSURL serves the token signing keys.
	JWKSURL string

	// HTTPClient fetches the key set. Defaults to a client with a 10s timeout.
	HTTPClient *http.Client
}

// FirebaseAuthenticator verifies Firebase ID tokens presented with the
// bearer scheme.
//
// Verification is delegated to zitadel's certified ID token verifier:
// RS256 signature against the remote key set, issuer, audience, expiry and
// issued-at. The remote key set caches keys and refetches on unknown kid.
type FirebaseAuthenticator struct {
	verifier *rp.IDTokenVerifier
	issuer   string
}

// NewFirebaseAuthenticator builds the remote key set and verifier. It does
// not contact the key endpoint; keys are fetched on first use.
func NewFirebaseAuthenticator(cfg FirebaseConfig) (*FirebaseAuthenticator, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("firebase project id is required")
	}
	if cfg.JWKSURL == "" {
		return nil, errors.New("firebase jwks url is required")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "https://securetoken.google.com/" + cfg.ProjectID
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	keys := rp.NewRemoteKeySet(client, cfg.JWKSURL)
	return &FirebaseAuthenticator{
		verifier: rp.NewIDTokenVerifier(cfg.Issuer, cfg.ProjectID, keys),
		issuer:   cfg.Issuer,
	}, nil
}

// Authenticate implements Authenticator.
func (a *FirebaseAuthenticator) Authenticate(ctx context.Context, r *http.Request) (*CallerIdentity, error) {
	token, err := extractBearer(r)
	if err != nil {
		return nil, err
	}

	claims, err := rp.VerifyIDToken[*oidc.IDTokenClaims](ctx, token, a.verifier)
	if err != nil {
		return nil, mapVerificationError(err)
	}

	id := &CallerIdentity{
		SubjectID:     claims.GetSubject(),
		Email:         claims.Email,
		EmailVerified: bool(claims.EmailVerified),
		DisplayName:   claims.Name,
		AvatarURL:     claims.Picture,
		Issuer:        claims.GetIssuer(),
		IssuedAt:      claims.GetIssuedAt(),
		ExpiresAt:     claims.GetExpiration(),
		Method:        MethodFirebase,
		RawClaims:     claims.Claims,
	}
	if id.SubjectID == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrInvalidCredentials)
	}
	return id, nil
}

// Name implements Authenticator.
func (a *FirebaseAuthenticator) Name() string { return MethodFirebase }

// Priority implements Authenticator.
func (a *FirebaseAuthenticator) Priority() int { return 10 }

// Issuer returns the expected iss claim.
func (a *FirebaseAuthenticator) Issuer() string { return a.issuer }

// extractBearer returns the token from "Authorization: Bearer <token>".
func extractBearer(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrNoCredentials
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrMalformedCredentials
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ErrMalformedCredentials
	}
	return token, nil
}

// mapVerificationError maps zitadel verification errors onto the package
// sentinels.
func mapVerificationError(err error) error {
	if errors.Is(err, oidc.ErrExpired) {
		return ErrExpiredCredentials
	}

	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "expired"):
		return ErrExpiredCredentials
	case strings.Contains(errStr, "fetching keys"), strings.Contains(errStr, "failed to get keys"):
		logging.Warn().Err(err).Msg("Firebase signing keys unavailable")
		return fmt.Errorf("%w: %s", ErrAuthenticatorUnavailable, errStr)
	case strings.Contains(errStr, "issuer"):
		logging.Debug().Err(err).Msg("Token issuer mismatch")
		return fmt.Errorf("%w: issuer mismatch", ErrInvalidCredentials)
	case strings.Contains(errStr, "audience"):
		logging.Debug().Err(err).Msg("Token audience mismatch")
		return fmt.Errorf("%w: audience mismatch", ErrInvalidCredentials)
	default:
		logging.Debug().Err(err).Msg("Token verification failed")
		return fmt.Errorf("%w: %s", ErrInvalidCredentials, errStr)
	}
}
