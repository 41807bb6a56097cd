// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package main

import (
	"fmt"

	"github.com/tomtom215/confluence/internal/auth"
	"github.com/tomtom215/confluence/internal/config"
	"github.com/tomtom215/confluence/internal/logging"
	"github.com/tomtom215/confluence/internal/upstream"
)

// InitAuthenticator builds the caller authenticator for cfg.Auth.Mode.
func InitAuthenticator(cfg config.AuthConfig) (auth.Authenticator, error) {
	forwarded := func() auth.Authenticator {
		return auth.NewForwardedAuthenticator(cfg.IdentityHeader, cfg.UserInfoHeader)
	}
	firebase := func() (auth.Authenticator, error) {
		a, err := auth.NewFirebaseAuthenticator(auth.FirebaseConfig{
			ProjectID: cfg.ProjectID,
			Issuer:    cfg.Issuer(),
			JWKSURL:   cfg.JWKSURL,
		})
		if err != nil {
			return nil, fmt.Errorf("firebase authenticator: %w", err)
		}
		return a, nil
	}

	switch cfg.Mode {
	case "forwarded":
		logging.Warn().Str("header", cfg.IdentityHeader).
			Msg("Forwarded authentication enabled; identity headers are trusted and must be set by a fronting gateway")
		return forwarded(), nil
	case "multi":
		fb, err := firebase()
		if err != nil {
			return nil, err
		}
		logging.Info().Msg("Firebase and forwarded authentication enabled")
		return auth.NewChain(fb, forwarded()), nil
	default:
		fb, err := firebase()
		if err != nil {
			return nil, err
		}
		logging.Info().Str("project_id", cfg.ProjectID).Msg("Firebase authentication enabled")
		return fb, nil
	}
}

// InitServiceTokens returns the provider of service identity tokens for
// upstream calls, or nil when service authentication is off.
func InitServiceTokens(cfg config.ServiceAuthConfig) upstream.TokenProvider {
	var source auth.TokenSource
	switch cfg.Source {
	case "metadata":
		source = &auth.MetadataTokenSource{URL: cfg.MetadataURL}
	case "shared_secret":
		source = auth.NewSignedTokenSource(cfg.SharedSecret, cfg.Issuer, cfg.TokenTTL)
	default:
		return nil
	}
	logging.Info().Str("source", cfg.Source).Msg("Service identity tokens enabled for upstream calls")
	return auth.NewIdentityTokenCache(source, cfg.TokenTTL)
}
