// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package auth

import "errors"

// Standard authentication errors. Authenticators wrap these with %w so the
// middleware can classify failures with errors.Is.
var (
	// ErrNoCredentials indicates no credentials were provided.
	ErrNoCredentials = errors.New("no credentials provided")

	// ErrMalformedCredentials indicates credentials were present but not in
	// the expected scheme.
	ErrMalformedCredentials = errors.New("malformed credentials")

	// ErrInvalidCredentials indicates credentials failed verification.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrExpiredCredentials indicates credentials have expired.
	ErrExpiredCredentials = errors.New("credentials expired")

	// ErrAuthenticatorUnavailable indicates the identity provider (or its
	// signing keys) could not be reached.
	ErrAuthenticatorUnavailable = errors.New("authenticator unavailable")
)
