// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package auth

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/confluence/internal/logging"
	"github.com/tomtom215/confluence/internal/metrics"
)

// Client-facing messages for rejected credentials.
const (
	DetailMissing     = "Authorization header missing"
	DetailMalformed   = "Invalid authorization header format. Expected: Bearer <token>"
	DetailExpired     = "Firebase token expired"
	DetailInvalid     = "Invalid Firebase token"
	DetailUnavailable = "Authentication service unavailable"
)

// Middleware enforces authentication on every request it wraps and stores
// the verified identity in the request context.
type Middleware struct {
	authenticator Authenticator
	authLog       *logging.AuthLogger
}

// NewMiddleware creates a Middleware over authenticator.
func NewMiddleware(authenticator Authenticator) *Middleware {
	return &Middleware{authenticator: authenticator, authLog: logging.NewAuthLogger()}
}

// Authenticate is chi-compatible middleware.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := m.authenticator.Authenticate(r.Context(), r)
		if err != nil {
			m.handleAuthError(w, r, err)
			return
		}

		m.authLog.Log(&logging.AuthEvent{
			Method:  id.Method,
			Subject: id.SubjectID,
			Email:   id.Email,
			IP:      r.RemoteAddr,
			Path:    r.URL.Path,
			Success: true,
		})
		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
	})
}

// classify returns the HTTP status, client message and metric reason for err.
func classify(err error) (status int, detail, reason string) {
	switch {
	case errors.Is(err, ErrNoCredentials):
		return http.StatusUnauthorized, DetailMissing, "missing"
	case errors.Is(err, ErrMalformedCredentials):
		return http.StatusUnauthorized, DetailMalformed, "malformed"
	case errors.Is(err, ErrExpiredCredentials):
		return http.StatusUnauthorized, DetailExpired, "expired"
	case errors.Is(err, ErrAuthenticatorUnavailable):
		return http.StatusServiceUnavailable, DetailUnavailable, "unavailable"
	default:
		return http.StatusUnauthorized, DetailInvalid, "invalid"
	}
}

func (m *Middleware) handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail, reason := classify(err)
	metrics.RecordAuthFailure(reason)
	m.authLog.Log(&logging.AuthEvent{
		Method: m.authenticator.Name(),
		IP:     r.RemoteAddr,
		Path:   r.URL.Path,
		Reason: err.Error(),
	})

	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(map[string]string{"detail": detail}); encErr != nil {
		logging.Error().Err(encErr).Msg("Failed to encode auth error response")
	}
}
