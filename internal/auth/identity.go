// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package auth

import (
	"context"
	"time"
)

// Authentication methods recorded on CallerIdentity.Method.
const (
	MethodFirebase  = "firebase"
	MethodForwarded = "forwarded"
)

// CallerIdentity is the verified caller of one request. It is built per
// request and never persisted.
type CallerIdentity struct {
	// SubjectID is the identity provider's stable user id (Firebase uid).
	SubjectID string

	Email         string
	EmailVerified bool
	DisplayName   string
	AvatarURL     string

	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time

	// Method is the authenticator that produced this identity.
	Method string

	// RawClaims holds every claim of the verified token, including ones
	// not mapped above.
	RawClaims map[string]any
}

type contextKey string

const identityContextKey contextKey = "caller_identity"

// ContextWithIdentity returns a copy of ctx carrying id.
func ContextWithIdentity(ctx context.Context, id *CallerIdentity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext returns the identity stored by the middleware, or nil.
func IdentityFromContext(ctx context.Context) *CallerIdentity {
	if id, ok := ctx.Value(identityContextKey).(*CallerIdentity); ok {
		return id
	}
	return nil
}
