// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package logging

import (
	"strings"

	"github.com/rs/zerolog"
)

// AuthEvent is an authentication outcome recorded by AuthLogger.
type AuthEvent struct {
	// Method is the verifier that produced the outcome (firebase, forwarded).
	Method string
	// Subject is the identity provider subject, if known.
	Subject string
	Email   string
	IP      string
	Path    string
	Success bool
	// Reason is the failure message returned to the client.
	Reason string
}

// AuthLogger writes authentication outcomes with credentials and personal
// data masked.
type AuthLogger struct {
	logger zerolog.Logger
}

// NewAuthLogger creates an AuthLogger over the global logger.
func NewAuthLogger() *AuthLogger {
	return &AuthLogger{logger: WithComponent("auth")}
}

// NewAuthLoggerWithLogger creates an AuthLogger over a specific logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewAuthLoggerWithLogger(logger zerolog.Logger) *AuthLogger {
	return &AuthLogger{logger: logger.With().Str("component", "auth").Logger()}
}

// Log writes the event. Successes are debug, rejections are warnings.
func (l *AuthLogger) Log(event *AuthEvent) {
	e := l.logger.Debug()
	status := "success"
	if !event.Success {
		e = l.logger.Warn()
		status = "rejected"
	}
	e = e.Str("status", status)

	if event.Method != "" {
		e = e.Str("method", event.Method)
	}
	if event.Subject != "" {
		e = e.Str("subject", MaskID(event.Subject))
	}
	if event.Email != "" {
		e = e.Str("email", MaskEmail(event.Email))
	}
	if event.IP != "" {
		e = e.Str("ip", event.IP)
	}
	if event.Path != "" {
		e = e.Str("path", event.Path)
	}
	if event.Reason != "" {
		e = e.Str("reason", truncate(event.Reason, 200))
	}
	e.Msg("authentication")
}

// MaskToken keeps the first and last four characters of a credential.
//
//	MaskToken("eyJhbGciOiJSUzI1NiJ9.payload.abcd") == "eyJh...abcd"
func MaskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// MaskID masks an opaque identifier such as a Firebase uid.
func MaskID(id string) string {
	if id == "" {
		return ""
	}
	if len(id) <= 8 {
		return "***"
	}
	return id[:4] + "..." + id[len(id)-4:]
}

// MaskEmail keeps two characters of the local part and the domain.
//
//	MaskEmail("ann.lee@example.com") == "an***@example.com"
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}
	at := strings.Index(email, "@")
	if at <= 0 {
		return "***"
	}
	local, domain := email[:at], email[at:]
	if len(local) <= 2 {
		return "***" + domain
	}
	return local[:2] + "***" + domain
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
