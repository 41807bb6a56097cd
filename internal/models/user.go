// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

// Package models holds the records exchanged with the Users, Events and Feed
// services. Only fields this gateway reads are typed; pass-through endpoints
// forward upstream JSON untouched.
package models

import "strings"

// User is an internal user record owned by the Users service.
type User struct {
	UserID         int64   `json:"user_id"`
	FirebaseUID    string  `json:"firebase_uid,omitempty"`
	Email          string  `json:"email"`
	FirstName      string  `json:"first_name"`
	LastName       string  `json:"last_name"`
	Username       string  `json:"username,omitempty"`
	ProfilePicture *string `json:"profile_picture,omitempty"`
	Role           string  `json:"role,omitempty"`
}

// UserSync is the provisioning request accepted by POST /users/sync.
type UserSync struct {
	FirstName      string  `json:"first_name"`
	LastName       string  `json:"last_name"`
	Username       string  `json:"username"`
	Email          string  `json:"email"`
	ProfilePicture *string `json:"profile_picture"`
}

// NewUserSync derives a provisioning record from identity-provider claims.
//
// The first whitespace token of displayName becomes the first name and the
// rest, joined by single spaces, the last name. Without a display name the
// email local-part is used as the first name. The username is always the
// email local-part.
func NewUserSync(email, displayName, avatarURL string) UserSync {
	local := email
	if at := strings.Index(email, "@"); at >= 0 {
		local = email[:at]
	}

	parts := strings.Fields(displayName)
	first := local
	last := ""
	if len(parts) > 0 {
		first = parts[0]
		last = strings.Join(parts[1:], " ")
	}

	var picture *string
	if avatarURL != "" {
		picture = &avatarURL
	}

	return UserSync{
		FirstName:      first,
		LastName:       last,
		Username:       local,
		Email:          email,
		ProfilePicture: picture,
	}
}
