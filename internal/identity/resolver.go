// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

// Package identity maps verified callers to internal user ids, provisioning
// the internal user on first use.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/confluence/internal/auth"
	"github.com/tomtom215/confluence/internal/logging"
	"github.com/tomtom215/confluence/internal/metrics"
	"github.com/tomtom215/confluence/internal/models"
	"github.com/tomtom215/confluence/internal/notify"
	"github.com/tomtom215/confluence/internal/upstream"
)

// ErrUserNotFound means no internal user exists for the caller and none
// could be provisioned.
var ErrUserNotFound = errors.New("user not found")

// UsersAPI is the part of the Users service the resolver needs.
type UsersAPI interface {
	Me(ctx context.Context, identity string) (*models.User, error)
	Sync(ctx context.Context, identity string, sync models.UserSync) (*models.User, bool, error)
}

// UserNotifier announces newly provisioned users. Implementations must not
// block on or report delivery failures.
type UserNotifier interface {
	UserCreated(ctx context.Context, user notify.UserCreated)
}

// Resolver resolves callers to internal user ids.
//
// Concurrent first requests for one caller may both call /users/sync; the
// Users service's uniqueness constraint decides the winner and both
// requests end up with the same id.
type Resolver struct {
	users    UsersAPI
	notifier UserNotifier
}

// NewResolver creates a Resolver. notifier may be nil.
func NewResolver(users UsersAPI, notifier UserNotifier) *Resolver {
	return &Resolver{users: users, notifier: notifier}
}

// ResolveUserID returns the caller's internal user id, provisioning the
// user from the token's profile claims when the Users service has no
// record yet.
func (r *Resolver) ResolveUserID(ctx context.Context, id *auth.CallerIdentity) (int64, error) {
	userID, err := r.lookup(ctx, id)
	if err == nil {
		return userID, nil
	}
	if !upstream.IsNotFound(err) {
		return 0, err
	}

	if id.Email == "" {
		return 0, fmt.Errorf("%w: no internal user and no email to provision from", ErrUserNotFound)
	}
	return r.provision(ctx, id)
}

// ResolveExisting returns the caller's internal user id without
// provisioning.
func (r *Resolver) ResolveExisting(ctx context.Context, id *auth.CallerIdentity) (int64, error) {
	userID, err := r.lookup(ctx, id)
	if upstream.IsNotFound(err) {
		return 0, fmt.Errorf("%w: %w", ErrUserNotFound, err)
	}
	return userID, err
}

func (r *Resolver) lookup(ctx context.Context, id *auth.CallerIdentity) (int64, error) {
	if id == nil || id.SubjectID == "" {
		return 0, fmt.Errorf("%w: no caller identity", ErrUserNotFound)
	}
	user, err := r.users.Me(ctx, id.SubjectID)
	if err != nil {
		return 0, err
	}
	if user.UserID == 0 {
		return 0, fmt.Errorf("%w: users service returned no user_id", ErrUserNotFound)
	}
	return user.UserID, nil
}

func (r *Resolver) provision(ctx context.Context, id *auth.CallerIdentity) (int64, error) {
	sync := models.NewUserSync(id.Email, id.DisplayName, id.AvatarURL)

	user, created, err := r.users.Sync(ctx, id.SubjectID, sync)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).
			Str("email", logging.MaskEmail(id.Email)).
			Msg("Automatic user provisioning failed")
		return 0, fmt.Errorf("%w: provisioning failed: %w", ErrUserNotFound, err)
	}
	if user.UserID == 0 {
		return 0, fmt.Errorf("%w: sync returned no user_id", ErrUserNotFound)
	}

	logging.Ctx(ctx).Info().
		Int64("user_id", user.UserID).
		Bool("created", created).
		Msg("Provisioned internal user")

	if created {
		metrics.RecordUserProvisioned()
		if r.notifier != nil {
			if user.Email == "" {
				user.Email = sync.Email
			}
			if user.FirstName == "" {
				user.FirstName = sync.FirstName
			}
			if user.FirebaseUID == "" {
				user.FirebaseUID = id.SubjectID
			}
			r.notifier.UserCreated(ctx, notify.NewUserCreated(user))
		}
	}
	return user.UserID, nil
}
