// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/confluence/internal/auth"
	"github.com/tomtom215/confluence/internal/eventprocessor"
	"github.com/tomtom215/confluence/internal/notify"
	"github.com/tomtom215/confluence/internal/upstream"
)

// UserResolver maps the caller to an internal user id.
type UserResolver interface {
	// ResolveUserID provisions the internal user when none exists.
	ResolveUserID(ctx context.Context, id *auth.CallerIdentity) (int64, error)
	// ResolveExisting never provisions.
	ResolveExisting(ctx context.Context, id *auth.CallerIdentity) (int64, error)
}

// Notifier publishes domain events after successful creates. It never
// reports failure.
type Notifier interface {
	UserCreated(ctx context.Context, user notify.UserCreated)
	EventCreated(ctx context.Context, creatorID, eventID int64, event json.RawMessage)
}

// HandlerConfig holds the shared handles a Handler needs.
type HandlerConfig struct {
	Clients  *upstream.Clients
	Resolver UserResolver
	Notifier Notifier

	// Health reports messaging readiness; nil means always ready.
	Health *eventprocessor.HealthChecker

	Version string
}

// Handler serves every route of the API.
type Handler struct {
	users    upstream.UsersClient
	events   upstream.EventsClient
	feed     upstream.FeedClient
	resolver UserResolver
	notifier Notifier
	health   *eventprocessor.HealthChecker

	version   string
	startTime time.Time
}

// NewHandler creates a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	return &Handler{
		users:     cfg.Clients.Users,
		events:    cfg.Clients.Events,
		feed:      cfg.Clients.Feed,
		resolver:  cfg.Resolver,
		notifier:  cfg.Notifier,
		health:    cfg.Health,
		version:   version,
		startTime: time.Now(),
	}
}

// requireCaller returns the authenticated identity, writing 401 when there
// is none. The auth middleware normally guarantees one on every /api route.
func requireCaller(w http.ResponseWriter, r *http.Request) (*auth.CallerIdentity, bool) {
	id := auth.IdentityFromContext(r.Context())
	if id == nil || id.SubjectID == "" {
		w.Header().Set("WWW-Authenticate", "Bearer")
		respondDetail(w, r, http.StatusUnauthorized, DetailNotAuthenticated)
		return nil, false
	}
	return id, true
}
