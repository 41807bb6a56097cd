// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package api

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/confluence/internal/aggregate"
	"github.com/tomtom215/confluence/internal/logging"
	"github.com/tomtom215/confluence/internal/models"
	"github.com/tomtom215/confluence/internal/upstream"
)

// Branch names of the composite endpoints.
const (
	branchPosts  = "posts"
	branchEvents = "events"
)

// FeedResponse is the body of GET /api/users/{user_id}/feed.
type FeedResponse struct {
	User   json.RawMessage   `json:"user"`
	Posts  []json.RawMessage `json:"posts"`
	Events []json.RawMessage `json:"events"`
}

// ActivityResponse is the body of GET /api/users/{user_id}/activity.
// Errors names each branch that failed; the matching list is empty.
type ActivityResponse struct {
	UserID int64             `json:"user_id"`
	User   json.RawMessage   `json:"user"`
	Events []json.RawMessage `json:"events"`
	Posts  []json.RawMessage `json:"posts"`
	Errors map[string]string `json:"errors,omitempty"`
}

// Feed returns a user's posts and events, fetched concurrently.
//
// @Summary User feed
// @Description Posts and events created by a user. Any failed branch fails the whole request.
// @Tags Composite
// @Produce json
// @Param user_id path int true "User ID"
// @Param skip_posts query int false "Posts to skip" default(0)
// @Param limit_posts query int false "Posts to return (1-100)" default(10)
// @Param skip_events query int false "Events to skip" default(0)
// @Param limit_events query int false "Events to return (1-100)" default(10)
// @Success 200 {object} FeedResponse
// @Failure 404 {object} ErrorResponse "User not found"
// @Failure 422 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse "Errors fetching data"
// @Security BearerAuth
// @Router /users/{user_id}/feed [get]
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	id, ok := requireCaller(w, r)
	if !ok {
		return
	}
	p, err := parseFeedParams(r)
	if err != nil {
		respondError(w, r, err, "")
		return
	}

	user, ok := h.requireUser(w, r, id.SubjectID, p.UserID)
	if !ok {
		return
	}

	res := aggregate.Run(r.Context(),
		aggregate.Branch{Name: branchPosts, Fn: func(ctx context.Context) (any, error) {
			return h.feed.ListPostsBy(ctx, id.SubjectID, p.UserID, p.SkipPosts, p.LimitPosts)
		}},
		aggregate.Branch{Name: branchEvents, Fn: func(ctx context.Context) (any, error) {
			return h.events.ListEventsBy(ctx, id.SubjectID, p.UserID, p.SkipEvents, p.LimitEvents)
		}},
	)

	if !res.OK() {
		logging.Ctx(r.Context()).Error().
			Int64("user_id", p.UserID).
			Interface("failures", res.Failures()).
			Msg("Feed aggregation failed")
		respondDetail(w, r, http.StatusInternalServerError, DetailAggregationFailure+res.FailureSummary())
		return
	}

	respondJSON(w, r, http.StatusOK, FeedResponse{
		User:   user,
		Posts:  items(res, branchPosts),
		Events: items(res, branchEvents),
	})
}

// Activity returns every event and post of a user, tolerating partial
// failure.
//
// @Summary User activity
// @Description Events and posts created by a user (up to 100 each). Failed branches are reported in errors.
// @Tags Composite
// @Produce json
// @Param user_id path int true "User ID"
// @Success 200 {object} ActivityResponse
// @Failure 404 {object} ErrorResponse "User not found"
// @Failure 422 {object} ErrorResponse
// @Security BearerAuth
// @Router /users/{user_id}/activity [get]
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	id, ok := requireCaller(w, r)
	if !ok {
		return
	}
	userID, err := pathID(r, "user_id")
	if err != nil {
		respondError(w, r, err, "")
		return
	}

	user, ok := h.requireUser(w, r, id.SubjectID, userID)
	if !ok {
		return
	}

	res := aggregate.Run(r.Context(),
		aggregate.Branch{Name: branchEvents, Fn: func(ctx context.Context) (any, error) {
			return h.events.ListEventsBy(ctx, id.SubjectID, userID, 0, ActivityMaxItems)
		}},
		aggregate.Branch{Name: branchPosts, Fn: func(ctx context.Context) (any, error) {
			return h.feed.ListPostsBy(ctx, id.SubjectID, userID, 0, ActivityMaxItems)
		}},
	)

	resp := ActivityResponse{
		UserID: userID,
		User:   user,
		Events: items(res, branchEvents),
		Posts:  items(res, branchPosts),
	}
	if !res.OK() {
		resp.Errors = res.Failures()
		logging.Ctx(r.Context()).Warn().
			Int64("user_id", userID).
			Interface("failures", resp.Errors).
			Msg("Activity returned partial results")
	}
	respondJSON(w, r, http.StatusOK, resp)
}

// requireUser is the existence check run before fan-out. It writes 404
// when the user does not exist and returns the user record otherwise.
func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request, subject string, userID int64) (json.RawMessage, bool) {
	user, err := h.users.GetUser(r.Context(), subject, userID)
	if err != nil {
		if upstream.IsNotFound(err) {
			respondDetail(w, r, http.StatusNotFound, DetailUserNotFound)
			return nil, false
		}
		respondError(w, r, err, "")
		return nil, false
	}
	return user, true
}

// items returns a branch's page items, or an empty list when it failed.
func items(res aggregate.Result, name string) []json.RawMessage {
	page, ok := aggregate.Value[*models.RawItems](res, name)
	if !ok || page == nil || page.Items == nil {
		return []json.RawMessage{}
	}
	return page.Items
}
