// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/tomtom215/confluence/internal/logging"
	"github.com/tomtom215/confluence/internal/models"
	"github.com/tomtom215/confluence/internal/notify"
	"github.com/tomtom215/confluence/internal/upstream"
)

// Me returns the caller's internal user.
//
// @Summary Current user
// @Tags Users
// @Produce json
// @Param If-None-Match header string false "ETag from a previous response"
// @Success 200 {object} models.User
// @Success 304 "Not modified"
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /users/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := requireCaller(w, r)
	if !ok {
		return
	}
	h.forward(w, r, h.users.Client, id.SubjectID, delegate{method: http.MethodGet, path: "/users/me"})
}

// SyncUser creates or updates the caller's internal user. A 201 from the
// Users service announces user.created.
//
// @Summary Sync current user
// @Tags Users
// @Accept json
// @Produce json
// @Param user body models.UserSync true "Profile"
// @Success 200 {object} models.User "Existing user updated"
// @Success 201 {object} models.User "User created"
// @Failure 422 {object} ErrorResponse
// @Security BearerAuth
// @Router /users/sync [post]
func (h *Handler) SyncUser(w http.ResponseWriter, r *http.Request) {
	id, ok := requireCaller(w, r)
	if !ok {
		return
	}
	body, err := readBody(w, r, '{')
	if err != nil {
		respondError(w, r, err, "")
		return
	}

	resp := h.forward(w, r, h.users.Client, id.SubjectID, delegate{
		method: http.MethodPost,
		path:   "/users/sync",
		body:   body,
	})
	if resp == nil || resp.StatusCode != http.StatusCreated || h.notifier == nil {
		return
	}

	var user models.User
	if err := json.Unmarshal(resp.Body, &user); err != nil || user.UserID == 0 {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Sync response has no user, user.created not published")
		return
	}
	if user.FirebaseUID == "" {
		user.FirebaseUID = id.SubjectID
	}
	h.notifier.UserCreated(r.Context(), notify.NewUserCreated(&user))
}

// ListUsers lists users.
//
// @Summary List users
// @Tags Users
// @Produce json
// @Param skip query int false "Users to skip" default(0)
// @Param limit query int false "Users to return (1-100)" default(10)
// @Success 200 {array} models.User
// @Failure 422 {object} ErrorResponse
// @Security BearerAuth
// @Router /users [get]
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	id, ok := requireCaller(w, r)
	if !ok {
		return
	}
	page, err := parsePageParams(r)
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	h.forward(w, r, h.users.Client, id.SubjectID, delegate{method: http.MethodGet, path: "/users/", query: page.Query()})
}

// Interests lists every interest known to the Users service, always as a
// JSON list.
//
// @Summary List interests
// @Tags Users
// @Produce json
// @Success 200 {array} object
// @Security BearerAuth
// @Router /users/interests [get]
func (h *Handler) Interests(w http.ResponseWriter, r *http.Request) {
	h.listOf(w, r, h.users.Client, "/users/interests")
}

// GetUser returns one user.
//
// @Summary Get user
// @Tags Users
// @Produce json
// @Param user_id path int true "User ID"
// @Param If-None-Match header string false "ETag from a previous response"
// @Success 200 {object} models.User
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /users/{user_id} [get]
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	h.userPath(w, r, http.MethodGet, "", nil)
}

// UpdateUser replaces a user's profile.
//
// @Summary Update user
// @Tags Users
// @Accept json
// @Produce json
// @Param user_id path int true "User ID"
// @Param user body object true "Profile fields"
// @Success 200 {object} models.User
// @Security BearerAuth
// @Router /users/{user_id} [put]
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	h.userPath(w, r, http.MethodPut, "", nil)
}

// UserSchedules lists a user's schedules.
//
// @Summary List schedules
// @Tags Users
// @Produce json
// @Param user_id path int true "User ID"
// @Success 200 {array} object
// @Security BearerAuth
// @Router /users/{user_id}/schedules [get]
func (h *Handler) UserSchedules(w http.ResponseWriter, r *http.Request) {
	h.userPath(w, r, http.MethodGet, "/schedules", nil)
}

// CreateSchedule adds a schedule to a user.
//
// @Summary Create schedule
// @Tags Users
// @Accept json
// @Produce json
// @Param user_id path int true "User ID"
// @Param schedule body object true "Schedule"
// @Success 201 {object} object
// @Header 201 {string} Location "/api/users/{user_id}/schedules/{schedule_id}"
// @Security BearerAuth
// @Router /users/{user_id}/schedules [post]
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	h.userPath(w, r, http.MethodPost, "/schedules", func(userID int64, c models.Created) string {
		if c.ScheduleID == 0 {
			return ""
		}
		return fmt.Sprintf("/api/users/%d/schedules/%d", userID, c.ScheduleID)
	})
}

// DeleteSchedule removes a schedule.
//
// @Summary Delete schedule
// @Tags Users
// @Param user_id path int true "User ID"
// @Param schedule_id path int true "Schedule ID"
// @Success 200 {object} object
// @Success 204 "Deleted"
// @Security BearerAuth
// @Router /users/{user_id}/schedules/{schedule_id} [delete]
func (h *Handler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var pe paramErrors
	userID := pe.int64Path(r, "user_id")
	scheduleID := pe.int64Path(r, "schedule_id")
	if err := pe.err(); err != nil {
		respondError(w, r, err, "")
		return
	}
	h.forward(w, r, h.users.Client, id.SubjectID, delegate{
		method: http.MethodDelete,
		path:   fmt.Sprintf("/users/%d/schedules/%d", userID, scheduleID),
	})
}

// UserInterests lists a user's interests.
//
// @Summary List user interests
// @Tags Users
// @Produce json
// @Param user_id path int true "User ID"
// @Success 200 {array} object
// @Security BearerAuth
// @Router /users/{user_id}/interests [get]
func (h *Handler) UserInterests(w http.ResponseWriter, r *http.Request) {
	h.userPath(w, r, http.MethodGet, "/interests", nil)
}

// SetUserInterests replaces a user's interests. The body is a JSON array of
// interest ids.
//
// @Summary Set user interests
// @Tags Users
// @Accept json
// @Produce json
// @Param user_id path int true "User ID"
// @Param interest_ids body []int true "Interest IDs"
// @Success 201 {object} object
// @Security BearerAuth
// @Router /users/{user_id}/interests [post]
func (h *Handler) SetUserInterests(w http.ResponseWriter, r *http.Request) {
	id, ok := requireCaller(w, r)
	if !ok {
		return
	}
	userID, err := pathID(r, "user_id")
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	body, err := readBody(w, r, '[')
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	var ids []int64
	if err := json.Unmarshal(body, &ids); err != nil {
		respondError(w, r, invalidBody(), "")
		return
	}
	h.forward(w, r, h.users.Client, id.SubjectID, delegate{
		method: http.MethodPost,
		path:   "/users/" + strconv.FormatInt(userID, 10) + "/interests",
		body:   ids,
		status: http.StatusCreated,
	})
}

// userPath forwards method to /users/{user_id}{suffix}. Writes carry the
// client body unchanged; POSTs answer 201.
func (h *Handler) userPath(w http.ResponseWriter, r *http.Request, method, suffix string, location func(int64, models.Created) string) {
	id, ok := requireCaller(w, r)
	if !ok {
		return
	}
	userID, err := pathID(r, "user_id")
	if err != nil {
		respondError(w, r, err, "")
		return
	}

	d := delegate{method: method, path: "/users/" + strconv.FormatInt(userID, 10) + suffix}
	if method == http.MethodPost || method == http.MethodPut {
		body, err := readBody(w, r, '{')
		if err != nil {
			respondError(w, r, err, "")
			return
		}
		d.body = body
	}
	if method == http.MethodPost {
		d.status = http.StatusCreated
	}
	if location != nil {
		d.location = func(c models.Created) string { return location(userID, c) }
	}
	h.forward(w, r, h.users.Client, id.SubjectID, d)
}

// listOf forwards a GET whose answer is normalized to a JSON list.
func (h *Handler) listOf(w http.ResponseWriter, r *http.Request, c *upstream.Client, path string) {
	id, ok := requireCaller(w, r)
	if !ok {
		return
	}
	resp, err := c.Forward(r.Context(), &upstream.Request{Method: http.MethodGet, Path: path, Identity: id.SubjectID})
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	respondJSON(w, r, http.StatusOK, normalizeList(resp.Body))
}
