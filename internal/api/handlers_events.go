// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package api

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/confluence/internal/auth"
	"github.com/tomtom215/confluence/internal/logging"
	"github.com/tomtom215/confluence/internal/models"
	"github.com/tomtom215/confluence/internal/upstream"
)

// ListEvents lists events.
//
// @Summary List events
// @Tags Events
// @Produce json
// @Param skip query int false "Events to skip" default(0)
// @Param limit query int false "Events to return (1-100)" default(10)
// @Param location query string false "Location filter"
// @Param created_by query int false "Creator user ID"
// @Param If-None-Match header string false "ETag from a previous response"
// @Success 200 {object} models.Page[models.Event]
// @Success 304 "Not modified"
// @Failure 422 {object} ErrorResponse
// @Security BearerAuth
// @Router /events [get]
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := requireCaller(w, r)
	if !ok {
		return
	}
	q, err := listQuery(r, "location", "created_by")
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	h.forward(w, r, h.events.Client, id.SubjectID, delegate{method: http.MethodGet, path: "/events/", query: q})
}

// GetEvent returns one event. If-None-Match is honoured with 304.
//
// @Summary Get event
// @Tags Events
// @Produce json
// @Param event_id path int true "Event ID"
// @Param If-None-Match header string false "ETag from a previous response"
// @Success 200 {object} models.Event
// @Success 304 "Not modified"
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /events/{event_id} [get]
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := requireCaller(w, r)
	if !ok {
		return
	}
	eventID, err := pathID(r, "event_id")
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	h.forward(w, r, h.events.Client, id.SubjectID, delegate{method: http.MethodGet, path: eventPath(eventID)})
}

// CreateEvent creates an event owned by the caller, provisioning the
// caller's internal user first when needed, and announces event.created.
//
// @Summary Create event
// @Tags Events
// @Accept json
// @Produce json
// @Param event body models.Event true "Event (created_by is set from the caller)"
// @Success 201 {object} models.Event
// @Header 201 {string} Location "/api/events/{event_id}"
// @Failure 404 {object} ErrorResponse "Caller has no internal user"
// @Failure 422 {object} ErrorResponse
// @Security BearerAuth
// @Router /events [post]
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := requireCaller(w, r)
	if !ok {
		return
	}
	body, userID, ok := h.ownedBody(w, r, id)
	if !ok {
		return
	}

	resp := h.forward(w, r, h.events.Client, id.SubjectID, delegate{
		method: http.MethodPost,
		path:   "/events/",
		body:   body,
		status: http.StatusCreated,
		location: func(c models.Created) string {
			if c.EventID == 0 {
				return ""
			}
			return "/api/events/" + strconv.FormatInt(c.EventID, 10)
		},
	})
	if resp == nil || h.notifier == nil {
		return
	}

	var event models.Event
	if err := json.Unmarshal(resp.Body, &event); err != nil || event.EventID == 0 {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Create event response has no event, event.created not published")
		return
	}
	creator := event.CreatedBy
	if creator == 0 {
		creator = userID
	}
	h.notifier.EventCreated(r.Context(), creator, event.EventID, json.RawMessage(resp.Body))
}

// CreateEventAsync queues event creation and returns a task to poll.
//
// @Summary Create event asynchronously
// @Tags Events
// @Accept json
// @Produce json
// @Param event body models.Event true "Event (created_by is set from the caller)"
// @Success 202 {object} models.EventTask
// @Header 202 {string} Location "/api/events/tasks/{task_id}"
// @Failure 404 {object} ErrorResponse "Caller has no internal user"
// @Security BearerAuth
// @Router /events/async [post]
func (h *Handler) CreateEventAsync(w http.ResponseWriter, r *http.Request) {
	id, ok := requireCaller(w, r)
	if !ok {
		return
	}
	body, _, ok := h.ownedBody(w, r, id)
	if !ok {
		return
	}

	h.forward(w, r, h.events.Client, id.SubjectID, delegate{
		method: http.MethodPost,
		path:   "/events/async",
		body:   body,
		status: http.StatusAccepted,
		location: func(c models.Created) string {
			if c.TaskID == "" {
				return ""
			}
			return "/api/events/tasks/" + url.PathEscape(c.TaskID)
		},
	})
}

// EventTask returns the status of an asynchronous event creation.
//
// @Summary Event task status
// @Tags Events
// @Produce json
// @Param task_id path string true "Task ID"
// @Success 200 {object} models.EventTask
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /events/tasks/{task_id} [get]
func (h *Handler) EventTask(w http.ResponseWriter, r *http.Request) {
	id, ok := requireCaller(w, r)
	if !ok {
		return
	}
	taskID := chi.URLParam(r, "task_id")
	if taskID == "" {
		var pe paramErrors
		pe.add("path", "task_id", "task_id is required", "value_error.required")
		respondError(w, r, pe.err(), "")
		return
	}
	h.forward(w, r, h.events.Client, id.SubjectID, delegate{
		method: http.MethodGet,
		path:   "/events/tasks/" + url.PathEscape(taskID),
	})
}

// UpdateEvent updates an event; the Events service checks the caller owns it.
//
// @Summary Update event
// @Tags Events
// @Accept json
// @Produce json
// @Param event_id path int true "Event ID"
// @Param event body object true "Fields to update"
// @Success 200 {object} models.Event
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /events/{event_id} [put]
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	h.ownedWrite(w, r, h.events.Client, http.MethodPut, "event_id", eventPath)
}

// DeleteEvent deletes an event owned by the caller.
//
// @Summary Delete event
// @Tags Events
// @Param event_id path int true "Event ID"
// @Success 200 {object} object
// @Success 204 "Deleted"
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /events/{event_id} [delete]
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	h.ownedWrite(w, r, h.events.Client, http.MethodDelete, "event_id", eventPath)
}

func eventPath(id int64) string {
	return "/events/" + strconv.FormatInt(id, 10)
}

// ownedWrite forwards an update or delete of a resource owned by the
// caller, passing the caller's internal id as created_by.
func (h *Handler) ownedWrite(w http.ResponseWriter, r *http.Request, c *upstream.Client, method, param string, path func(int64) string) {
	id, ok := requireCaller(w, r)
	if !ok {
		return
	}
	resourceID, err := pathID(r, param)
	if err != nil {
		respondError(w, r, err, "")
		return
	}

	d := delegate{method: method, path: path(resourceID), userNotFound: DetailSyncFirst}
	if method == http.MethodPut {
		body, err := readBody(w, r, '{')
		if err != nil {
			respondError(w, r, err, "")
			return
		}
		d.body = body
	}

	userID, err := h.resolver.ResolveExisting(r.Context(), id)
	if err != nil {
		respondError(w, r, err, DetailSyncFirst)
		return
	}
	d.query = url.Values{"created_by": {strconv.FormatInt(userID, 10)}}

	h.forward(w, r, c, id.SubjectID, d)
}

// ownedBody reads a create body and sets created_by to the caller's
// internal id, provisioning the user when needed.
func (h *Handler) ownedBody(w http.ResponseWriter, r *http.Request, id *auth.CallerIdentity) (json.RawMessage, int64, bool) {
	body, err := readBody(w, r, '{')
	if err != nil {
		respondError(w, r, err, "")
		return nil, 0, false
	}

	userID, err := h.resolver.ResolveUserID(r.Context(), id)
	if err != nil {
		respondError(w, r, err, DetailProfileSetup)
		return nil, 0, false
	}

	body, err = withField(body, "created_by", userID)
	if err != nil {
		respondError(w, r, err, "")
		return nil, 0, false
	}
	return body, userID, true
}

// listQuery parses skip/limit plus the named optional filters. created_by
// and interest_id must be integers; other filters pass through as text.
func listQuery(r *http.Request, filters ...string) (url.Values, error) {
	page, err := parsePageParams(r)
	if err != nil {
		return nil, err
	}
	q := page.Query()

	var pe paramErrors
	in := r.URL.Query()
	for _, name := range filters {
		switch name {
		case "created_by", "interest_id":
			optionalInt64Query(&pe, in, name, q)
		default:
			if v := in.Get(name); v != "" {
				q.Set(name, v)
			}
		}
	}
	return q, pe.err()
}
