// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package api

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/tomtom215/confluence/internal/models"
	"github.com/tomtom215/confluence/internal/validation"
)

// Friends lists a user's accepted friends.
//
// @Summary List friends
// @Tags Friends
// @Produce json
// @Param user_id path int true "User ID"
// @Success 200 {array} models.User
// @Security BearerAuth
// @Router /users/{user_id}/friends [get]
func (h *Handler) Friends(w http.ResponseWriter, r *http.Request) {
	h.userPath(w, r, http.MethodGet, "/friends", nil)
}

// FriendRequests lists friend requests involving a user, optionally
// filtered by status.
//
// @Summary List friend requests
// @Tags Friends
// @Produce json
// @Param user_id path int true "User ID"
// @Param status query string false "pending, accepted or declined"
// @Success 200 {array} object
// @Failure 422 {object} ErrorResponse
// @Security BearerAuth
// @Router /users/{user_id}/friend-requests [get]
func (h *Handler) FriendRequests(w http.ResponseWriter, r *http.Request) {
	id, ok := requireCaller(w, r)
	if !ok {
		return
	}
	userID, err := pathID(r, "user_id")
	if err != nil {
		respondError(w, r, err, "")
		return
	}

	var q url.Values
	if status := r.URL.Query().Get("status"); status != "" {
		switch status {
		case models.FriendRequestPending, models.FriendRequestAccepted, models.FriendRequestDeclined:
		default:
			var pe paramErrors
			pe.add("query", "status", "status must be one of [pending accepted declined]", "value_error.oneof")
			respondError(w, r, pe.err(), "")
			return
		}
		q = url.Values{"status": {status}}
	}

	h.forward(w, r, h.users.Client, id.SubjectID, delegate{
		method: http.MethodGet,
		path:   "/users/" + strconv.FormatInt(userID, 10) + "/friend-requests",
		query:  q,
	})
}

// SendFriendRequest sends a friend request from the caller to user_id.
//
// @Summary Send friend request
// @Tags Friends
// @Produce json
// @Param user_id path int true "Receiver user ID"
// @Success 201 {object} object
// @Header 201 {string} Location "/api/friend-requests/{request_id}"
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Security BearerAuth
// @Router /users/{user_id}/friend-requests [post]
func (h *Handler) SendFriendRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := requireCaller(w, r)
	if !ok {
		return
	}
	receiverID, err := pathID(r, "user_id")
	if err != nil {
		respondError(w, r, err, "")
		return
	}

	senderID, err := h.resolver.ResolveUserID(r.Context(), id)
	if err != nil {
		respondError(w, r, err, DetailProfileSetup)
		return
	}
	if senderID == receiverID {
		var pe paramErrors
		pe.add("path", "user_id", "cannot send a friend request to yourself", "value_error.self")
		respondError(w, r, pe.err(), "")
		return
	}

	req := models.FriendRequestCreate{SenderID: senderID, ReceiverID: receiverID}
	if vErr := validation.ValidateStruct(req); vErr != nil {
		respondError(w, r, vErr, "")
		return
	}

	h.forward(w, r, h.users.Client, id.SubjectID, delegate{
		method: http.MethodPost,
		path:   "/friend-requests/",
		body:   req,
		status: http.StatusCreated,
		location: func(c models.Created) string {
			if c.RequestID == 0 {
				return ""
			}
			return "/api/friend-requests/" + strconv.FormatInt(c.RequestID, 10)
		},
	})
}

// AnswerFriendRequest accepts or declines a pending request addressed to
// the caller.
//
// @Summary Answer friend request
// @Tags Friends
// @Accept json
// @Produce json
// @Param request_id path int true "Friend request ID"
// @Param answer body models.FriendRequestUpdate true "accepted or declined"
// @Success 200 {object} object
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Security BearerAuth
// @Router /friend-requests/{request_id} [put]
func (h *Handler) AnswerFriendRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := requireCaller(w, r)
	if !ok {
		return
	}
	requestID, err := pathID(r, "request_id")
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	body, err := readBody(w, r, '{')
	if err != nil {
		respondError(w, r, err, "")
		return
	}

	var update models.FriendRequestUpdate
	if err := json.Unmarshal(body, &update); err != nil {
		respondError(w, r, invalidBody(), "")
		return
	}
	if vErr := validation.ValidateStruct(update); vErr != nil {
		respondError(w, r, vErr, "")
		return
	}

	update.ActorID, err = h.resolver.ResolveExisting(r.Context(), id)
	if err != nil {
		respondError(w, r, err, DetailSyncFirst)
		return
	}

	h.forward(w, r, h.users.Client, id.SubjectID, delegate{
		method: http.MethodPut,
		path:   "/friend-requests/" + strconv.FormatInt(requestID, 10),
		body:   update,
	})
}
