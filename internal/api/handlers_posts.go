// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package api

import (
	"net/http"
	"strconv"

	"github.com/tomtom215/confluence/internal/models"
)

// ListPosts lists posts.
//
// @Summary List posts
// @Tags Posts
// @Produce json
// @Param skip query int false "Posts to skip" default(0)
// @Param limit query int false "Posts to return (1-100)" default(10)
// @Param interest_id query int false "Interest filter"
// @Param created_by query int false "Creator user ID"
// @Param If-None-Match header string false "ETag from a previous response"
// @Success 200 {object} models.Page[models.Post]
// @Success 304 "Not modified"
// @Failure 422 {object} ErrorResponse
// @Security BearerAuth
// @Router /posts [get]
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	id, ok := requireCaller(w, r)
	if !ok {
		return
	}
	q, err := listQuery(r, "interest_id", "created_by")
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	h.forward(w, r, h.feed.Client, id.SubjectID, delegate{method: http.MethodGet, path: "/posts/", query: q})
}

// PostInterests lists the interests posts can be tagged with, always as a
// JSON list.
//
// @Summary List post interests
// @Tags Posts
// @Produce json
// @Success 200 {array} object
// @Security BearerAuth
// @Router /posts/interests [get]
func (h *Handler) PostInterests(w http.ResponseWriter, r *http.Request) {
	h.listOf(w, r, h.feed.Client, "/posts/interests/")
}

// GetPost returns one post.
//
// @Summary Get post
// @Tags Posts
// @Produce json
// @Param post_id path int true "Post ID"
// @Param If-None-Match header string false "ETag from a previous response"
// @Success 200 {object} models.Post
// @Success 304 "Not modified"
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /posts/{post_id} [get]
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	id, ok := requireCaller(w, r)
	if !ok {
		return
	}
	postID, err := pathID(r, "post_id")
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	h.forward(w, r, h.feed.Client, id.SubjectID, delegate{method: http.MethodGet, path: postPath(postID)})
}

// CreatePost creates a post owned by the caller.
//
// @Summary Create post
// @Tags Posts
// @Accept json
// @Produce json
// @Param post body models.Post true "Post (created_by is set from the caller)"
// @Success 201 {object} models.Post
// @Header 201 {string} Location "/api/posts/{post_id}"
// @Failure 404 {object} ErrorResponse "Caller has no internal user"
// @Failure 422 {object} ErrorResponse
// @Security BearerAuth
// @Router /posts [post]
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	id, ok := requireCaller(w, r)
	if !ok {
		return
	}
	body, _, ok := h.ownedBody(w, r, id)
	if !ok {
		return
	}

	h.forward(w, r, h.feed.Client, id.SubjectID, delegate{
		method: http.MethodPost,
		path:   "/posts/",
		body:   body,
		status: http.StatusCreated,
		location: func(c models.Created) string {
			if c.PostID == 0 {
				return ""
			}
			return "/api/posts/" + strconv.FormatInt(c.PostID, 10)
		},
	})
}

// UpdatePost updates a post owned by the caller.
//
// @Summary Update post
// @Tags Posts
// @Accept json
// @Produce json
// @Param post_id path int true "Post ID"
// @Param post body object true "Fields to update"
// @Success 200 {object} models.Post
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /posts/{post_id} [put]
func (h *Handler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	h.ownedWrite(w, r, h.feed.Client, http.MethodPut, "post_id", postPath)
}

// DeletePost deletes a post owned by the caller.
//
// @Summary Delete post
// @Tags Posts
// @Param post_id path int true "Post ID"
// @Success 200 {object} object
// @Success 204 "Deleted"
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /posts/{post_id} [delete]
func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	h.ownedWrite(w, r, h.feed.Client, http.MethodDelete, "post_id", postPath)
}

func postPath(id int64) string {
	return "/posts/" + strconv.FormatInt(id, 10)
}
