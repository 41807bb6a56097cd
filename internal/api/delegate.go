// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package api

import (
	"net/http"
	"net/url"

	"github.com/goccy/go-json"

	"github.com/tomtom215/confluence/internal/logging"
	"github.com/tomtom215/confluence/internal/models"
	"github.com/tomtom215/confluence/internal/upstream"
)

// delegate describes one pass-through call.
type delegate struct {
	method string
	path   string
	query  url.Values
	body   any

	// status overrides the upstream status on success (201 for creates).
	status int

	// location builds the Location header from the created ids.
	location func(models.Created) string

	// userNotFound is the 404 message for identity.ErrUserNotFound.
	userNotFound string
}

// forward performs d against c on behalf of the caller and writes the
// result. It returns the upstream response so callers can act on a
// success (publish), or nil when an error was written.
func (h *Handler) forward(w http.ResponseWriter, r *http.Request, c *upstream.Client, subject string, d delegate) *upstream.Response {
	req := &upstream.Request{
		Method:   d.method,
		Path:     d.path,
		Query:    d.query,
		Body:     d.body,
		Identity: subject,
	}
	if d.method == http.MethodGet {
		req.IfNoneMatch = r.Header.Get("If-None-Match")
	}

	resp, err := c.Forward(r.Context(), req)
	if err != nil {
		respondError(w, r, err, d.userNotFound)
		return nil
	}

	if d.location != nil {
		var created models.Created
		if err := json.Unmarshal(resp.Body, &created); err == nil {
			if loc := d.location(created); loc != "" {
				w.Header().Set("Location", loc)
			}
		} else {
			logging.Ctx(r.Context()).Debug().Err(err).Str("path", d.path).Msg("Create response has no id for Location")
		}
	}

	respondUpstream(w, r, resp, d.status)
	return resp
}

// normalizeList accepts a bare JSON list or a page envelope and returns the
// items; anything else becomes an empty list.
func normalizeList(body []byte) []json.RawMessage {
	var list []json.RawMessage
	if err := json.Unmarshal(body, &list); err == nil && list != nil {
		return list
	}
	var page models.RawItems
	if err := json.Unmarshal(body, &page); err == nil && page.Items != nil {
		return page.Items
	}
	return []json.RawMessage{}
}
