// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/confluence/internal/logging"
	"github.com/tomtom215/confluence/internal/upstream"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	// Detail is a message string, or a list of validation items for 422.
	Detail any `json:"detail"`
}

// respondJSON encodes v with status.
func respondJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to encode response")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"Internal server error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Failed to write response")
	}
}

// respondDetail writes {"detail": detail}.
func respondDetail(w http.ResponseWriter, r *http.Request, status int, detail any) {
	respondJSON(w, r, status, ErrorResponse{Detail: detail})
}

// respondUpstream writes an upstream response unchanged: status (unless
// status is non-zero), ETag and body. A 304 is written without a body.
func respondUpstream(w http.ResponseWriter, r *http.Request, resp *upstream.Response, status int) {
	if resp.ETag != "" {
		w.Header().Set("ETag", resp.ETag)
	}
	if resp.NotModified() {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	if status == 0 {
		status = resp.StatusCode
	}
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}

	body := resp.Body
	if len(body) == 0 {
		body = []byte("{}")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Failed to write response")
	}
}
