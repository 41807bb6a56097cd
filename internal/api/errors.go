// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/confluence/internal/identity"
	"github.com/tomtom215/confluence/internal/logging"
	"github.com/tomtom215/confluence/internal/upstream"
	"github.com/tomtom215/confluence/internal/validation"
)

// Client-facing messages.
const (
	DetailUserNotFound        = "User not found"
	DetailProfileSetup        = "User not found. Please complete your profile setup first by visiting your profile page."
	DetailSyncFirst           = "User not found. Please sync your account first."
	DetailInternal            = "Internal server error"
	DetailAggregationFailure  = "Errors fetching data: "
	DetailServiceUnavailable  = "Service unavailable"
	DetailUpstreamTimeout     = "Upstream service timed out"
	DetailBadGateway          = "Upstream service returned an oversized response"
	DetailNotAuthenticated    = "Not authenticated"
	DetailInvalidJSON         = "Invalid JSON body"
	DetailRequestBodyTooLarge = "Request body too large"
)

// errBodyTooLarge marks a body over maxRequestBodyBytes.
var errBodyTooLarge = errors.New("request body too large")

// respondError maps err to a status and writes it. userNotFound is the
// message used for identity.ErrUserNotFound; it differs between create and
// update paths.
func respondError(w http.ResponseWriter, r *http.Request, err error, userNotFound string) {
	var (
		ue   *upstream.Error
		vErr *validation.RequestValidationError
		pErr *ParamError
	)

	switch {
	case errors.As(err, &vErr):
		respondDetail(w, r, http.StatusUnprocessableEntity, vErr.Detail())

	case errors.As(err, &pErr):
		respondDetail(w, r, http.StatusUnprocessableEntity, pErr.Items)

	case errors.Is(err, identity.ErrUserNotFound):
		if userNotFound == "" {
			userNotFound = DetailUserNotFound
		}
		respondDetail(w, r, http.StatusNotFound, userNotFound)

	case errors.As(err, &ue):
		// Client-caused upstream errors pass through with their detail.
		if len(ue.RawDetail) > 0 {
			respondDetail(w, r, ue.StatusCode, ue.RawDetail)
			return
		}
		respondDetail(w, r, ue.StatusCode, ue.Detail)

	case errors.Is(err, upstream.ErrUpstreamTimeout):
		respondDetail(w, r, http.StatusGatewayTimeout, DetailUpstreamTimeout)

	case errors.Is(err, upstream.ErrUnreachable):
		logging.Ctx(r.Context()).Warn().Err(err).
			Str("path", r.URL.Path).
			Msg("Upstream service unavailable")
		respondDetail(w, r, http.StatusServiceUnavailable, DetailServiceUnavailable)

	case errors.Is(err, upstream.ErrResponseTooLarge):
		respondDetail(w, r, http.StatusBadGateway, DetailBadGateway)

	case errors.Is(err, errBodyTooLarge):
		respondDetail(w, r, http.StatusRequestEntityTooLarge, DetailRequestBodyTooLarge)

	default:
		logging.Ctx(r.Context()).Error().Err(err).
			Str("path", r.URL.Path).
			Str("method", r.Method).
			Msg("Unhandled request error")
		respondDetail(w, r, http.StatusInternalServerError, DetailInternal)
	}
}
