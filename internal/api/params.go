// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package api

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/confluence/internal/validation"
)

// maxRequestBodyBytes bounds client request bodies.
const maxRequestBodyBytes = 1 << 20

// Pagination defaults shared by list and composite endpoints.
const (
	DefaultLimit     = 10
	MaxLimit         = 100
	ActivityMaxItems = 100
)

// FeedParams are the query parameters of GET /api/users/{user_id}/feed.
type FeedParams struct {
	UserID      int64 `path:"user_id" validate:"min=1"`
	SkipPosts   int   `query:"skip_posts" validate:"min=0"`
	LimitPosts  int   `query:"limit_posts" validate:"min=1,max=100"`
	SkipEvents  int   `query:"skip_events" validate:"min=0"`
	LimitEvents int   `query:"limit_events" validate:"min=1,max=100"`
}

// PageParams are skip/limit query parameters.
type PageParams struct {
	Skip  int `query:"skip" validate:"min=0"`
	Limit int `query:"limit" validate:"min=1,max=100"`
}

// Query returns the parameters as upstream query values.
func (p PageParams) Query() url.Values {
	q := url.Values{}
	q.Set("skip", strconv.Itoa(p.Skip))
	q.Set("limit", strconv.Itoa(p.Limit))
	return q
}

// paramErrors collects parse failures in the same shape as validator
// failures.
type paramErrors struct {
	items []validation.DetailItem
}

func (p *paramErrors) add(location, name, msg, kind string) {
	p.items = append(p.items, validation.DetailItem{
		Loc:  []string{location, name},
		Msg:  msg,
		Type: kind,
	})
}

func (p *paramErrors) intQuery(q url.Values, name string, def int) int {
	raw := q.Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.add("query", name, name+" must be an integer", "type_error.integer")
		return def
	}
	return v
}

func (p *paramErrors) int64Path(r *http.Request, name string) int64 {
	raw := chi.URLParam(r, name)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		p.add("path", name, name+" must be an integer", "type_error.integer")
		return 0
	}
	if v < 1 {
		p.add("path", name, name+" must be at least 1", "value_error.min")
	}
	return v
}

// ParamError is a 422 built from parse failures.
type ParamError struct {
	Items []validation.DetailItem
}

func (e *ParamError) Error() string {
	if len(e.Items) == 0 {
		return "invalid parameters"
	}
	return e.Items[0].Msg
}

func (p *paramErrors) err() error {
	if len(p.items) == 0 {
		return nil
	}
	return &ParamError{Items: p.items}
}

// combine returns parse failures first, then validator failures.
func combine(parseErr error, vErr *validation.RequestValidationError) error {
	if parseErr != nil {
		return parseErr
	}
	if vErr != nil {
		return vErr
	}
	return nil
}

func parseFeedParams(r *http.Request) (FeedParams, error) {
	var pe paramErrors
	q := r.URL.Query()
	p := FeedParams{
		UserID:      pe.int64Path(r, "user_id"),
		SkipPosts:   pe.intQuery(q, "skip_posts", 0),
		LimitPosts:  pe.intQuery(q, "limit_posts", DefaultLimit),
		SkipEvents:  pe.intQuery(q, "skip_events", 0),
		LimitEvents: pe.intQuery(q, "limit_events", DefaultLimit),
	}
	if err := pe.err(); err != nil {
		return p, err
	}
	return p, combine(nil, validation.ValidateStruct(p))
}

func parsePageParams(r *http.Request) (PageParams, error) {
	var pe paramErrors
	q := r.URL.Query()
	p := PageParams{
		Skip:  pe.intQuery(q, "skip", 0),
		Limit: pe.intQuery(q, "limit", DefaultLimit),
	}
	if err := pe.err(); err != nil {
		return p, err
	}
	return p, combine(nil, validation.ValidateStruct(p))
}

// pathID parses a positive integer path parameter.
func pathID(r *http.Request, name string) (int64, error) {
	var pe paramErrors
	id := pe.int64Path(r, name)
	return id, pe.err()
}

// optionalInt64Query copies an integer query parameter into dst when set.
func optionalInt64Query(pe *paramErrors, q url.Values, name string, dst url.Values) {
	raw := q.Get(name)
	if raw == "" {
		return
	}
	if _, err := strconv.ParseInt(raw, 10, 64); err != nil {
		pe.add("query", name, name+" must be an integer", "type_error.integer")
		return
	}
	dst.Set(name, raw)
}

// readBody reads a bounded request body and checks that it is JSON. want
// is '{' for an object, '[' for an array, or 0 for any value.
func readBody(w http.ResponseWriter, r *http.Request, want byte) (json.RawMessage, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errBodyTooLarge
		}
		return nil, invalidBody()
	}
	if !json.Valid(body) {
		return nil, invalidBody()
	}
	if want != 0 && firstByte(body) != want {
		return nil, invalidBody()
	}
	return body, nil
}

func invalidBody() error {
	var pe paramErrors
	pe.add("body", "body", DetailInvalidJSON, "value_error.jsondecode")
	return pe.err()
}

func firstByte(b []byte) byte {
	for _, c := range b {
		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			return c
		}
	}
	return 0
}

// withField sets one top-level field of a JSON object, keeping every other
// field as sent.
func withField(body json.RawMessage, name string, value any) (json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, invalidBody()
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	fields[name] = encoded
	return json.Marshal(fields)
}
