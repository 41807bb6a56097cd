// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/tomtom215/confluence/internal/config"
	"github.com/tomtom215/confluence/internal/models"
)

// UsersClient wraps the Users service.
type UsersClient struct{ *Client }

// EventsClient wraps the Events service.
type EventsClient struct{ *Client }

// FeedClient wraps the Feed service.
type FeedClient struct{ *Client }

// Clients groups the three service clients.
type Clients struct {
	Users  UsersClient
	Events EventsClient
	Feed   FeedClient
}

// NewClients builds one client per service from configuration. tokens may
// be nil.
func NewClients(cfg config.ServicesConfig, identityHeader string, tokens TokenProvider) (*Clients, error) {
	build := func(name, baseURL string) (*Client, error) {
		return NewClient(Config{
			Name:           name,
			BaseURL:        baseURL,
			ReadTimeout:    cfg.ReadTimeout,
			WriteTimeout:   cfg.WriteTimeout,
			IdentityHeader: identityHeader,
			Tokens:         tokens,
			Breaker:        cfg.Breaker,
		})
	}

	users, err := build("users", cfg.UsersURL)
	if err != nil {
		return nil, err
	}
	events, err := build("events", cfg.EventsURL)
	if err != nil {
		return nil, err
	}
	feed, err := build("feed", cfg.FeedURL)
	if err != nil {
		return nil, err
	}
	return &Clients{Users: UsersClient{users}, Events: EventsClient{events}, Feed: FeedClient{feed}}, nil
}

// Forward performs a raw call; delegate handlers use it to pass bodies
// through unchanged.
func (c *Client) Forward(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, req)
}

// Me returns the internal user linked to the identity.
func (c UsersClient) Me(ctx context.Context, identity string) (*models.User, error) {
	resp, err := c.Do(ctx, &Request{Method: http.MethodGet, Path: "/users/me", Identity: identity})
	if err != nil {
		return nil, err
	}
	var u models.User
	if err := resp.Decode(&u); err != nil {
		return nil, fmt.Errorf("decode users/me: %w", err)
	}
	return &u, nil
}

// Sync provisions (or updates) the internal user for identity. created is
// true when the Users service answered 201.
func (c UsersClient) Sync(ctx context.Context, identity string, sync models.UserSync) (user *models.User, created bool, err error) {
	resp, err := c.Do(ctx, &Request{Method: http.MethodPost, Path: "/users/sync", Identity: identity, Body: sync})
	if err != nil {
		return nil, false, err
	}
	var u models.User
	if err := resp.Decode(&u); err != nil {
		return nil, false, fmt.Errorf("decode users/sync: %w", err)
	}
	return &u, resp.StatusCode == http.StatusCreated, nil
}

// GetUser fetches a user record as upstream JSON.
func (c UsersClient) GetUser(ctx context.Context, identity string, userID int64) (json.RawMessage, error) {
	resp, err := c.Do(ctx, &Request{
		Method:   http.MethodGet,
		Path:     "/users/" + strconv.FormatInt(userID, 10),
		Identity: identity,
	})
	if err != nil {
		return nil, err
	}
	return json.RawMessage(resp.Body), nil
}

// User fetches and decodes a user record.
func (c UsersClient) User(ctx context.Context, identity string, userID int64) (*models.User, error) {
	raw, err := c.GetUser(ctx, identity, userID)
	if err != nil {
		return nil, err
	}
	var u models.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("decode user %d: %w", userID, err)
	}
	return &u, nil
}

// UserExists reports whether the user exists. Errors other than 404 are
// returned unchanged.
func (c UsersClient) UserExists(ctx context.Context, identity string, userID int64) (bool, error) {
	_, err := c.GetUser(ctx, identity, userID)
	if err == nil {
		return true, nil
	}
	if IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// ListEventsBy lists events created by userID.
func (c EventsClient) ListEventsBy(ctx context.Context, identity string, userID int64, skip, limit int) (*models.RawItems, error) {
	return listBy(ctx, c.Client, "/events/", identity, userID, skip, limit)
}

// ListPostsBy lists posts created by userID.
func (c FeedClient) ListPostsBy(ctx context.Context, identity string, userID int64, skip, limit int) (*models.RawItems, error) {
	return listBy(ctx, c.Client, "/posts/", identity, userID, skip, limit)
}

func listBy(ctx context.Context, c *Client, path, identity string, userID int64, skip, limit int) (*models.RawItems, error) {
	q := url.Values{}
	q.Set("created_by", strconv.FormatInt(userID, 10))
	q.Set("skip", strconv.Itoa(skip))
	q.Set("limit", strconv.Itoa(limit))

	resp, err := c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: q, Identity: identity})
	if err != nil {
		return nil, err
	}
	var page models.RawItems
	if err := resp.Decode(&page); err != nil {
		return nil, fmt.Errorf("decode %s list: %w", c.name, err)
	}
	if page.Items == nil {
		page.Items = []json.RawMessage{}
	}
	return &page, nil
}
