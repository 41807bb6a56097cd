// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package models

import "github.com/goccy/go-json"

// Event is a record owned by the Events service. Times are kept in the
// wire format the Events service emits.
type Event struct {
	EventID     int64   `json:"event_id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Location    *string `json:"location,omitempty"`
	StartTime   string  `json:"start_time,omitempty"`
	EndTime     string  `json:"end_time,omitempty"`
	CreatedBy   int64   `json:"created_by"`
	Capacity    *int    `json:"capacity,omitempty"`
}

// LocationOr returns the event location, or fallback when unset or blank.
func (e *Event) LocationOr(fallback string) string {
	if e.Location == nil || *e.Location == "" {
		return fallback
	}
	return *e.Location
}

// Post is a record owned by the Feed service.
type Post struct {
	PostID     int64  `json:"post_id"`
	Title      string `json:"title,omitempty"`
	Content    string `json:"content,omitempty"`
	InterestID *int64 `json:"interest_id,omitempty"`
	CreatedBy  int64  `json:"created_by"`
}

// Page is the list envelope returned by the Events and Feed services.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total,omitempty"`
	Skip  int `json:"skip,omitempty"`
	Limit int `json:"limit,omitempty"`
}

// RawItems is a page whose items are kept as upstream JSON.
type RawItems = Page[json.RawMessage]

// EventTask tracks an asynchronous event creation.
type EventTask struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	EventID *int64 `json:"event_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Created is the subset of a create response used to build Location headers.
type Created struct {
	EventID    int64  `json:"event_id,omitempty"`
	PostID     int64  `json:"post_id,omitempty"`
	ScheduleID int64  `json:"schedule_id,omitempty"`
	RequestID  int64  `json:"request_id,omitempty"`
	TaskID     string `json:"task_id,omitempty"`
}
